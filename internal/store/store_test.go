// internal/store/store_test.go
package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bridge.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRememberedDeviceEmptyByDefault(t *testing.T) {
	s := openTestStore(t)

	id, err := s.RememberedDevice()
	if err != nil {
		t.Fatalf("RememberedDevice: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}

func TestSetRememberedDeviceOverwrites(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetRememberedDevice("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("SetRememberedDevice: %v", err)
	}
	if err := s.SetRememberedDevice("/dev/rfcomm0"); err != nil {
		t.Fatalf("SetRememberedDevice: %v", err)
	}

	id, err := s.RememberedDevice()
	if err != nil {
		t.Fatalf("RememberedDevice: %v", err)
	}
	if id != "/dev/rfcomm0" {
		t.Errorf("id = %q, want /dev/rfcomm0", id)
	}
}

func TestRememberedDeviceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.db")

	s, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetRememberedDevice("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("SetRememberedDevice: %v", err)
	}
	s.Close()

	s2, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	id, err := s2.RememberedDevice()
	if err != nil {
		t.Fatalf("RememberedDevice: %v", err)
	}
	if id != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("id = %q did not survive restart", id)
	}
}
