// internal/store/store.go
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const rememberedDeviceKey = "remembered_device_id"

// Store persists the single remembered printer id across process restarts.
// It is the only persisted state of the subsystem: print history is never
// stored, and device descriptors live only for the session.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates (or opens) the key-value database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	logger.Info("Settings store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// RememberedDevice returns the persisted device id, or "" when none is set.
func (s *Store) RememberedDevice() (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE key = ?`, rememberedDeviceKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read remembered device: %w", err)
	}
	return value, nil
}

// SetRememberedDevice overwrites the persisted id. Called only on a
// successful manual connect; disconnect deliberately leaves it in place so
// silent reconnection keeps working across restarts.
func (s *Store) SetRememberedDevice(id string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		rememberedDeviceKey, id,
	)
	if err != nil {
		return fmt.Errorf("failed to persist remembered device: %w", err)
	}
	s.logger.Debug("Remembered device updated", zap.String("device_id", id))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
