// internal/escpos/command_test.go
package escpos

import (
	"bytes"
	"testing"
)

func TestEncodeSequences(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		want []byte
	}{
		{"initialize", OpInitialize, []byte{0x1B, 0x40}},
		{"line feed", OpLineFeed, []byte{0x0A}},
		{"align left", OpAlignLeft, []byte{0x1B, 0x61, 0x00}},
		{"align center", OpAlignCenter, []byte{0x1B, 0x61, 0x01}},
		{"align right", OpAlignRight, []byte{0x1B, 0x61, 0x02}},
		{"bold on", OpBoldOn, []byte{0x1B, 0x45, 0x01}},
		{"bold off", OpBoldOff, []byte{0x1B, 0x45, 0x00}},
		{"underline on", OpUnderlineOn, []byte{0x1B, 0x2D, 0x01}},
		{"underline off", OpUnderlineOff, []byte{0x1B, 0x2D, 0x00}},
		{"size normal", OpSizeNormal, []byte{0x1D, 0x21, 0x00}},
		{"size double", OpSizeDouble, []byte{0x1D, 0x21, 0x11}},
		{"cut", OpCut, []byte{0x1D, 0x56, 0x42, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.op)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%v) = % X, want % X", tt.op, got, tt.want)
			}
		})
	}
}

func TestEncodeTotalOverEnum(t *testing.T) {
	for _, op := range Ops() {
		seq := Encode(op)
		if len(seq) == 0 {
			t.Errorf("Encode(%v) returned empty sequence", op)
		}
		if len(seq) > 6 {
			t.Errorf("Encode(%v) = %d bytes, control codes are 1-6 bytes", op, len(seq))
		}
	}
}

func TestEncodeReturnsCopy(t *testing.T) {
	a := Encode(OpBoldOn)
	a[0] = 0x00
	b := Encode(OpBoldOn)
	if b[0] != 0x1B {
		t.Fatal("mutating a returned sequence leaked into the command table")
	}
}

func TestFeedLinesClamps(t *testing.T) {
	if got := FeedLines(3); !bytes.Equal(got, []byte{0x1B, 0x64, 3}) {
		t.Errorf("FeedLines(3) = % X", got)
	}
	if got := FeedLines(-1); got[2] != 0 {
		t.Errorf("FeedLines(-1) count = %d, want 0", got[2])
	}
	if got := FeedLines(999); got[2] != 255 {
		t.Errorf("FeedLines(999) count = %d, want 255", got[2])
	}
}
