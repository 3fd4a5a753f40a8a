// internal/escpos/command.go
package escpos

// Op is one logical formatting intent of the 2-inch thermal command subset.
type Op int

const (
	OpInitialize Op = iota
	OpLineFeed
	OpAlignLeft
	OpAlignCenter
	OpAlignRight
	OpBoldOn
	OpBoldOff
	OpUnderlineOn
	OpUnderlineOff
	OpSizeNormal
	OpSizeDouble
	OpCut
)

// commands maps every Op 1:1 to its immutable ESC/POS byte sequence.
// Encodings never change at runtime; this is a static lookup table.
var commands = [...][]byte{
	OpInitialize:   {0x1B, 0x40},             // ESC @
	OpLineFeed:     {0x0A},                   // LF
	OpAlignLeft:    {0x1B, 0x61, 0x00},       // ESC a 0
	OpAlignCenter:  {0x1B, 0x61, 0x01},       // ESC a 1
	OpAlignRight:   {0x1B, 0x61, 0x02},       // ESC a 2
	OpBoldOn:       {0x1B, 0x45, 0x01},       // ESC E 1
	OpBoldOff:      {0x1B, 0x45, 0x00},       // ESC E 0
	OpUnderlineOn:  {0x1B, 0x2D, 0x01},       // ESC - 1
	OpUnderlineOff: {0x1B, 0x2D, 0x00},       // ESC - 0
	OpSizeNormal:   {0x1D, 0x21, 0x00},       // GS ! 0
	OpSizeDouble:   {0x1D, 0x21, 0x11},       // GS ! 17 (double width+height)
	OpCut:          {0x1D, 0x56, 0x42, 0x00}, // GS V 66 0 (partial cut with feed)
}

// Encode returns the control-code byte sequence for op. It is total over
// the Op enumeration: every defined op has an encoding and the returned
// slice is a copy, so callers can append to it freely.
func Encode(op Op) []byte {
	seq := commands[op]
	out := make([]byte, len(seq))
	copy(out, seq)
	return out
}

// FeedLines returns the feed-n-lines command (ESC d n).
func FeedLines(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	return []byte{0x1B, 0x64, byte(n)}
}

// Ops returns all defined ops, in declaration order.
func Ops() []Op {
	ops := make([]Op, len(commands))
	for i := range commands {
		ops[i] = Op(i)
	}
	return ops
}
