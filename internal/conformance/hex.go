package conformance

import (
	"encoding/hex"
	"strings"
)

// FormatHex renders data as lower-case byte pairs separated by spaces.
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hex.EncodeToString([]byte{c}))
	}
	return b.String()
}

// ParseHex reads a hex dump. Whitespace between digits is ignored, so both
// "0001" and "00 01" parse.
func ParseHex(s string) ([]byte, error) {
	compact := strings.Join(strings.Fields(s), "")
	return hex.DecodeString(compact)
}
