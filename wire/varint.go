package wire

import (
	"encoding/binary"
	"fmt"
)

// appendString appends a length-prefixed UTF-8 string to buf using the
// single variable-width natural-number encoding the codec uses
// consistently everywhere a string-length prefix appears: an unsigned
// LEB128 varint, the same family tinywasm-binary's encoder uses for its
// length prefixes, produced here with the stdlib helper that
// implements it directly.
func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// readString reads a length-prefixed UTF-8 string from b, returning the
// string and the number of bytes consumed.
func readString(b []byte) (string, int, error) {
	n, width := binary.Uvarint(b)
	if width <= 0 {
		return "", 0, fmt.Errorf("%w: truncated string length prefix", ErrDecodeMalformedFrame)
	}
	end := width + int(n)
	if end < width || end > len(b) {
		return "", 0, fmt.Errorf("%w: string length exceeds remaining header", ErrDecodeMalformedFrame)
	}
	return string(b[width:end]), end, nil
}
