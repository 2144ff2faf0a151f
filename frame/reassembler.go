// Package frame turns a stream of arbitrarily-chunked bytes from one
// peer into whole wire frames.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/msgbroker/wire"
)

// lengthPrefixSize is the size of the totalLen field that every frame
// starts with; Reassembler only needs to peek this much to learn how
// many bytes to wait for.
const lengthPrefixSize = 4

// minFrameSize is the smallest legal frame: totalLen + headerLen with
// an empty header and empty payload. totalLen counts from its own
// first byte, so it must be at least the 8 bytes of the two length
// fields.
const minFrameSize = 8

// Reassembler buffers bytes for one peer and yields complete frames as
// they become available. It is not safe for concurrent use; callers
// feed it from a single per-peer read loop.
type Reassembler struct {
	buf []byte
}

// New creates an empty Reassembler for one peer's connection.
func New() *Reassembler {
	return &Reassembler{}
}

// Feed appends a newly-read chunk and extracts as many complete frames
// as are now available. Partial frames remain buffered for the next
// call. A malformed frame (totalLen < 8, or headerLen > totalLen-8)
// returns wire.ErrDecodeMalformedFrame and the caller must close the
// peer; frames already extracted before the malformed one are still
// returned alongside the error.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	for {
		if len(r.buf) < lengthPrefixSize {
			break
		}
		totalLen := binary.BigEndian.Uint32(r.buf[0:lengthPrefixSize])
		if totalLen < minFrameSize {
			return frames, fmt.Errorf("%w: totalLen %d below minimum %d", wire.ErrDecodeMalformedFrame, totalLen, minFrameSize)
		}
		if uint64(len(r.buf)) < uint64(totalLen) {
			break // partial frame; wait for more bytes
		}
		if len(r.buf) >= 8 {
			headerLen := binary.BigEndian.Uint32(r.buf[4:8])
			if uint64(headerLen) > uint64(totalLen)-minFrameSize {
				return frames, fmt.Errorf("%w: headerLen %d exceeds totalLen-8 (%d)", wire.ErrDecodeMalformedFrame, headerLen, totalLen-minFrameSize)
			}
		}

		frame := make([]byte, totalLen)
		copy(frame, r.buf[:totalLen])
		frames = append(frames, frame)
		r.buf = r.buf[totalLen:]
	}
	return frames, nil
}

// Reset drops any buffered partial frame. Called on peer close.
func (r *Reassembler) Reset() {
	r.buf = nil
}

// Buffered returns the number of bytes currently held for an
// incomplete frame, useful for diagnostics and metrics.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}
