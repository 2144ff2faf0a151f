package wire

import "errors"

// Sentinel errors the codec and frame reassembler wrap with context via
// fmt.Errorf's %w verb. These are distinct Go error values
// from wire.ErrorCode: ErrorCode is the closed numeric table carried on
// the wire inside a res message; these are the Go-level errors returned
// by Encode/Decode when that happens locally, before anything is sent
// anywhere.
var (
	// ErrDecodeMalformedFrame mirrors wire.ErrMalformedFrame.
	ErrDecodeMalformedFrame = errors.New("wire: malformed frame")
	// ErrDecodeInvalidKind mirrors wire.ErrInvalidKind.
	ErrDecodeInvalidKind = errors.New("wire: invalid kind")
	// ErrDecodeInvalidContentType mirrors wire.ErrInvalidContentType.
	ErrDecodeInvalidContentType = errors.New("wire: invalid content type")
)

// ToErrorCode maps a codec error produced by this package back to its
// closed-table ErrorCode, for handlers that need to reply to a peer
// with a res message instead of just closing the connection.
func ToErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrDecodeMalformedFrame):
		return ErrMalformedFrame
	case errors.Is(err, ErrDecodeInvalidKind):
		return ErrInvalidKind
	case errors.Is(err, ErrDecodeInvalidContentType):
		return ErrInvalidContentType
	default:
		return ErrNone
	}
}
