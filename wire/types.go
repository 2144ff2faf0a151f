// Package wire implements the binary frame format and message codec
// that peers speak to the broker: a self-describing envelope with a
// per-kind header schema and a typed payload.
package wire

import "fmt"

// Kind identifies the purpose of a Message and selects its header schema.
type Kind uint8

// The closed set of message kinds, numbered exactly as the wire format
// requires.
const (
	KindReq  Kind = 1
	KindRes  Kind = 2
	KindPush Kind = 3
	KindPull Kind = 4
	KindPub  Kind = 5
	KindSub  Kind = 6
	KindAck  Kind = 7
	KindMon  Kind = 0xF0
	KindSReq Kind = 0xFF
)

// String renders a Kind for logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindReq:
		return "req"
	case KindRes:
		return "res"
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	case KindPub:
		return "pub"
	case KindSub:
		return "sub"
	case KindAck:
		return "ack"
	case KindMon:
		return "mon"
	case KindSReq:
		return "sreq"
	default:
		return fmt.Sprintf("kind(0x%02x)", uint8(k))
	}
}

// Valid reports whether k is one of the closed set of wire kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindReq, KindRes, KindPush, KindPull, KindPub, KindSub, KindAck, KindMon, KindSReq:
		return true
	default:
		return false
	}
}

// ContentType tags how a payload's bytes are to be interpreted.
type ContentType uint8

const (
	ContentRaw    ContentType = 1
	ContentJSON   ContentType = 2
	ContentString ContentType = 3
)

// String renders a ContentType for logs and error messages.
func (c ContentType) String() string {
	switch c {
	case ContentRaw:
		return "raw"
	case ContentJSON:
		return "json"
	case ContentString:
		return "string"
	default:
		return fmt.Sprintf("contentType(0x%02x)", uint8(c))
	}
}

// Valid reports whether c is one of the closed set of content types.
func (c ContentType) Valid() bool {
	switch c {
	case ContentRaw, ContentJSON, ContentString:
		return true
	default:
		return false
	}
}

// ErrorCode is the closed error table carried on res messages.
type ErrorCode uint8

const (
	// ErrNone means the response carries no error.
	ErrNone ErrorCode = 0

	ErrMalformedFrame          ErrorCode = 1
	ErrInvalidKind             ErrorCode = 2
	ErrInvalidContentType      ErrorCode = 3
	ErrRegisterFail            ErrorCode = 4
	ErrTargetChannelNonexistent ErrorCode = 5
	ErrTopicNonexistent        ErrorCode = 6
	ErrInvalidParameter        ErrorCode = 7
)

// String renders an ErrorCode by name.
func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrMalformedFrame:
		return "MalformedFrame"
	case ErrInvalidKind:
		return "InvalidKind"
	case ErrInvalidContentType:
		return "InvalidContentType"
	case ErrRegisterFail:
		return "RegisterFail"
	case ErrTargetChannelNonexistent:
		return "TargetChannelNonexistent"
	case ErrTopicNonexistent:
		return "TopicNonexistent"
	case ErrInvalidParameter:
		return "InvalidParameter"
	default:
		return fmt.Sprintf("errorCode(%d)", uint8(e))
	}
}

// errorCodeByName resolves the canonical error names to their numeric code.
var errorCodeByName = map[string]ErrorCode{
	"none":                     ErrNone,
	"MalformedFrame":           ErrMalformedFrame,
	"InvalidKind":              ErrInvalidKind,
	"InvalidContentType":       ErrInvalidContentType,
	"RegisterFail":             ErrRegisterFail,
	"TargetChannelNonexistent": ErrTargetChannelNonexistent,
	"TopicNonexistent":         ErrTopicNonexistent,
	"InvalidParameter":         ErrInvalidParameter,
}

// Matches reports whether e equals the code named or numbered by want.
// want may be a string (resolved by name) or any integer type (compared
// directly). This is the Design Notes resolution of the source's
// undefined-local isError comparison: "return true iff header.error
// equals the numeric code resolved from the argument".
func (e ErrorCode) Matches(want any) bool {
	switch v := want.(type) {
	case string:
		code, ok := errorCodeByName[v]
		return ok && e == code
	case ErrorCode:
		return e == v
	case int:
		return int(e) == v
	case uint8:
		return e == ErrorCode(v)
	case int64:
		return int64(e) == v
	default:
		return false
	}
}
