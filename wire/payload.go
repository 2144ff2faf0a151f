package wire

import (
	"encoding/json"
	"fmt"
)

// Payload is the tagged union a Message carries: exactly one of Raw,
// Text, or JSON is meaningful, selected by ContentType. Keeping this as
// a closed struct instead of an interface (Design Notes: "a small sum
// type... rather than erasing to an untyped blob") lets the codec
// refuse malformed JSON at decode time and keeps raw bytes passthrough
// with no copy-through-interface boxing.
type Payload struct {
	ContentType ContentType
	Raw         []byte
	Text        string
	JSON        json.RawMessage
}

// RawPayload builds a raw passthrough payload.
func RawPayload(b []byte) Payload {
	return Payload{ContentType: ContentRaw, Raw: b}
}

// StringPayload builds a UTF-8 string payload.
func StringPayload(s string) Payload {
	return Payload{ContentType: ContentString, Text: s}
}

// JSONPayload builds a JSON payload from an already-encoded document.
// The bytes are validated as well-formed JSON by Payload.Bytes at
// encode time, not here, so callers may build a Payload before the
// value is finalized.
func JSONPayload(raw json.RawMessage) Payload {
	return Payload{ContentType: ContentJSON, JSON: raw}
}

// MarshalJSONPayload marshals v and wraps it as a JSON payload.
func MarshalJSONPayload(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("wire: marshal json payload: %w", err)
	}
	return JSONPayload(b), nil
}

// Bytes returns the wire-encoded form of the payload body, independent
// of framing. For ContentJSON it also validates the JSON is
// well-formed; the decode path folds a malformed JSON payload into the
// same MalformedFrame error it uses for other length/structure
// violations, since invalid JSON is the single-payload analogue of
// those.
func (p Payload) Bytes() ([]byte, error) {
	switch p.ContentType {
	case ContentRaw:
		return p.Raw, nil
	case ContentString:
		return []byte(p.Text), nil
	case ContentJSON:
		if len(p.JSON) > 0 && !json.Valid(p.JSON) {
			return nil, fmt.Errorf("%w: invalid json payload", ErrDecodeMalformedFrame)
		}
		return []byte(p.JSON), nil
	default:
		return nil, fmt.Errorf("%w: content type %s", ErrDecodeInvalidContentType, p.ContentType)
	}
}

// payloadFromBytes reconstructs a Payload of the given content type from
// raw wire bytes, used on the decode path.
func payloadFromBytes(ct ContentType, b []byte) (Payload, error) {
	switch ct {
	case ContentRaw:
		return RawPayload(b), nil
	case ContentString:
		return StringPayload(string(b)), nil
	case ContentJSON:
		if len(b) > 0 && !json.Valid(b) {
			return Payload{}, fmt.Errorf("%w: invalid json payload", ErrDecodeMalformedFrame)
		}
		return JSONPayload(json.RawMessage(b)), nil
	default:
		return Payload{}, fmt.Errorf("%w: content type 0x%02x", ErrDecodeInvalidContentType, uint8(ct))
	}
}

// Equal reports structural equality between two payloads, matching by
// content type. Used by round-trip tests: raw bytes compare
// byte-for-byte, JSON compares structurally rather than byte-for-byte
// since re-marshalling need not preserve whitespace.
func (p Payload) Equal(o Payload) bool {
	if p.ContentType != o.ContentType {
		return false
	}
	switch p.ContentType {
	case ContentRaw:
		return string(p.Raw) == string(o.Raw)
	case ContentString:
		return p.Text == o.Text
	case ContentJSON:
		var a, b any
		if err := json.Unmarshal(nilToEmptyObject(p.JSON), &a); err != nil {
			return false
		}
		if err := json.Unmarshal(nilToEmptyObject(o.JSON), &b); err != nil {
			return false
		}
		ab, _ := json.Marshal(a)
		bb, _ := json.Marshal(b)
		return string(ab) == string(bb)
	default:
		return false
	}
}

func nilToEmptyObject(b json.RawMessage) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return b
}
