package wire

import (
	"encoding/binary"
	"fmt"
)

// frameOverhead is the 8 bytes of totalLen + headerLen that precede
// every frame's header region.
const frameOverhead = 8

// Encode serializes m into a complete wire frame: [totalLen][headerLen]
// [header][payload]. The header field order is fixed per m.Kind;
// unknown or invalid kinds/content types are rejected before any bytes
// are written.
func Encode(m Message) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: kind %s", ErrDecodeInvalidKind, m.Kind)
	}

	header, err := encodeHeader(m)
	if err != nil {
		return nil, err
	}

	payload, err := encodePayload(m)
	if err != nil {
		return nil, err
	}

	totalLen := frameOverhead + len(header) + len(payload)
	frame := make([]byte, 8, totalLen)
	binary.BigEndian.PutUint32(frame[0:4], uint32(totalLen))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(header)))
	frame = append(frame, header...)
	frame = append(frame, payload...)
	return frame, nil
}

// encodeHeader writes the fixed-order header fields for m.Kind.
func encodeHeader(m Message) ([]byte, error) {
	if !m.ContentType.Valid() && m.Kind != KindAck {
		return nil, fmt.Errorf("%w: content type %s", ErrDecodeInvalidContentType, m.ContentType)
	}

	buf := make([]byte, 0, 32+len(m.Topic)+len(m.Source)+len(m.Target))
	buf = binary.BigEndian.AppendUint64(buf, m.ID)
	buf = append(buf, byte(m.Kind))

	switch m.Kind {
	case KindReq, KindRes, KindSReq:
		buf = append(buf, byte(m.ContentType), byte(m.Error))
		buf = appendString(buf, m.Topic)
		buf = appendString(buf, m.Source)
		buf = appendString(buf, m.Target)
	case KindPub:
		buf = append(buf, byte(m.ContentType))
		buf = appendString(buf, m.Topic)
		buf = appendString(buf, m.Source)
		buf = appendString(buf, m.Target)
	case KindSub:
		buf = append(buf, byte(m.ContentType))
		buf = appendString(buf, m.Topic)
		buf = appendString(buf, m.Source)
	case KindPush:
		buf = append(buf, byte(m.ContentType))
		buf = appendString(buf, m.Topic)
		buf = appendString(buf, m.Source)
		buf = appendString(buf, m.Target)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(m.Items)))
	case KindPull:
		buf = append(buf, byte(m.ContentType))
		buf = appendString(buf, m.Topic)
		buf = appendString(buf, m.Source)
	case KindAck:
		buf = appendString(buf, m.Topic)
	case KindMon:
		buf = append(buf, byte(m.ContentType))
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrDecodeInvalidKind, m.Kind)
	}
	return buf, nil
}

// encodePayload writes the body region: a single content-typed payload,
// or for push, itemCount length-prefixed items.
func encodePayload(m Message) ([]byte, error) {
	if m.Kind == KindPush {
		var out []byte
		for i, item := range m.Items {
			b, err := item.Payload.Bytes()
			if err != nil {
				return nil, fmt.Errorf("wire: encode push item %d: %w", i, err)
			}
			out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
			out = append(out, b...)
		}
		return out, nil
	}

	switch m.Kind {
	case KindSub, KindPull, KindAck:
		return nil, nil
	}

	b, err := m.Payload.Bytes()
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return b, nil
}

// Decode parses a single, complete frame (as handed out by the frame
// reassembler) into a Message. totalLen/headerLen are re-validated here
// even though the reassembler already checked them, since Decode is a
// standalone entry point other callers may use directly.
func Decode(frame []byte) (Message, error) {
	if len(frame) < frameOverhead {
		return Message{}, fmt.Errorf("%w: frame shorter than header", ErrDecodeMalformedFrame)
	}
	totalLen := binary.BigEndian.Uint32(frame[0:4])
	headerLen := binary.BigEndian.Uint32(frame[4:8])
	if int(totalLen) != len(frame) {
		return Message{}, fmt.Errorf("%w: totalLen %d != frame length %d", ErrDecodeMalformedFrame, totalLen, len(frame))
	}
	if int(headerLen) > len(frame)-frameOverhead {
		return Message{}, fmt.Errorf("%w: headerLen %d exceeds available bytes", ErrDecodeMalformedFrame, headerLen)
	}

	header := frame[frameOverhead : frameOverhead+int(headerLen)]
	payload := frame[frameOverhead+int(headerLen):]

	if len(header) < 9 {
		return Message{}, fmt.Errorf("%w: header shorter than id+kind", ErrDecodeMalformedFrame)
	}

	m := Message{
		ID:   binary.BigEndian.Uint64(header[0:8]),
		Kind: Kind(header[8]),
	}
	if !m.Kind.Valid() {
		return Message{}, fmt.Errorf("%w: kind 0x%02x", ErrDecodeInvalidKind, header[8])
	}

	rest := header[9:]
	if err := decodeHeaderFields(&m, rest); err != nil {
		return Message{}, err
	}

	if err := decodePayload(&m, payload); err != nil {
		return Message{}, err
	}
	return m, nil
}

func decodeHeaderFields(m *Message, b []byte) error {
	readContentType := func() (ContentType, error) {
		if len(b) < 1 {
			return 0, fmt.Errorf("%w: truncated content type", ErrDecodeMalformedFrame)
		}
		ct := ContentType(b[0])
		b = b[1:]
		if !ct.Valid() {
			return 0, fmt.Errorf("%w: content type 0x%02x", ErrDecodeInvalidContentType, uint8(ct))
		}
		return ct, nil
	}
	readStr := func() (string, error) {
		s, n, err := readString(b)
		if err != nil {
			return "", err
		}
		b = b[n:]
		return s, nil
	}

	switch m.Kind {
	case KindReq, KindRes, KindSReq:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		if len(b) < 1 {
			return fmt.Errorf("%w: truncated error code", ErrDecodeMalformedFrame)
		}
		errCode := ErrorCode(b[0])
		b = b[1:]
		topic, err := readStr()
		if err != nil {
			return err
		}
		source, err := readStr()
		if err != nil {
			return err
		}
		target, err := readStr()
		if err != nil {
			return err
		}
		m.ContentType, m.Error, m.Topic, m.Source, m.Target = ct, errCode, topic, source, target
	case KindPub:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		topic, err := readStr()
		if err != nil {
			return err
		}
		source, err := readStr()
		if err != nil {
			return err
		}
		target, err := readStr()
		if err != nil {
			return err
		}
		m.ContentType, m.Topic, m.Source, m.Target = ct, topic, source, target
	case KindSub:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		topic, err := readStr()
		if err != nil {
			return err
		}
		source, err := readStr()
		if err != nil {
			return err
		}
		m.ContentType, m.Topic, m.Source = ct, topic, source
	case KindPush:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		topic, err := readStr()
		if err != nil {
			return err
		}
		source, err := readStr()
		if err != nil {
			return err
		}
		target, err := readStr()
		if err != nil {
			return err
		}
		if len(b) < 4 {
			return fmt.Errorf("%w: truncated itemCount", ErrDecodeMalformedFrame)
		}
		itemCount := binary.BigEndian.Uint32(b[0:4])
		m.ContentType, m.Topic, m.Source, m.Target = ct, topic, source, target
		m.itemCount = itemCount
	case KindPull:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		topic, err := readStr()
		if err != nil {
			return err
		}
		source, err := readStr()
		if err != nil {
			return err
		}
		m.ContentType, m.Topic, m.Source = ct, topic, source
	case KindAck:
		topic, err := readStr()
		if err != nil {
			return err
		}
		m.Topic = topic
	case KindMon:
		ct, err := readContentType()
		if err != nil {
			return err
		}
		m.ContentType = ct
	default:
		return fmt.Errorf("%w: kind %s", ErrDecodeInvalidKind, m.Kind)
	}
	return nil
}

func decodePayload(m *Message, payload []byte) error {
	switch m.Kind {
	case KindSub, KindPull, KindAck:
		return nil
	case KindPush:
		items := make([]Item, 0, m.itemCount)
		rest := payload
		for i := uint32(0); i < m.itemCount; i++ {
			if len(rest) < 4 {
				return fmt.Errorf("%w: push item %d: truncated length", ErrDecodeMalformedFrame, i)
			}
			itemLen := binary.BigEndian.Uint32(rest[0:4])
			rest = rest[4:]
			if uint64(itemLen) > uint64(len(rest)) {
				return fmt.Errorf("%w: push item %d: length %d exceeds remaining payload", ErrDecodeMalformedFrame, i, itemLen)
			}
			p, err := payloadFromBytes(m.ContentType, rest[:itemLen])
			if err != nil {
				return fmt.Errorf("wire: decode push item %d: %w", i, err)
			}
			items = append(items, Item{Payload: p})
			rest = rest[itemLen:]
		}
		m.Items = items
		return nil
	default:
		p, err := payloadFromBytes(m.ContentType, payload)
		if err != nil {
			return fmt.Errorf("wire: decode payload: %w", err)
		}
		m.Payload = p
		return nil
	}
}
