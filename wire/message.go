package wire

// Item is one element of a push message's payload: a push carries a
// sequence of itemCount items. All items share the push message's
// single ContentType: Decode parses every item with it, and NewPush
// takes it from the first item.
type Item struct {
	Payload Payload
}

// Message is the single unit exchanged on the wire, carrying the
// fields common to every kind plus whichever kind-specific fields
// apply. Unused fields for a given Kind are simply left zero; Encode
// only serializes the fields that Kind's header actually carries.
type Message struct {
	ID          uint64
	Kind        Kind
	ContentType ContentType
	Error       ErrorCode // req, res, sreq only
	Topic       string
	Source      string
	Target      string // req, res, sreq, pub, push only
	Payload     Payload
	Items       []Item // push only

	// itemCount is populated by Decode from the wire header before the
	// payload region (which carries the items themselves) is parsed.
	// Callers never set this directly; Encode always derives itemCount
	// from len(Items).
	itemCount uint32
}

// NewRequest builds a req message.
func NewRequest(id uint64, topic, source, target string, payload Payload) Message {
	return Message{
		ID: id, Kind: KindReq, ContentType: payload.ContentType,
		Topic: topic, Source: source, Target: target, Payload: payload,
	}
}

// NewResponse builds a res message, optionally carrying an error code.
func NewResponse(id uint64, topic, source, target string, payload Payload, errCode ErrorCode) Message {
	return Message{
		ID: id, Kind: KindRes, ContentType: payload.ContentType, Error: errCode,
		Topic: topic, Source: source, Target: target, Payload: payload,
	}
}

// NewSReq builds an administrative request addressed to the broker.
func NewSReq(id uint64, topic, source string, payload Payload) Message {
	return Message{
		ID: id, Kind: KindSReq, ContentType: payload.ContentType,
		Topic: topic, Source: source, Payload: payload,
	}
}

// NewPub builds a pub message.
func NewPub(id uint64, topic, source, target string, payload Payload) Message {
	return Message{
		ID: id, Kind: KindPub, ContentType: payload.ContentType,
		Topic: topic, Source: source, Target: target, Payload: payload,
	}
}

// NewSub builds a sub message (client → broker subscription intent;
// in this implementation subscription membership is actually
// established via the addSubscribeListener internal topic, but the
// kind still exists as its own wire header).
func NewSub(id uint64, topic, source string) Message {
	return Message{ID: id, Kind: KindSub, ContentType: ContentRaw, Topic: topic, Source: source}
}

// NewPush builds a push message carrying itemCount items.
func NewPush(id uint64, topic, source, target string, items []Item) Message {
	ct := ContentRaw
	if len(items) > 0 {
		ct = items[0].Payload.ContentType
	}
	return Message{
		ID: id, Kind: KindPush, ContentType: ct,
		Topic: topic, Source: source, Target: target, Items: items,
	}
}

// NewPull builds a pull message.
func NewPull(id uint64, topic, source string) Message {
	return Message{ID: id, Kind: KindPull, ContentType: ContentRaw, Topic: topic, Source: source}
}

// NewAck builds an ack message correlating to a push item's id.
func NewAck(id uint64, topic string) Message {
	return Message{ID: id, Kind: KindAck, Topic: topic}
}

// NewMon builds a mon (monitor notification) message.
func NewMon(id uint64, payload Payload) Message {
	return Message{ID: id, Kind: KindMon, ContentType: payload.ContentType, Payload: payload}
}

// Equal reports field-by-field equality, following the field set each
// Kind's header actually carries, so a round trip through Encode/Decode
// compares equal. Fields outside a kind's schema are ignored since
// Decode never populates them.
func (m Message) Equal(o Message) bool {
	if m.ID != o.ID || m.Kind != o.Kind {
		return false
	}
	switch m.Kind {
	case KindReq, KindRes, KindSReq:
		return m.ContentType == o.ContentType && m.Error == o.Error &&
			m.Topic == o.Topic && m.Source == o.Source && m.Target == o.Target &&
			m.Payload.Equal(o.Payload)
	case KindPub:
		return m.ContentType == o.ContentType && m.Topic == o.Topic &&
			m.Source == o.Source && m.Target == o.Target && m.Payload.Equal(o.Payload)
	case KindSub:
		return m.ContentType == o.ContentType && m.Topic == o.Topic && m.Source == o.Source
	case KindPush:
		if m.ContentType != o.ContentType || m.Topic != o.Topic ||
			m.Source != o.Source || m.Target != o.Target || len(m.Items) != len(o.Items) {
			return false
		}
		for i := range m.Items {
			if !m.Items[i].Payload.Equal(o.Items[i].Payload) {
				return false
			}
		}
		return true
	case KindPull:
		return m.ContentType == o.ContentType && m.Topic == o.Topic && m.Source == o.Source
	case KindAck:
		return m.Topic == o.Topic
	case KindMon:
		return m.ContentType == o.ContentType && m.Payload.Equal(o.Payload)
	default:
		return false
	}
}
