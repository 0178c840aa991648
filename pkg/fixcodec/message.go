package fixcodec

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// InboundMessage is the parsed form of a received wire frame.
type InboundMessage struct {
	MsgType  string
	SeqNum   int
	PossDup  bool
	Fields   []Field
	Raw      []byte
	Valid    bool
	Complete bool
}

// GetAll returns every value recorded for tag, in wire order (for
// repeating groups). The returned slice is empty if the tag is absent.
func (m *InboundMessage) GetAll(tag int) []string {
	var out []string
	for _, f := range m.Fields {
		if f.Tag == tag {
			out = append(out, f.Value)
		}
	}
	return out
}

// GetString returns the first value recorded for tag.
func (m *InboundMessage) GetString(tag int) (string, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// GetInt parses the first value recorded for tag as an integer.
func (m *InboundMessage) GetInt(tag int) (int, bool) {
	v, ok := m.GetString(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetDecimal parses the first value recorded for tag as a decimal
// quantity, the typed accessor exchange-grade numeric tags (Price,
// OrderQty, LastPx, ...) call for.
func (m *InboundMessage) GetDecimal(tag int) (decimal.Decimal, bool) {
	v, ok := m.GetString(tag)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// GetBool reports whether the first value recorded for tag is "Y".
func (m *InboundMessage) GetBool(tag int) bool {
	v, ok := m.GetString(tag)
	return ok && v == "Y"
}

// HasField reports whether tag appears anywhere in the message.
func (m *InboundMessage) HasField(tag int) bool {
	_, ok := m.GetString(tag)
	return ok
}

// OutboundMessage is a single-owner builder for a message the caller
// constructs and hands to SendMessage by move. Repeated SetField calls
// on the same tag accumulate an ordered list of values (FIX repeating
// group semantics) rather than overwriting.
type OutboundMessage struct {
	msgType  string
	tagOrder []int
	values   map[int][]string
}

// NewBuilder starts a new outbound message of the given MsgType (tag 35).
func NewBuilder(msgType string) *OutboundMessage {
	return &OutboundMessage{
		msgType: msgType,
		values:  make(map[int][]string),
	}
}

// MsgType returns the message type this builder was created with.
func (b *OutboundMessage) MsgType() string {
	return b.msgType
}

// SetField appends value to tag's ordered value list, preserving
// insertion order. The first SetField call for a tag also fixes that
// tag's position among the other fields emitted by Fields().
func (b *OutboundMessage) SetField(tag int, value string) *OutboundMessage {
	if _, exists := b.values[tag]; !exists {
		b.tagOrder = append(b.tagOrder, tag)
	}
	b.values[tag] = append(b.values[tag], value)
	return b
}

// SetFields is a bulk setter: it calls SetField once per field, in the
// order given.
func (b *OutboundMessage) SetFields(fields []Field) *OutboundMessage {
	for _, f := range fields {
		b.SetField(f.Tag, f.Value)
	}
	return b
}

// GetField returns the first recorded value for tag.
func (b *OutboundMessage) GetField(tag int) (string, bool) {
	vs, ok := b.values[tag]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// GetFieldValues returns every value recorded for tag, in insertion order.
func (b *OutboundMessage) GetFieldValues(tag int) ([]string, bool) {
	vs, ok := b.values[tag]
	return vs, ok
}

// HasField reports whether tag has at least one recorded value.
func (b *OutboundMessage) HasField(tag int) bool {
	vs, ok := b.values[tag]
	return ok && len(vs) > 0
}

// RemoveField deletes every recorded value for tag.
func (b *OutboundMessage) RemoveField(tag int) *OutboundMessage {
	if _, ok := b.values[tag]; !ok {
		return b
	}
	delete(b.values, tag)
	for i, t := range b.tagOrder {
		if t == tag {
			b.tagOrder = append(b.tagOrder[:i], b.tagOrder[i+1:]...)
			break
		}
	}
	return b
}

// Fields flattens the builder's tags back into an ordered []Field,
// expanding any tag with two or more values into repeated tag/value
// entries at that tag's original insertion position.
func (b *OutboundMessage) Fields() []Field {
	var out []Field
	for _, tag := range b.tagOrder {
		for _, v := range b.values[tag] {
			out = append(out, Field{Tag: tag, Value: v})
		}
	}
	return out
}
