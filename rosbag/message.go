package rosbag

import (
	"fmt"
	"strings"
)

// Message is a decoded message value. It's one of *CompositeMessage, PrimitiveMessage
// or ArrayMessage, which is decided by the message definition while decoding.
type Message interface {
	isMessage()
}

// MessageField is a named child of a CompositeMessage.
type MessageField struct {
	Name  string
	Value Message
}

// CompositeMessage is a message with a fixed set of named fields, in definition order.
type CompositeMessage struct {
	Type   string
	Fields []MessageField
}

func (*CompositeMessage) isMessage() {}

func (msg *CompositeMessage) FieldNames() []string {
	names := make([]string, len(msg.Fields))
	for i, field := range msg.Fields {
		names[i] = field.Name
	}
	return names
}

// Field returns the value of the named field.
func (msg *CompositeMessage) Field(name string) (Message, bool) {
	for _, field := range msg.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

func (msg *CompositeMessage) String() string {
	var sb strings.Builder
	sb.WriteString(msg.Type)
	sb.WriteByte('{')
	for i, field := range msg.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", field.Name, field.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}

// PrimitiveMessage is a leaf: a builtin scalar, a string, or a slice of them.
type PrimitiveMessage struct {
	Type  MessageFieldType
	Value interface{}
}

func (PrimitiveMessage) isMessage() {}

func (msg PrimitiveMessage) String() string {
	return fmt.Sprint(msg.Value)
}

// ArrayMessage is an array of composite values, e.g. a Pose[] or a time[] field.
type ArrayMessage []Message

func (ArrayMessage) isMessage() {}

// timeMessage exposes a time primitive as its secs/nsecs pair.
func timeMessage(t Time) *CompositeMessage {
	return &CompositeMessage{
		Type: "time",
		Fields: []MessageField{
			{Name: "secs", Value: PrimitiveMessage{Type: MessageFieldTypeUint32, Value: t.Sec}},
			{Name: "nsecs", Value: PrimitiveMessage{Type: MessageFieldTypeUint32, Value: t.NSec}},
		},
	}
}

func durationMessage(d Duration) *CompositeMessage {
	return &CompositeMessage{
		Type: "duration",
		Fields: []MessageField{
			{Name: "secs", Value: PrimitiveMessage{Type: MessageFieldTypeInt32, Value: d.Sec}},
			{Name: "nsecs", Value: PrimitiveMessage{Type: MessageFieldTypeInt32, Value: d.NSec}},
		},
	}
}

// decodeMessage decodes raw with def and returns the remaining bytes.
func decodeMessage(def *MessageDefinition, raw []byte) (*CompositeMessage, []byte, error) {
	msg := &CompositeMessage{
		Type:   def.Type,
		Fields: make([]MessageField, 0, len(def.Fields)),
	}

	for _, field := range def.Fields {
		var v Message
		var err error

		switch {
		case field.Type != MessageFieldTypeComplex:
			v, raw, err = decodeFieldBasic(field, raw)
		case field.IsArray:
			v, raw, err = decodeFieldComplexSlice(field, raw)
		default:
			v, raw, err = decodeMessage(field.MsgType, raw)
		}

		if err != nil {
			return nil, raw, fmt.Errorf("field %s: %w", field.Name, err)
		}

		msg.Fields = append(msg.Fields, MessageField{Name: field.Name, Value: v})
	}

	return msg, raw, nil
}

func decodeFieldBasic(field *MessageFieldDefinition, raw []byte) (Message, []byte, error) {
	var decodeFuncs map[MessageFieldType]fieldDecodeFunc
	if field.IsArray {
		decodeFuncs = fieldDecodeSliceHelper
	} else {
		decodeFuncs = fieldDecodeBasicHelper
	}

	v, off, ok := decodeFuncs[field.Type](raw, field.ArraySize)
	if !ok {
		return nil, raw, errInvalidFormat
	}
	raw = raw[off:]

	switch v := v.(type) {
	case Time:
		return timeMessage(v), raw, nil
	case Duration:
		return durationMessage(v), raw, nil
	case []Time:
		arr := make(ArrayMessage, len(v))
		for i := range v {
			arr[i] = timeMessage(v[i])
		}
		return arr, raw, nil
	case []Duration:
		arr := make(ArrayMessage, len(v))
		for i := range v {
			arr[i] = durationMessage(v[i])
		}
		return arr, raw, nil
	}

	return PrimitiveMessage{Type: field.Type, Value: v}, raw, nil
}

func decodeFieldComplexSlice(field *MessageFieldDefinition, raw []byte) (Message, []byte, error) {
	length, off, ok := fieldDecodeLength(raw, field.ArraySize)
	if !ok {
		return nil, raw, errInvalidFormat
	}
	raw = raw[off:]

	var err error
	arr := make(ArrayMessage, length)
	for i := range arr {
		arr[i], raw, err = decodeMessage(field.MsgType, raw)
		if err != nil {
			return nil, raw, fmt.Errorf("index %d: %w", i, err)
		}
	}

	return arr, raw, nil
}
