// Package bagextract flattens the messages of ROS bags into plain maps that numeric
// tooling can consume without knowing the message schemas.
//
// Errors coming from the bag itself, a missing file, a corrupt record, a message that
// doesn't match its definition, are returned as they are. Reading a topic that isn't in
// the bag isn't an error, it yields no records.
package bagextract

import (
	"go.uber.org/zap"

	"github.com/lherman-cs/bagextract/internal/logging"
	"github.com/lherman-cs/bagextract/rosbag"
)

// Record is a flattened message. Values are builtin values, slices of them, nested
// Records, or []interface{} for arrays of messages.
type Record map[string]interface{}

// Extract flattens msg. Composite messages become Records holding exactly their fields,
// primitives are returned as they are.
func Extract(msg rosbag.Message) interface{} {
	switch msg := msg.(type) {
	case *rosbag.CompositeMessage:
		return ExtractRecord(msg)
	case rosbag.PrimitiveMessage:
		return msg.Value
	case rosbag.ArrayMessage:
		values := make([]interface{}, len(msg))
		for i, elem := range msg {
			values[i] = Extract(elem)
		}
		return values
	default:
		return nil
	}
}

// ExtractRecord is Extract for the top level of a message.
func ExtractRecord(msg *rosbag.CompositeMessage) Record {
	record := make(Record, len(msg.Fields))
	for _, field := range msg.Fields {
		record[field.Name] = Extract(field.Value)
	}
	return record
}

// SetLogger installs the logger used by this module. Logging is off by default.
func SetLogger(l *zap.Logger) {
	logging.Set(l)
}
