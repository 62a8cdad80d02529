package rosbag

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errInvalidFormat     = errors.New("invalid message format")
	errUnresolvedMsgType = errors.New("failed to resolve a complex message type")
	errInvalidConstType  = errors.New("invalid const type")
)

type MessageFieldType uint8

const (
	MessageFieldTypeBool MessageFieldType = iota + 1
	MessageFieldTypeInt8
	MessageFieldTypeUint8
	MessageFieldTypeInt16
	MessageFieldTypeUint16
	MessageFieldTypeInt32
	MessageFieldTypeUint32
	MessageFieldTypeInt64
	MessageFieldTypeUint64
	MessageFieldTypeFloat32
	MessageFieldTypeFloat64
	MessageFieldTypeString
	MessageFieldTypeTime
	MessageFieldTypeDuration
	MessageFieldTypeComplex
)

var (
	messageFieldTypeMap = map[string]MessageFieldType{
		"bool":     MessageFieldTypeBool,
		"int8":     MessageFieldTypeInt8,
		"byte":     MessageFieldTypeInt8,
		"uint8":    MessageFieldTypeUint8,
		"char":     MessageFieldTypeUint8,
		"int16":    MessageFieldTypeInt16,
		"uint16":   MessageFieldTypeUint16,
		"int32":    MessageFieldTypeInt32,
		"uint32":   MessageFieldTypeUint32,
		"int64":    MessageFieldTypeInt64,
		"uint64":   MessageFieldTypeUint64,
		"float32":  MessageFieldTypeFloat32,
		"float64":  MessageFieldTypeFloat64,
		"string":   MessageFieldTypeString,
		"time":     MessageFieldTypeTime,
		"duration": MessageFieldTypeDuration,
	}
)

func (fieldType MessageFieldType) String() string {
	switch fieldType {
	case MessageFieldTypeInt8:
		return "int8"
	case MessageFieldTypeUint8:
		return "uint8"
	case MessageFieldTypeComplex:
		return "complex"
	}

	for name, t := range messageFieldTypeMap {
		if t == fieldType {
			return name
		}
	}
	return fmt.Sprintf("MessageFieldType(%d)", uint8(fieldType))
}

// ConnectionHeader is the data section of a connection record. It describes the topic
// and the message type that every message on the connection is serialized with.
type ConnectionHeader struct {
	Topic             string
	Type              string
	MD5Sum            string
	CallerID          string
	Latching          bool
	MessageDefinition MessageDefinition
}

func (hdr *ConnectionHeader) unmarshall(b []byte) error {
	var rawDef []byte
	err := iterateHeaderFields(b, func(key, value []byte) error {
		switch string(key) {
		case "topic":
			hdr.Topic = string(value)
		case "type":
			hdr.Type = string(value)
		case "md5sum":
			hdr.MD5Sum = string(value)
		case "message_definition":
			rawDef = value
		case "callerid":
			hdr.CallerID = string(value)
		case "latching":
			hdr.Latching = bytes.Equal(value, []byte("1"))
		default:
			ignoreField(OpConnection, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	hdr.MessageDefinition.Type = hdr.Type
	return hdr.MessageDefinition.unmarshall(rawDef)
}

// MessageDefinition is defined here, http://wiki.ros.org/msg
type MessageDefinition struct {
	Type   string
	Fields []*MessageFieldDefinition
	// Constants are declared in the definition but never serialized.
	Constants []*MessageFieldDefinition
}

type MessageFieldDefinition struct {
	Type    MessageFieldType
	Name    string
	IsArray bool
	// ArraySize is only used when the field is a fixed-size array. If it's a slice, ArraySize is -1
	ArraySize int
	// Value is an optional field. It's only being used for constants
	Value interface{}
	// MsgType is only being used when type is complex. This defines the custom
	// message type.
	MsgType *MessageDefinition
}

// decodeConstValue decodes raw to concrete type. Raw is expected to be in ASCII.
// Constant types can be any builtin types except Time and Duration.
// Reference: http://wiki.ros.org/msg#Constants
func decodeConstValue(fieldType MessageFieldType, raw []byte) (interface{}, error) {
	rawStr := string(raw)

	switch fieldType {
	case MessageFieldTypeBool:
		v, err := strconv.ParseBool(rawStr)
		return v, err
	case MessageFieldTypeInt8:
		v, err := strconv.ParseInt(rawStr, 10, 8)
		return int8(v), err
	case MessageFieldTypeUint8:
		v, err := strconv.ParseUint(rawStr, 10, 8)
		return uint8(v), err
	case MessageFieldTypeInt16:
		v, err := strconv.ParseInt(rawStr, 10, 16)
		return int16(v), err
	case MessageFieldTypeUint16:
		v, err := strconv.ParseUint(rawStr, 10, 16)
		return uint16(v), err
	case MessageFieldTypeInt32:
		v, err := strconv.ParseInt(rawStr, 10, 32)
		return int32(v), err
	case MessageFieldTypeUint32:
		v, err := strconv.ParseUint(rawStr, 10, 32)
		return uint32(v), err
	case MessageFieldTypeInt64:
		return strconv.ParseInt(rawStr, 10, 64)
	case MessageFieldTypeUint64:
		return strconv.ParseUint(rawStr, 10, 64)
	case MessageFieldTypeFloat32:
		v, err := strconv.ParseFloat(rawStr, 32)
		return float32(v), err
	case MessageFieldTypeFloat64:
		return strconv.ParseFloat(rawStr, 64)
	case MessageFieldTypeString:
		return rawStr, nil
	default:
		return nil, errInvalidConstType
	}
}

func (def *MessageDefinition) unmarshall(b []byte) error {
	var err error
	lines := bytes.Split(b, []byte("\n"))
	unresolvedFields := make(map[*MessageFieldDefinition][]byte)
	complexMsgs := []*MessageDefinition{def}

	for _, line := range lines {
		// find comments
		idx := bytes.IndexByte(line, '#')
		if idx != -1 {
			line = line[:idx]
		}

		// remove whitespaces
		line = bytes.TrimSpace(line)

		// these are usually comment lines, ignore
		if len(line) == 0 {
			continue
		}

		// at this point, if there's a '=', it just means a separator, ignore
		if line[0] == '=' {
			continue
		}

		// detect if this is a complex message definition
		if bytes.HasPrefix(line, []byte("MSG:")) {
			msgType := bytes.TrimSpace(line[len("MSG:"):])
			complexMsgs = append(complexMsgs, &MessageDefinition{Type: string(msgType)})
			continue
		}

		idx = bytes.IndexAny(line, " \t")
		if idx == -1 {
			return fmt.Errorf("%w: %q has no field name", errInvalidFormat, line)
		}
		fieldType := line[:idx]
		fieldName := bytes.TrimSpace(line[idx+1:])

		idx = bytes.IndexByte(fieldType, '[')
		var isArray bool
		var arraySize int = -1
		if idx != -1 {
			off := bytes.IndexByte(fieldType[idx:], ']')
			if off == -1 {
				return fmt.Errorf("%w: %q has an unterminated array type", errInvalidFormat, line)
			}
			if off > 1 {
				arraySizeRaw := fieldType[idx+1 : idx+off]
				arraySize, err = strconv.Atoi(string(arraySizeRaw))
				if err != nil {
					return err
				}
			}

			fieldType = fieldType[:idx]
			isArray = true
		}

		msgFieldType, ok := messageFieldTypeMap[string(fieldType)]
		if !ok {
			msgFieldType = MessageFieldTypeComplex
		}

		complexMsg := complexMsgs[len(complexMsgs)-1]

		// detect constant
		idx = bytes.IndexByte(fieldName, '=')
		if idx != -1 {
			constantValue, err := decodeConstValue(msgFieldType, bytes.TrimSpace(fieldName[idx+1:]))
			if err != nil {
				return fmt.Errorf("constant %q: %w", line, err)
			}

			complexMsg.Constants = append(complexMsg.Constants, &MessageFieldDefinition{
				Type:      msgFieldType,
				Name:      string(bytes.TrimSpace(fieldName[:idx])),
				ArraySize: -1,
				Value:     constantValue,
			})
			continue
		}

		fieldDef := MessageFieldDefinition{
			Type:      msgFieldType,
			Name:      string(fieldName),
			IsArray:   isArray,
			ArraySize: arraySize,
		}

		if fieldDef.Type == MessageFieldTypeComplex {
			unresolvedFields[&fieldDef] = fieldType
		}
		complexMsg.Fields = append(complexMsg.Fields, &fieldDef)
	}

	for field, msgType := range unresolvedFields {
		msgDef := findComplexMsg(complexMsgs, string(msgType))
		if msgDef == nil {
			return fmt.Errorf("%w: %s", errUnresolvedMsgType, msgType)
		}

		field.MsgType = msgDef
	}

	return nil
}

// findComplexMsg iterates complexMsgs, and find for msgType. msgType can have an optional
// package name as prefix.
func findComplexMsg(complexMsgs []*MessageDefinition, msgType string) *MessageDefinition {
	for _, cur := range complexMsgs {
		if cur.Type == msgType {
			return cur
		}
	}

	for _, cur := range complexMsgs {
		if strings.HasSuffix(cur.Type, "/"+msgType) {
			return cur
		}
	}
	return nil
}
