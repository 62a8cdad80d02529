package rosbag

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lherman-cs/bagextract/internal/logging"
)

const (
	versionFormat = "#ROSBAG V%d.%d\n"
)

var (
	supportedVersion = Version{
		Major: 2,
		Minor: 0,
	}
)

var (
	ErrNotBag             = errors.New("not a rosbag file")
	ErrUnsupportedVersion = errors.New("unsupported rosbag version")

	errInvalidOp                = errors.New("invalid record op")
	errInvalidHeader            = errors.New("invalid record header")
	errNotFoundConnectionHeader = errors.New("message data refers to an unknown connection")
)

type Op uint8

const (
	// OpInvalid is an extension from the standard. This Op marks an invalid Op.
	OpInvalid     Op = 0x00
	OpBagHeader   Op = 0x03
	OpChunk       Op = 0x05
	OpConnection  Op = 0x07
	OpMessageData Op = 0x02
	OpIndexData   Op = 0x04
	OpChunkInfo   Op = 0x06
)

func (op Op) String() string {
	switch op {
	case OpBagHeader:
		return "bag header"
	case OpChunk:
		return "chunk"
	case OpConnection:
		return "connection"
	case OpMessageData:
		return "message data"
	case OpIndexData:
		return "index data"
	case OpChunkInfo:
		return "chunk info"
	default:
		return fmt.Sprintf("op(0x%02x)", uint8(op))
	}
}

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionBZ2  Compression = "bz2"
	CompressionLZ4  Compression = "lz4"
)

type Version struct {
	Major uint `json:"major" yaml:"major"`
	Minor uint `json:"minor" yaml:"minor"`
}

func (version *Version) String() string {
	return fmt.Sprintf("%d.%d", version.Major, version.Minor)
}

type Record interface {
	Op() Op
	Header() []byte
	Data() []byte
	String() string
	unmarshall() error
}

type RecordBase struct {
	op     Op
	header []byte
	data   []byte
}

func (record *RecordBase) Op() Op {
	return record.op
}

func (record *RecordBase) Header() []byte {
	return record.header
}

func (record *RecordBase) Data() []byte {
	return record.data
}

func (record *RecordBase) String() string {
	return fmt.Sprintf(`
op         : %s
header_len : %d bytes
data_len   : %d bytes
`, record.op, len(record.header), len(record.data))
}

func (record *RecordBase) unmarshall() error {
	return nil
}

// ignoreField is used by the specialized records for header keys they don't know about.
func ignoreField(op Op, key []byte) {
	if bytes.Equal(key, []byte("op")) {
		// explicit ignore
		return
	}
	logging.Logger().Debug("unknown header field. Ignoring...",
		zap.Stringer("op", op), zap.ByteString("field", key))
}

type RecordBagHeader struct {
	*RecordBase
	IndexPos   uint64
	ConnCount  uint32
	ChunkCount uint32
}

func (record *RecordBagHeader) String() string {
	return fmt.Sprintf(`
index_pos   : %d
conn_count  : %d
chunk_count : %d
`, record.IndexPos, record.ConnCount, record.ChunkCount)
}

func (record *RecordBagHeader) unmarshall() error {
	return iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "index_pos":
			record.IndexPos, err = fieldUint64(key, value)
		case "conn_count":
			record.ConnCount, err = fieldUint32(key, value)
		case "chunk_count":
			record.ChunkCount, err = fieldUint32(key, value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
}

type RecordChunk struct {
	*RecordBase
	Compression Compression
	Size        uint32
}

func (record *RecordChunk) String() string {
	return fmt.Sprintf(`
compression : %s
size        : %d bytes
`, record.Compression, record.Size)
}

func (record *RecordChunk) unmarshall() error {
	return iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "compression":
			record.Compression = Compression(value)
		case "size":
			record.Size, err = fieldUint32(key, value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
}

type RecordConnection struct {
	*RecordBase
	Conn  uint32
	Topic string

	connHdr *ConnectionHeader
}

func (record *RecordConnection) String() string {
	return fmt.Sprintf(`
conn  : %d
topic : %s
type  : %s
`, record.Conn, record.Topic, record.connHdr.Type)
}

// ConnectionHeader returns the parsed connection header stored in the data section.
func (record *RecordConnection) ConnectionHeader() *ConnectionHeader {
	return record.connHdr
}

func (record *RecordConnection) unmarshall() error {
	err := iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "conn":
			record.Conn, err = fieldUint32(key, value)
		case "topic":
			record.Topic = string(value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
	if err != nil {
		return err
	}

	var hdr ConnectionHeader
	if err := hdr.unmarshall(record.data); err != nil {
		return fmt.Errorf("connection %d (%s): %w", record.Conn, record.Topic, err)
	}

	// the record header topic is authoritative, the data section may omit it
	if hdr.Topic == "" {
		hdr.Topic = record.Topic
	}
	record.connHdr = &hdr
	return nil
}

type RecordMessageData struct {
	*RecordBase
	Conn uint32
	Time Time

	connHdr *ConnectionHeader
}

func (record *RecordMessageData) String() string {
	return fmt.Sprintf(`
conn : %d
time : %s
`, record.Conn, record.Time)
}

// ConnectionHeader returns the header of the connection this message was published on.
// It's nil until the record went through a Decoder.
func (record *RecordMessageData) ConnectionHeader() *ConnectionHeader {
	return record.connHdr
}

// Message decodes the serialized data section with the connection's message definition.
func (record *RecordMessageData) Message() (*CompositeMessage, error) {
	if record.connHdr == nil {
		return nil, errNotFoundConnectionHeader
	}

	msg, _, err := decodeMessage(&record.connHdr.MessageDefinition, record.data)
	if err != nil {
		return nil, fmt.Errorf("decode %s message on %s: %w", record.connHdr.Type, record.connHdr.Topic, err)
	}
	return msg, nil
}

func (record *RecordMessageData) unmarshall() error {
	return iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "conn":
			record.Conn, err = fieldUint32(key, value)
		case "time":
			if len(value) != 8 {
				return fmt.Errorf("%w: time field is %d bytes", errInvalidHeader, len(value))
			}
			record.Time = extractTime(value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
}

// IndexEntry locates one message of a connection inside a chunk.
type IndexEntry struct {
	Time   Time
	Offset uint32
}

type RecordIndexData struct {
	*RecordBase
	Ver   uint32
	Conn  uint32
	Count uint32
}

func (record *RecordIndexData) String() string {
	return fmt.Sprintf(`
ver   : %d
conn  : %d
count : %d
`, record.Ver, record.Conn, record.Count)
}

// Entries decodes the data section. Only version 1 is defined.
func (record *RecordIndexData) Entries() ([]IndexEntry, error) {
	const entrySize = 12
	if len(record.data) < int(record.Count)*entrySize {
		return nil, fmt.Errorf("%w: index data holds %d bytes for %d entries", errInvalidHeader, len(record.data), record.Count)
	}

	entries := make([]IndexEntry, record.Count)
	raw := record.data
	for i := range entries {
		entries[i].Time = extractTime(raw)
		entries[i].Offset = endian.Uint32(raw[8:])
		raw = raw[entrySize:]
	}
	return entries, nil
}

func (record *RecordIndexData) unmarshall() error {
	return iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "ver":
			record.Ver, err = fieldUint32(key, value)
		case "conn":
			record.Conn, err = fieldUint32(key, value)
		case "count":
			record.Count, err = fieldUint32(key, value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
}

// ChunkInfoEntry is the number of messages a connection has inside one chunk.
type ChunkInfoEntry struct {
	Conn  uint32
	Count uint32
}

type RecordChunkInfo struct {
	*RecordBase
	Ver       uint32
	ChunkPos  uint64
	StartTime Time
	EndTime   Time
	Count     uint32
}

func (record *RecordChunkInfo) String() string {
	return fmt.Sprintf(`
ver        : %d
chunk_pos  : %d
start_time : %s
end_time   : %s
count      : %d
`, record.Ver, record.ChunkPos, record.StartTime, record.EndTime, record.Count)
}

// Entries decodes the per-connection message counts of the chunk.
func (record *RecordChunkInfo) Entries() ([]ChunkInfoEntry, error) {
	const entrySize = 8
	if len(record.data) < int(record.Count)*entrySize {
		return nil, fmt.Errorf("%w: chunk info holds %d bytes for %d entries", errInvalidHeader, len(record.data), record.Count)
	}

	entries := make([]ChunkInfoEntry, record.Count)
	raw := record.data
	for i := range entries {
		entries[i].Conn = endian.Uint32(raw)
		entries[i].Count = endian.Uint32(raw[4:])
		raw = raw[entrySize:]
	}
	return entries, nil
}

func (record *RecordChunkInfo) unmarshall() error {
	return iterateHeaderFields(record.header, func(key, value []byte) error {
		var err error
		switch string(key) {
		case "ver":
			record.Ver, err = fieldUint32(key, value)
		case "chunk_pos":
			record.ChunkPos, err = fieldUint64(key, value)
		case "start_time", "end_time":
			if len(value) != 8 {
				return fmt.Errorf("%w: %s field is %d bytes", errInvalidHeader, key, len(value))
			}
			if key[0] == 's' {
				record.StartTime = extractTime(value)
			} else {
				record.EndTime = extractTime(value)
			}
		case "count":
			record.Count, err = fieldUint32(key, value)
		default:
			ignoreField(record.op, key)
		}
		return err
	})
}
