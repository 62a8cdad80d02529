// Package bagtest writes small ROS bag v2.0 files for tests.
package bagtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/pierrec/lz4/v4"
)

const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07

	magic         = "#ROSBAG V2.0\n"
	bagHeaderSize = 4096
)

var le = binary.LittleEndian

type connection struct {
	topic      string
	msgType    string
	md5sum     string
	definition string
}

type message struct {
	conn uint32
	sec  uint32
	nsec uint32
	data []byte
}

// Builder accumulates connections and messages and serializes them as a bag. Messages
// are stored in the order they were added.
type Builder struct {
	conns       []connection
	msgs        []message
	compression string
	chunkSize   int
	unindexed   bool
}

func New() *Builder {
	return &Builder{
		compression: "none",
		chunkSize:   100,
	}
}

// Compression selects the chunk compression, "none" or "lz4".
func (b *Builder) Compression(compression string) *Builder {
	b.compression = compression
	return b
}

// ChunkSize sets the number of messages stored per chunk.
func (b *Builder) ChunkSize(n int) *Builder {
	b.chunkSize = n
	return b
}

// Unindexed leaves out the index section, like a bag whose recorder didn't finish.
func (b *Builder) Unindexed() *Builder {
	b.unindexed = true
	return b
}

// AddConnection registers a topic and returns its connection id.
func (b *Builder) AddConnection(topic, msgType, definition string) uint32 {
	b.conns = append(b.conns, connection{
		topic:      topic,
		msgType:    msgType,
		md5sum:     fmt.Sprintf("%032x", len(b.conns)+1),
		definition: definition,
	})
	return uint32(len(b.conns) - 1)
}

func (b *Builder) AddMessage(conn uint32, sec, nsec uint32, data []byte) {
	b.msgs = append(b.msgs, message{conn: conn, sec: sec, nsec: nsec, data: data})
}

func (b *Builder) WriteFile(path string) error {
	raw, err := b.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

type chunkInfo struct {
	pos    uint64
	start  [8]byte
	end    [8]byte
	counts map[uint32]uint32
}

func (b *Builder) Bytes() ([]byte, error) {
	if b.compression != "none" && b.compression != "lz4" {
		return nil, fmt.Errorf("bagtest: unsupported compression %q", b.compression)
	}
	if b.chunkSize <= 0 {
		return nil, fmt.Errorf("bagtest: invalid chunk size %d", b.chunkSize)
	}

	var body bytes.Buffer
	bodyPos := uint64(len(magic) + bagHeaderSize)
	written := make(map[uint32]bool)
	var infos []chunkInfo

	for first := 0; first < len(b.msgs); first += b.chunkSize {
		last := first + b.chunkSize
		if last > len(b.msgs) {
			last = len(b.msgs)
		}

		var chunk bytes.Buffer
		// unused connections are announced in the first chunk so that unindexed bags
		// still list them
		if first == 0 {
			for id := range b.conns {
				if !b.used(uint32(id)) {
					chunk.Write(b.connectionRecord(uint32(id)))
					written[uint32(id)] = true
				}
			}
		}

		info := chunkInfo{
			pos:    bodyPos + uint64(body.Len()),
			counts: make(map[uint32]uint32),
		}
		index := make(map[uint32][]byte)
		for i, msg := range b.msgs[first:last] {
			if !written[msg.conn] {
				chunk.Write(b.connectionRecord(msg.conn))
				written[msg.conn] = true
			}

			stamp := timeBytes(msg.sec, msg.nsec)
			if i == 0 || bytes.Compare(swapTime(stamp), swapTime(info.start)) < 0 {
				info.start = stamp
			}
			if i == 0 || bytes.Compare(swapTime(stamp), swapTime(info.end)) > 0 {
				info.end = stamp
			}

			entry := make([]byte, 12)
			copy(entry, stamp[:])
			le.PutUint32(entry[8:], uint32(chunk.Len()))
			index[msg.conn] = append(index[msg.conn], entry...)
			info.counts[msg.conn]++

			chunk.Write(record(
				[]field{
					{"op", []byte{opMessageData}},
					{"conn", u32(msg.conn)},
					{"time", stamp[:]},
				},
				msg.data,
			))
		}

		compressed, err := b.compress(chunk.Bytes())
		if err != nil {
			return nil, err
		}
		body.Write(record(
			[]field{
				{"op", []byte{opChunk}},
				{"compression", []byte(b.compression)},
				{"size", u32(uint32(chunk.Len()))},
			},
			compressed,
		))

		for _, conn := range sortedConns(info.counts) {
			body.Write(record(
				[]field{
					{"op", []byte{opIndexData}},
					{"ver", u32(1)},
					{"conn", u32(conn)},
					{"count", u32(info.counts[conn])},
				},
				index[conn],
			))
		}
		infos = append(infos, info)
	}

	var indexPos uint64
	var connCount, chunkCount uint32
	if !b.unindexed {
		indexPos = bodyPos + uint64(body.Len())
		connCount = uint32(len(b.conns))
		chunkCount = uint32(len(infos))

		for id := range b.conns {
			body.Write(b.connectionRecord(uint32(id)))
		}
		for _, info := range infos {
			var data []byte
			for _, conn := range sortedConns(info.counts) {
				data = append(data, u32(conn)...)
				data = append(data, u32(info.counts[conn])...)
			}
			body.Write(record(
				[]field{
					{"op", []byte{opChunkInfo}},
					{"ver", u32(1)},
					{"chunk_pos", u64(info.pos)},
					{"start_time", info.start[:]},
					{"end_time", info.end[:]},
					{"count", u32(uint32(len(info.counts)))},
				},
				data,
			))
		}
	}

	header := encodeFields([]field{
		{"op", []byte{opBagHeader}},
		{"index_pos", u64(indexPos)},
		{"conn_count", u32(connCount)},
		{"chunk_count", u32(chunkCount)},
	})
	padding := bytes.Repeat([]byte{' '}, bagHeaderSize-2*4-len(header))

	var out bytes.Buffer
	out.WriteString(magic)
	out.Write(lenPrefixed(header))
	out.Write(lenPrefixed(padding))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func (b *Builder) used(conn uint32) bool {
	for _, msg := range b.msgs {
		if msg.conn == conn {
			return true
		}
	}
	return false
}

func (b *Builder) connectionRecord(id uint32) []byte {
	conn := b.conns[id]
	return record(
		[]field{
			{"op", []byte{opConnection}},
			{"conn", u32(id)},
			{"topic", []byte(conn.topic)},
		},
		encodeFields([]field{
			{"topic", []byte(conn.topic)},
			{"type", []byte(conn.msgType)},
			{"md5sum", []byte(conn.md5sum)},
			{"message_definition", []byte(conn.definition)},
		}),
	)
}

func (b *Builder) compress(raw []byte) ([]byte, error) {
	if b.compression == "none" {
		return raw, nil
	}

	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type field struct {
	name  string
	value []byte
}

func encodeFields(fields []field) []byte {
	var buf []byte
	for _, f := range fields {
		buf = append(buf, u32(uint32(len(f.name)+1+len(f.value)))...)
		buf = append(buf, f.name...)
		buf = append(buf, '=')
		buf = append(buf, f.value...)
	}
	return buf
}

func record(header []field, data []byte) []byte {
	return append(lenPrefixed(encodeFields(header)), lenPrefixed(data)...)
}

func lenPrefixed(b []byte) []byte {
	return append(u32(uint32(len(b))), b...)
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	le.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	le.PutUint64(b, v)
	return b
}

func timeBytes(sec, nsec uint32) [8]byte {
	var b [8]byte
	le.PutUint32(b[:], sec)
	le.PutUint32(b[4:], nsec)
	return b
}

// swapTime returns the time as big endian bytes so that it can be compared bytewise.
func swapTime(b [8]byte) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out, le.Uint32(b[:]))
	binary.BigEndian.PutUint32(out[4:], le.Uint32(b[4:]))
	return out
}

func sortedConns(counts map[uint32]uint32) []uint32 {
	conns := make([]uint32, 0, len(counts))
	for conn := range counts {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i] < conns[j] })
	return conns
}
