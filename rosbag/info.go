package rosbag

import (
	"fmt"
	"io"
	"sort"
)

// TopicInfo summarizes one topic of a bag. A topic may be recorded through several
// connections, e.g. with multiple publishers.
type TopicInfo struct {
	Topic        string `json:"topic" yaml:"topic"`
	Type         string `json:"type" yaml:"type"`
	MD5Sum       string `json:"md5sum" yaml:"md5sum"`
	MessageCount uint64 `json:"message_count" yaml:"message_count"`
	Connections  int    `json:"connections" yaml:"connections"`
}

// BagInfo is the summary of a bag. Topics are sorted by name.
type BagInfo struct {
	Version      Version     `json:"version" yaml:"version"`
	Indexed      bool        `json:"indexed" yaml:"indexed"`
	StartTime    Time        `json:"start_time" yaml:"start_time"`
	EndTime      Time        `json:"end_time" yaml:"end_time"`
	ChunkCount   int         `json:"chunk_count" yaml:"chunk_count"`
	MessageCount uint64      `json:"message_count" yaml:"message_count"`
	Topics       []TopicInfo `json:"topics" yaml:"topics"`
}

// TopicNames returns the topic names in summary order.
func (info *BagInfo) TopicNames() []string {
	names := make([]string, len(info.Topics))
	for i, topic := range info.Topics {
		names[i] = topic.Topic
	}
	return names
}

// TopicTypes returns the message type of each topic, index aligned with TopicNames.
func (info *BagInfo) TopicTypes() []string {
	types := make([]string, len(info.Topics))
	for i, topic := range info.Topics {
		types[i] = topic.Type
	}
	return types
}

type infoBuilder struct {
	info   BagInfo
	conns  map[uint32]*ConnectionHeader
	counts map[uint32]uint64
}

func newInfoBuilder(indexed bool) *infoBuilder {
	return &infoBuilder{
		info: BagInfo{
			Version: supportedVersion,
			Indexed: indexed,
		},
		conns:  make(map[uint32]*ConnectionHeader),
		counts: make(map[uint32]uint64),
	}
}

func (b *infoBuilder) addTimeRange(start, end Time) {
	if b.info.StartTime.IsZero() || start.Before(b.info.StartTime) {
		b.info.StartTime = start
	}
	if b.info.EndTime.Before(end) {
		b.info.EndTime = end
	}
}

func (b *infoBuilder) build() *BagInfo {
	byTopic := make(map[string]*TopicInfo)
	for conn, hdr := range b.conns {
		topic, ok := byTopic[hdr.Topic]
		if !ok {
			topic = &TopicInfo{
				Topic:  hdr.Topic,
				Type:   hdr.Type,
				MD5Sum: hdr.MD5Sum,
			}
			byTopic[hdr.Topic] = topic
		}
		topic.Connections++
		topic.MessageCount += b.counts[conn]
		b.info.MessageCount += b.counts[conn]
	}

	b.info.Topics = make([]TopicInfo, 0, len(byTopic))
	for _, topic := range byTopic {
		b.info.Topics = append(b.info.Topics, *topic)
	}
	sort.Slice(b.info.Topics, func(i, j int) bool {
		return b.info.Topics[i].Topic < b.info.Topics[j].Topic
	})

	return &b.info
}

// Info summarizes the bag from its index section, no message is read. Unindexed bags are
// summarized by scanning their records instead.
func (bag *Bag) Info() (*BagInfo, error) {
	if !bag.Indexed() {
		return bag.scanInfo()
	}

	decoder, err := bag.decoderAt(int64(bag.header.IndexPos))
	if err != nil {
		return nil, err
	}

	b := newInfoBuilder(true)
	for i := uint32(0); i < bag.header.ConnCount; i++ {
		record, err := decoder.Read()
		if err != nil {
			return nil, fmt.Errorf("index connection %d: %w", i, unexpectedEOF(err))
		}

		connRecord, ok := record.(*RecordConnection)
		if !ok {
			return nil, fmt.Errorf("index connection %d: %w: got %s", i, errInvalidOp, record.Op())
		}
		b.conns[connRecord.Conn] = connRecord.ConnectionHeader()
	}

	for i := uint32(0); i < bag.header.ChunkCount; i++ {
		record, err := decoder.Read()
		if err != nil {
			return nil, fmt.Errorf("index chunk info %d: %w", i, unexpectedEOF(err))
		}

		chunkInfo, ok := record.(*RecordChunkInfo)
		if !ok {
			return nil, fmt.Errorf("index chunk info %d: %w: got %s", i, errInvalidOp, record.Op())
		}

		entries, err := chunkInfo.Entries()
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			b.counts[entry.Conn] += uint64(entry.Count)
		}
		b.addTimeRange(chunkInfo.StartTime, chunkInfo.EndTime)
		b.info.ChunkCount++
	}

	return b.build(), nil
}

func (bag *Bag) scanInfo() (*BagInfo, error) {
	decoder, err := bag.decoderAt(bag.dataPos)
	if err != nil {
		return nil, err
	}

	b := newInfoBuilder(false)
	for {
		record, err := decoder.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch record := record.(type) {
		case *RecordChunk:
			b.info.ChunkCount++
		case *RecordConnection:
			b.conns[record.Conn] = record.ConnectionHeader()
		case *RecordMessageData:
			b.counts[record.Conn]++
			b.addTimeRange(record.Time, record.Time)
		}
	}

	return b.build(), nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
