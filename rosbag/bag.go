package rosbag

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var errMissingBagHeader = errors.New("first record is not a bag header")

// Bag is a read-only rosbag file. A Bag is not safe for concurrent use, and only one
// MessageIterator may be used at a time since they share the file offset.
type Bag struct {
	file    *os.File
	header  *RecordBagHeader
	dataPos int64
}

// Open opens the bag at path and reads its bag header record.
func Open(path string) (*Bag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	bag, err := newBag(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bag, nil
}

func newBag(f *os.File) (*Bag, error) {
	decoder := NewDecoder(f)
	record, err := decoder.Read()
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: %v", errMissingBagHeader, io.ErrUnexpectedEOF)
		}
		return nil, err
	}

	header, ok := record.(*RecordBagHeader)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", errMissingBagHeader, record.Op())
	}

	return &Bag{
		file:    f,
		header:  header,
		dataPos: decoder.Offset(),
	}, nil
}

// Close releases the underlying file.
func (bag *Bag) Close() error {
	return bag.file.Close()
}

func (bag *Bag) Header() *RecordBagHeader {
	return bag.header
}

// Indexed reports whether the bag has been closed properly by its recorder. Bags that
// are still being recorded, or whose recorder crashed, have no index section.
func (bag *Bag) Indexed() bool {
	return bag.header.IndexPos != 0
}

// decoderAt returns a decoder positioned at pos in the file.
func (bag *Bag) decoderAt(pos int64) (*Decoder, error) {
	if _, err := bag.file.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	return newDecoderAt(bag.file, pos, nil), nil
}

// BagMessage is a message record on one of the requested topics. Its payload is decoded
// lazily by Decode.
type BagMessage struct {
	Topic string
	Time  Time
	Conn  *ConnectionHeader

	record *RecordMessageData
}

func (msg *BagMessage) Record() *RecordMessageData {
	return msg.record
}

func (msg *BagMessage) Decode() (*CompositeMessage, error) {
	return msg.record.Message()
}

// MessageIterator walks the messages of a bag in the order they are stored.
type MessageIterator struct {
	decoder *Decoder
	topics  map[string]struct{}
	end     int64
	err     error
}

// Messages returns an iterator over the messages published on topics. With no topics,
// every message is returned.
func (bag *Bag) Messages(topics ...string) (*MessageIterator, error) {
	decoder, err := bag.decoderAt(bag.dataPos)
	if err != nil {
		return nil, err
	}

	it := &MessageIterator{
		decoder: decoder,
		end:     int64(bag.header.IndexPos),
	}
	if len(topics) > 0 {
		it.topics = make(map[string]struct{}, len(topics))
		for _, topic := range topics {
			it.topics[topic] = struct{}{}
		}
	}
	return it, nil
}

// Next returns the next matching message, or io.EOF once the bag is exhausted. Any other
// error is sticky.
func (it *MessageIterator) Next() (*BagMessage, error) {
	if it.err != nil {
		return nil, it.err
	}

	for {
		// the index section at the end of the bag has no messages
		if it.end > 0 && !it.decoder.InChunk() && it.decoder.Offset() >= it.end {
			it.err = io.EOF
			return nil, it.err
		}

		record, err := it.decoder.Read()
		if err != nil {
			it.err = err
			return nil, err
		}

		msgRecord, ok := record.(*RecordMessageData)
		if !ok {
			continue
		}

		connHdr := msgRecord.ConnectionHeader()
		if it.topics != nil {
			if _, ok := it.topics[connHdr.Topic]; !ok {
				continue
			}
		}

		return &BagMessage{
			Topic:  connHdr.Topic,
			Time:   msgRecord.Time,
			Conn:   connHdr,
			record: msgRecord,
		}, nil
	}
}
