package rosbag

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

const (
	lenInBytes           = 4
	headerFieldDelimiter = '='
	// records larger than this are rejected before allocating their buffers
	maxRecordPartSize = 1 << 30
)

var (
	errUnsupportedCompression = errors.New("unsupported compression algorithm. Available algortihms: [none, bz2, lz4]")
	errRecordTooLarge         = errors.New("record exceeds the maximum supported size")
)

// Decoder reads the records of a rosbag as a stream. Chunks are transparently opened: the
// records stored inside of a chunk are returned right after the chunk record itself.
type Decoder struct {
	reader         *bufio.Reader
	chunkReader    io.Reader
	checkedVersion bool
	offset         int64
	conns          map[uint32]*ConnectionHeader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
		conns:  make(map[uint32]*ConnectionHeader),
	}
}

// newDecoderAt returns a decoder for a stream that is already past the version line,
// e.g. a file that has been seeked to a record boundary.
func newDecoderAt(r io.Reader, offset int64, conns map[uint32]*ConnectionHeader) *Decoder {
	decoder := NewDecoder(r)
	decoder.checkedVersion = true
	decoder.offset = offset
	if conns != nil {
		decoder.conns = conns
	}
	return decoder
}

// Offset returns the position in the source stream right after the last record that has
// been read from it. Records read from inside of a chunk don't move the offset.
func (decoder *Decoder) Offset() int64 {
	return decoder.offset
}

// InChunk reports whether the next record comes from the current chunk.
func (decoder *Decoder) InChunk() bool {
	return decoder.chunkReader != nil
}

// Read returns the next record in the rosbag. The first call checks that the rosbag
// format version is supported. When it reaches EOF, Read returns io.EOF error.
func (decoder *Decoder) Read() (Record, error) {
	if !decoder.checkedVersion {
		if err := decoder.checkVersion(); err != nil {
			return nil, err
		}

		decoder.checkedVersion = true
	}

	if decoder.chunkReader != nil {
		record, _, err := decoder.decodeRecord(decoder.chunkReader)
		switch err {
		case nil:
			return record, nil
		case io.EOF:
			/* explicit ignore */
		default:
			return nil, err
		}

		// at this point, the error must be EOF, need to reset chunkReader and read from the source
		// again
		decoder.chunkReader = nil
	}

	record, n, err := decoder.decodeRecord(decoder.reader)
	if err != nil {
		return nil, err
	}
	decoder.offset += n

	return record, nil
}

func (decoder *Decoder) handleChunk(record *RecordBase) (Record, error) {
	chunkRecord := RecordChunk{
		RecordBase: record,
	}

	if err := chunkRecord.unmarshall(); err != nil {
		return nil, err
	}

	chunkReader := bytes.NewReader(record.data)
	switch chunkRecord.Compression {
	case CompressionNone:
		decoder.chunkReader = chunkReader
	case CompressionBZ2:
		decoder.chunkReader = bzip2.NewReader(chunkReader)
	case CompressionLZ4:
		decoder.chunkReader = lz4.NewReader(chunkReader)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedCompression, chunkRecord.Compression)
	}

	return &chunkRecord, nil
}

func (decoder *Decoder) handleConnection(record *RecordBase) (Record, error) {
	connRecord := RecordConnection{
		RecordBase: record,
	}

	if err := connRecord.unmarshall(); err != nil {
		return nil, err
	}

	decoder.conns[connRecord.Conn] = connRecord.connHdr
	return &connRecord, nil
}

func (decoder *Decoder) handleMessageData(record *RecordBase) (Record, error) {
	msgRecord := RecordMessageData{
		RecordBase: record,
	}

	if err := msgRecord.unmarshall(); err != nil {
		return nil, err
	}

	connHdr, ok := decoder.conns[msgRecord.Conn]
	if !ok {
		return nil, fmt.Errorf("%w: conn %d", errNotFoundConnectionHeader, msgRecord.Conn)
	}

	msgRecord.connHdr = connHdr
	return &msgRecord, nil
}

func (decoder *Decoder) checkVersion() error {
	var version Version

	// ReadSlice bounds the line by the buffer size, a non-bag file might not have any
	// newline at all
	line, err := decoder.reader.ReadSlice('\n')
	if err != nil {
		if err == io.EOF || err == bufio.ErrBufferFull {
			return fmt.Errorf("%w: missing version line", ErrNotBag)
		}
		return err
	}
	decoder.offset += int64(len(line))

	_, err = fmt.Sscanf(string(line), versionFormat, &version.Major, &version.Minor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotBag, err)
	}

	if version.Major != supportedVersion.Major || version.Minor != supportedVersion.Minor {
		return fmt.Errorf("%w: %s is not supported. %s is the current supported version", ErrUnsupportedVersion, &version, &supportedVersion)
	}

	return nil
}

// decodeRecord reads one record from r and returns it with the number of bytes consumed.
func (decoder *Decoder) decodeRecord(r io.Reader) (Record, int64, error) {
	record := &RecordBase{}

	header, err := readLenPrefixed(r)
	if err != nil {
		return nil, 0, err
	}
	record.header = header

	op, err := headerOp(header)
	if err != nil {
		return nil, 0, err
	}
	record.op = op

	data, err := readLenPrefixed(r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}
	record.data = data
	n := int64(2*lenInBytes + len(header) + len(data))

	var specialized Record
	switch op {
	case OpChunk:
		specialized, err = decoder.handleChunk(record)
	case OpConnection:
		specialized, err = decoder.handleConnection(record)
	case OpMessageData:
		specialized, err = decoder.handleMessageData(record)
	case OpBagHeader:
		specialized = &RecordBagHeader{RecordBase: record}
		err = specialized.unmarshall()
	case OpIndexData:
		specialized = &RecordIndexData{RecordBase: record}
		err = specialized.unmarshall()
	case OpChunkInfo:
		specialized = &RecordChunkInfo{RecordBase: record}
		err = specialized.unmarshall()
	default:
		err = fmt.Errorf("%w: %s", errInvalidOp, op)
	}
	if err != nil {
		return nil, 0, err
	}

	return specialized, n, nil
}

// readLenPrefixed reads a 4 byte little endian length followed by that many bytes. A clean
// EOF before the length is returned as io.EOF.
func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [lenInBytes]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	size := endian.Uint32(lenBuf[:])
	if size > maxRecordPartSize {
		return nil, fmt.Errorf("%w: %d bytes", errRecordTooLarge, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
