package bagextract

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lherman-cs/bagextract/internal/logging"
	"github.com/lherman-cs/bagextract/rosbag"
)

// RecvTimeKey is added to every record returned by ReadBag. It holds the time the
// message was recorded into the bag, in seconds.
const RecvTimeKey = "rosbag_recv_time"

var ErrInvalidWindow = errors.New("invalid message index window")

// ReadBag reads every message published on topic.
func ReadBag(path, topic string) ([]Record, error) {
	return ReadBagWindow(path, topic, 0, math.MaxInt)
}

// ReadBagWindow reads the messages of topic whose index, counted among the messages of
// topic only, is within [minIdx, maxIdx]. Reading stops as soon as maxIdx is reached.
// Records are returned in bag order.
func ReadBagWindow(path, topic string, minIdx, maxIdx int) ([]Record, error) {
	if minIdx < 0 || maxIdx < minIdx {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidWindow, minIdx, maxIdx)
	}

	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	bag, err := rosbag.Open(path)
	if err != nil {
		return nil, err
	}
	defer bag.Close()

	it, err := bag.Messages(topic)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records := make([]Record, 0)
	idx := 0
	for {
		msg, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if idx >= minIdx {
			decoded, err := msg.Decode()
			if err != nil {
				return nil, err
			}

			record := ExtractRecord(decoded)
			record[RecvTimeKey] = msg.Time.Seconds()
			records = append(records, record)
		}

		idx++
		if idx > maxIdx {
			break
		}
	}

	logging.Logger().Debug("read bag",
		zap.String("path", path),
		zap.String("topic", topic),
		zap.Int("min_idx", minIdx),
		zap.Int("max_idx", maxIdx),
		zap.Int("scanned", idx),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return records, nil
}
