package bagextract

import (
	"github.com/lherman-cs/bagextract/rosbag"
)

// Info returns the summary of the bag at path. Only the bag index is read.
func Info(path string) (*rosbag.BagInfo, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	bag, err := rosbag.Open(path)
	if err != nil {
		return nil, err
	}
	defer bag.Close()

	return bag.Info()
}

// ExtractTopicNamesTypes returns the topics of the bag at path and, at the same index,
// the message type of each topic.
func ExtractTopicNamesTypes(path string) (topics []string, types []string, err error) {
	info, err := Info(path)
	if err != nil {
		return nil, nil, err
	}
	return info.TopicNames(), info.TopicTypes(), nil
}

// DisplayBagTopics returns the topics of the bag at path, in summary order.
func DisplayBagTopics(path string) ([]string, error) {
	info, err := Info(path)
	if err != nil {
		return nil, err
	}
	return info.TopicNames(), nil
}
