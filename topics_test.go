//go:build !integration

package bagextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherman-cs/bagextract/internal/bagtest"
)

func writeTopicsBag(t *testing.T, b *bagtest.Builder) string {
	t.Helper()

	tf := b.AddConnection("/tf", "tf2_msgs/TFMessage", "uint32 count\n")
	imu := b.AddConnection("/imu", "sensor_msgs/Imu", "float64 ax\n")
	// a second publisher on /imu
	imu2 := b.AddConnection("/imu", "sensor_msgs/Imu", "float64 ax\n")
	b.AddConnection("/camera/info", "sensor_msgs/CameraInfo", "uint32 height\n")

	b.AddMessage(tf, 1, 0, new(bagtest.Payload).Uint32(1).Bytes())
	b.AddMessage(imu, 2, 0, new(bagtest.Payload).Float64(9.8).Bytes())
	b.AddMessage(imu2, 3, 0, new(bagtest.Payload).Float64(9.7).Bytes())

	path := filepath.Join(t.TempDir(), "topics.bag")
	require.NoError(t, b.WriteFile(path))
	return path
}

func TestExtractTopicNamesTypes(t *testing.T) {
	testCases := []struct {
		Name    string
		Builder *bagtest.Builder
	}{
		{Name: "Indexed", Builder: bagtest.New()},
		{Name: "Unindexed", Builder: bagtest.New().Unindexed()},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			path := writeTopicsBag(t, testCase.Builder)

			topics, types, err := ExtractTopicNamesTypes(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"/camera/info", "/imu", "/tf"}, topics)
			assert.Equal(t, []string{"sensor_msgs/CameraInfo", "sensor_msgs/Imu", "tf2_msgs/TFMessage"}, types)

			displayed, err := DisplayBagTopics(path)
			require.NoError(t, err)
			assert.Equal(t, topics, displayed)
		})
	}
}

func TestInfo(t *testing.T) {
	info, err := Info(writeTopicsBag(t, bagtest.New().ChunkSize(2)))
	require.NoError(t, err)

	assert.True(t, info.Indexed)
	assert.Equal(t, 2, info.ChunkCount)
	assert.Equal(t, uint64(3), info.MessageCount)
	require.Len(t, info.Topics, 3)
	assert.Equal(t, "/imu", info.Topics[1].Topic)
	assert.Equal(t, 2, info.Topics[1].Connections)
	assert.Equal(t, uint64(2), info.Topics[1].MessageCount)
}

func TestTopicsErrors(t *testing.T) {
	_, _, err := ExtractTopicNamesTypes(filepath.Join(t.TempDir(), "missing.bag"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = DisplayBagTopics(filepath.Join(t.TempDir(), "missing.bag"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
