//go:build !integration

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lherman-cs/bagextract/internal/bagtest"
	"github.com/lherman-cs/bagextract/internal/output"
)

func writeBag(t *testing.T) string {
	t.Helper()

	b := bagtest.New()
	pos := b.AddConnection("/gps", "custom_msgs/Fix", "float64 lat\nfloat64 lon\n")
	status := b.AddConnection("/status", "std_msgs/String", "string data\n")
	for i := 0; i < 4; i++ {
		b.AddMessage(pos, uint32(10+i), 0, new(bagtest.Payload).Float64(float64(i)).Float64(0.5).Bytes())
	}
	b.AddMessage(status, 20, 0, new(bagtest.Payload).String("ok").Bytes())

	path := filepath.Join(t.TempDir(), "run.bag")
	require.NoError(t, b.WriteFile(path))
	return path
}

func TestRunRead(t *testing.T) {
	bag := writeBag(t)
	out := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, run([]string{"read", bag, "/gps", "--min", "1", "--max", "2", "-o", out}))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var records []map[string]float64
	require.NoError(t, output.JSON.Unmarshal(raw, &records))
	assert.Equal(t, []map[string]float64{
		{"lat": 1, "lon": 0.5, "rosbag_recv_time": 11},
		{"lat": 2, "lon": 0.5, "rosbag_recv_time": 12},
	}, records)
}

func TestRunTopics(t *testing.T) {
	bag := writeBag(t)
	dir := t.TempDir()

	out := filepath.Join(dir, "topics.json")
	require.NoError(t, run([]string{"topics", bag, "--output", out}))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `["/gps","/status"]`, string(raw))

	out = filepath.Join(dir, "types.yaml")
	require.NoError(t, run([]string{"topics", bag, "--types", "--format", "yaml", "--output", out}))
	raw, err = os.ReadFile(out)
	require.NoError(t, err)

	var tt topicTypes
	require.NoError(t, yaml.Unmarshal(raw, &tt))
	assert.Equal(t, topicTypes{
		Topics: []string{"/gps", "/status"},
		Types:  []string{"custom_msgs/Fix", "std_msgs/String"},
	}, tt)
}

func TestRunInfo(t *testing.T) {
	bag := writeBag(t)
	out := filepath.Join(t.TempDir(), "info.json")

	require.NoError(t, run([]string{"info", bag, "-o", out}))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var info struct {
		Indexed      bool   `json:"indexed"`
		MessageCount uint64 `json:"message_count"`
	}
	require.NoError(t, output.JSON.Unmarshal(raw, &info))
	assert.True(t, info.Indexed)
	assert.Equal(t, uint64(5), info.MessageCount)
}

func TestRunErrors(t *testing.T) {
	bag := writeBag(t)

	testCases := []struct {
		Name  string
		Args  []string
		Usage bool
	}{
		{Name: "No Command", Args: nil, Usage: true},
		{Name: "Unknown Command", Args: []string{"write", bag}, Usage: true},
		{Name: "Missing Topic", Args: []string{"read", bag}, Usage: true},
		{Name: "Unknown Format", Args: []string{"topics", bag, "--format", "csv"}},
		{Name: "Invalid Window", Args: []string{"read", bag, "/gps", "--min", "3", "--max", "1"}},
		{Name: "Missing Bag", Args: []string{"info", filepath.Join(t.TempDir(), "missing.bag")}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			err := run(testCase.Args)
			require.Error(t, err)
			assert.Equal(t, testCase.Usage, errors.Is(err, errUsage))
		})
	}
}
