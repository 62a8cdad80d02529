//go:build !integration

package bagextract

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lherman-cs/bagextract/internal/bagtest"
)

const poseDef = `float64 x
float64 y
geometry_msgs/Quaternion orientation
================================================================================
MSG: geometry_msgs/Quaternion
float64 x
float64 y
float64 z
float64 w
`

type quaternion struct {
	X, Y, Z, W float64
}

type pose struct {
	Sec, NSec   uint32
	X, Y        float64
	Orientation quaternion
}

func (p pose) payload() []byte {
	return new(bagtest.Payload).
		Float64(p.X).Float64(p.Y).
		Float64(p.Orientation.X).Float64(p.Orientation.Y).Float64(p.Orientation.Z).Float64(p.Orientation.W).
		Bytes()
}

func (p pose) record() Record {
	return Record{
		"x": p.X,
		"y": p.Y,
		"orientation": Record{
			"x": p.Orientation.X,
			"y": p.Orientation.Y,
			"z": p.Orientation.Z,
			"w": p.Orientation.W,
		},
		RecvTimeKey: float64(p.Sec) + float64(p.NSec)/1e9,
	}
}

// sequentialPoses returns n poses whose x is their index.
func sequentialPoses(n int) []pose {
	poses := make([]pose, n)
	for i := range poses {
		poses[i] = pose{
			Sec:         uint32(100 + i),
			NSec:        250000000,
			X:           float64(i),
			Y:           -float64(i),
			Orientation: quaternion{W: 1},
		}
	}
	return poses
}

// writePoseBag stores poses on /pose, with a /odom message in between every pose.
func writePoseBag(t testing.TB, dir string, poses []pose) string {
	t.Helper()

	b := bagtest.New().ChunkSize(4)
	poseConn := b.AddConnection("/pose", "geometry_msgs/Pose2", poseDef)
	odomConn := b.AddConnection("/odom", "std_msgs/Float64", "float64 data\n")
	for i, p := range poses {
		b.AddMessage(poseConn, p.Sec, p.NSec, p.payload())
		b.AddMessage(odomConn, p.Sec, p.NSec+1, new(bagtest.Payload).Float64(float64(i)).Bytes())
	}

	f, err := os.CreateTemp(dir, "*.bag")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, b.WriteFile(f.Name()))
	return f.Name()
}

func TestReadBagWindowPose(t *testing.T) {
	poses := []pose{
		{Sec: 10, NSec: 0, X: 0.5, Y: 1.5, Orientation: quaternion{W: 1}},
		{Sec: 11, NSec: 500000000, X: 1.5, Y: 2.5, Orientation: quaternion{Z: 0.5, W: 0.75}},
		{Sec: 12, NSec: 250000000, X: 2.5, Y: 3.5, Orientation: quaternion{X: 0.25, W: 0.5}},
	}
	path := writePoseBag(t, t.TempDir(), poses)

	records, err := ReadBagWindow(path, "/pose", 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, poses[1].record(), records[0])
	assert.Equal(t, poses[2].record(), records[1])
	assert.Equal(t, 11.5, records[0][RecvTimeKey])
	assert.Equal(t, 12.25, records[1][RecvTimeKey])
}

func TestReadBagOrder(t *testing.T) {
	poses := sequentialPoses(10)
	path := writePoseBag(t, t.TempDir(), poses)

	records, err := ReadBag(path, "/pose")
	require.NoError(t, err)
	require.Len(t, records, len(poses))
	for i, p := range poses {
		assert.Equal(t, p.record(), records[i])
	}

	odom, err := ReadBag(path, "/odom")
	require.NoError(t, err)
	require.Len(t, odom, len(poses))
	for i, record := range odom {
		assert.Equal(t, float64(i), record["data"])
	}
}

func TestReadBagFuzzedPoses(t *testing.T) {
	f := fuzz.New().NilChance(0)
	dir := t.TempDir()

	for i := 0; i < 20; i++ {
		var poses []pose
		f.NumElements(1, 8).Fuzz(&poses)

		records, err := ReadBag(writePoseBag(t, dir, poses), "/pose")
		require.NoError(t, err)
		require.Len(t, records, len(poses))
		for j, p := range poses {
			assert.Equal(t, p.record(), records[j])
		}
	}
}

func TestReadBagWindowProperties(t *testing.T) {
	const n = 10
	dir := t.TempDir()
	poses := sequentialPoses(n)
	full := writePoseBag(t, dir, poses)

	// prefixes[k] holds the first k poses only
	prefixes := make([]string, n+1)
	for k := 1; k <= n; k++ {
		prefixes[k] = writePoseBag(t, dir, poses[:k])
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("window holds the matching entries a through min(b, n-1)", prop.ForAll(
		func(a, width int) bool {
			b := a + width
			records, err := ReadBagWindow(full, "/pose", a, b)
			if err != nil {
				return false
			}

			expected := 0
			if a < n {
				expected = int(math.Min(float64(b), n-1)) - a + 1
			}
			if len(records) != expected {
				return false
			}
			for i, record := range records {
				if record["x"] != float64(a+i) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, n+3),
		gen.IntRange(0, n+3),
	))

	properties.Property("entries past the window don't change the result", prop.ForAll(
		func(a, width int) bool {
			b := a + width
			if b >= n {
				return true
			}

			fromFull, err := ReadBagWindow(full, "/pose", a, b)
			if err != nil {
				return false
			}
			fromPrefix, err := ReadBagWindow(prefixes[b+1], "/pose", a, b)
			if err != nil {
				return false
			}
			return assert.ObjectsAreEqual(fromFull, fromPrefix)
		},
		gen.IntRange(0, n-1),
		gen.IntRange(0, n-1),
	))

	properties.TestingRun(t)
}

func TestReadBagWindowRejected(t *testing.T) {
	// the bag doesn't exist, a rejected window must fail before opening it
	path := filepath.Join(t.TempDir(), "missing.bag")

	testCases := []struct {
		Name     string
		Min, Max int
	}{
		{Name: "Negative Min", Min: -1, Max: 2},
		{Name: "Max Below Min", Min: 3, Max: 2},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			records, err := ReadBagWindow(path, "/pose", testCase.Min, testCase.Max)
			assert.ErrorIs(t, err, ErrInvalidWindow)
			assert.NotErrorIs(t, err, os.ErrNotExist)
			assert.Nil(t, records)
		})
	}
}

func TestReadBagErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadBag(filepath.Join(dir, "missing.bag"), "/pose")
	assert.ErrorIs(t, err, os.ErrNotExist)

	// a message shorter than its definition aborts the whole read
	b := bagtest.New()
	conn := b.AddConnection("/pose", "geometry_msgs/Pose2", poseDef)
	b.AddMessage(conn, 1, 0, sequentialPoses(1)[0].payload())
	b.AddMessage(conn, 2, 0, new(bagtest.Payload).Float64(1).Bytes())
	corrupt := filepath.Join(dir, "corrupt.bag")
	require.NoError(t, b.WriteFile(corrupt))

	records, err := ReadBag(corrupt, "/pose")
	assert.Error(t, err)
	assert.Nil(t, records)

	// the broken message is outside the window and never decoded
	records, err = ReadBagWindow(corrupt, "/pose", 0, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestReadBagUnknownTopic(t *testing.T) {
	path := writePoseBag(t, t.TempDir(), sequentialPoses(3))

	records, err := ReadBag(path, "/missing")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadBagLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	path := writePoseBag(t, t.TempDir(), sequentialPoses(5))
	_, err := ReadBagWindow(path, "/pose", 1, 2)
	require.NoError(t, err)

	entries := logs.FilterMessage("read bag").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/pose", fields["topic"])
	assert.Equal(t, int64(3), fields["scanned"])
	assert.Equal(t, int64(2), fields["records"])
}
