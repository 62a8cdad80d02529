package bagextract

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/lherman-cs/bagextract/rosbag"
)

func float64Msg(v float64) rosbag.PrimitiveMessage {
	return rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeFloat64, Value: v}
}

func TestExtract(t *testing.T) {
	msg := &rosbag.CompositeMessage{
		Type: "geometry_msgs/PoseWithCovariance",
		Fields: []rosbag.MessageField{
			{Name: "pose", Value: &rosbag.CompositeMessage{
				Type: "geometry_msgs/Point",
				Fields: []rosbag.MessageField{
					{Name: "x", Value: float64Msg(1)},
					{Name: "y", Value: float64Msg(2)},
				},
			}},
			{Name: "covariance", Value: rosbag.PrimitiveMessage{
				Type:  rosbag.MessageFieldTypeFloat64,
				Value: []float64{0.1, 0.2},
			}},
			{Name: "stamps", Value: rosbag.ArrayMessage{
				&rosbag.CompositeMessage{
					Type: "time",
					Fields: []rosbag.MessageField{
						{Name: "secs", Value: rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeUint32, Value: uint32(3)}},
						{Name: "nsecs", Value: rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeUint32, Value: uint32(4)}},
					},
				},
			}},
			{Name: "frame_id", Value: rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeString, Value: "map"}},
		},
	}

	expected := Record{
		"pose":       Record{"x": 1.0, "y": 2.0},
		"covariance": []float64{0.1, 0.2},
		"stamps": []interface{}{
			Record{"secs": uint32(3), "nsecs": uint32(4)},
		},
		"frame_id": "map",
	}

	assert.Equal(t, expected, ExtractRecord(msg))
	assert.Equal(t, expected, Extract(msg))
	assert.Nil(t, Extract(nil))
	assert.Equal(t, []interface{}{}, Extract(rosbag.ArrayMessage{}))
}

func TestExtractProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("primitives are extracted as they are", prop.ForAll(
		func(f float64, i int32, s string) bool {
			return Extract(float64Msg(f)) == f &&
				Extract(rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeInt32, Value: i}) == i &&
				Extract(rosbag.PrimitiveMessage{Type: rosbag.MessageFieldTypeString, Value: s}) == s
		},
		gen.Float64Range(-1e9, 1e9),
		gen.Int32(),
		gen.AnyString(),
	))

	properties.Property("records hold exactly the fields of the message", prop.ForAll(
		func(values []float64) bool {
			msg := &rosbag.CompositeMessage{Type: "custom_msgs/Values"}
			for i, v := range values {
				msg.Fields = append(msg.Fields, rosbag.MessageField{
					Name:  fmt.Sprintf("field_%d", i),
					Value: float64Msg(v),
				})
			}

			record := ExtractRecord(msg)
			if len(record) != len(msg.Fields) {
				return false
			}
			for _, field := range msg.Fields {
				v, ok := record[field.Name]
				if !ok || v != Extract(field.Value) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-1e3, 1e3)),
	))

	properties.TestingRun(t)
}
