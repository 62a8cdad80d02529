//go:build integration

package rosbag

import (
	"encoding/binary"
)

// Simulate a byte order mismatch between the bag and the host so that the copying slice
// decoders run. Tests built with this tag write their fixtures big endian.
var endian binary.ByteOrder = binary.BigEndian

func init() {
	initFieldSliceDecoder(false)
}
