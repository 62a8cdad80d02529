//go:build !integration

package rosbag

import (
	"encoding/binary"
)

// Bags are always little endian.
var endian binary.ByteOrder = binary.LittleEndian

func init() {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 0x1234)
	initFieldSliceDecoder(endian.Uint16(probe[:]) == 0x1234)
}
