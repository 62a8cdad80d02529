package rosbag

import (
	"math"
	"unsafe"
)

type fieldDecodeFunc func(raw []byte, length int) (v interface{}, off int, ok bool)

var fieldDecodeBasicHelper = map[MessageFieldType]fieldDecodeFunc{
	MessageFieldTypeBool:     fieldDecodeBool,
	MessageFieldTypeInt8:     fieldDecodeScalar(1, func(b []byte) int8 { return int8(b[0]) }),
	MessageFieldTypeUint8:    fieldDecodeScalar(1, func(b []byte) uint8 { return b[0] }),
	MessageFieldTypeInt16:    fieldDecodeScalar(2, func(b []byte) int16 { return int16(endian.Uint16(b)) }),
	MessageFieldTypeUint16:   fieldDecodeScalar(2, endian.Uint16),
	MessageFieldTypeInt32:    fieldDecodeScalar(4, func(b []byte) int32 { return int32(endian.Uint32(b)) }),
	MessageFieldTypeUint32:   fieldDecodeScalar(4, endian.Uint32),
	MessageFieldTypeInt64:    fieldDecodeScalar(8, func(b []byte) int64 { return int64(endian.Uint64(b)) }),
	MessageFieldTypeUint64:   fieldDecodeScalar(8, endian.Uint64),
	MessageFieldTypeFloat32:  fieldDecodeScalar(4, decodeFloat32),
	MessageFieldTypeFloat64:  fieldDecodeScalar(8, decodeFloat64),
	MessageFieldTypeString:   fieldDecodeString,
	MessageFieldTypeTime:     fieldDecodeScalar(8, extractTime),
	MessageFieldTypeDuration: fieldDecodeScalar(8, extractDuration),
}

var fieldDecodeSliceHelper map[MessageFieldType]fieldDecodeFunc

// initFieldSliceDecoder picks the slice decoders. In fast mode the bag and the host share
// the byte order, so numeric slices alias the record data instead of being copied.
func initFieldSliceDecoder(fastMode bool) {
	fieldDecodeSliceHelper = map[MessageFieldType]fieldDecodeFunc{
		MessageFieldTypeBool:     fieldDecodeBoolSlice,
		MessageFieldTypeInt8:     fieldDecodeFastSlice[int8](1),
		MessageFieldTypeUint8:    fieldDecodeFastSlice[uint8](1),
		MessageFieldTypeString:   fieldDecodeStringSlice,
		MessageFieldTypeTime:     fieldDecodeSlowSlice(8, extractTime),
		MessageFieldTypeDuration: fieldDecodeSlowSlice(8, extractDuration),
	}

	if fastMode {
		fieldDecodeSliceHelper[MessageFieldTypeInt16] = fieldDecodeFastSlice[int16](2)
		fieldDecodeSliceHelper[MessageFieldTypeUint16] = fieldDecodeFastSlice[uint16](2)
		fieldDecodeSliceHelper[MessageFieldTypeInt32] = fieldDecodeFastSlice[int32](4)
		fieldDecodeSliceHelper[MessageFieldTypeUint32] = fieldDecodeFastSlice[uint32](4)
		fieldDecodeSliceHelper[MessageFieldTypeInt64] = fieldDecodeFastSlice[int64](8)
		fieldDecodeSliceHelper[MessageFieldTypeUint64] = fieldDecodeFastSlice[uint64](8)
		fieldDecodeSliceHelper[MessageFieldTypeFloat32] = fieldDecodeFastSlice[float32](4)
		fieldDecodeSliceHelper[MessageFieldTypeFloat64] = fieldDecodeFastSlice[float64](8)
		return
	}

	fieldDecodeSliceHelper[MessageFieldTypeInt16] = fieldDecodeSlowSlice(2, func(b []byte) int16 { return int16(endian.Uint16(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint16] = fieldDecodeSlowSlice(2, endian.Uint16)
	fieldDecodeSliceHelper[MessageFieldTypeInt32] = fieldDecodeSlowSlice(4, func(b []byte) int32 { return int32(endian.Uint32(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint32] = fieldDecodeSlowSlice(4, endian.Uint32)
	fieldDecodeSliceHelper[MessageFieldTypeInt64] = fieldDecodeSlowSlice(8, func(b []byte) int64 { return int64(endian.Uint64(b)) })
	fieldDecodeSliceHelper[MessageFieldTypeUint64] = fieldDecodeSlowSlice(8, endian.Uint64)
	fieldDecodeSliceHelper[MessageFieldTypeFloat32] = fieldDecodeSlowSlice(4, decodeFloat32)
	fieldDecodeSliceHelper[MessageFieldTypeFloat64] = fieldDecodeSlowSlice(8, decodeFloat64)
}

func decodeFloat32(b []byte) float32 {
	return math.Float32frombits(endian.Uint32(b))
}

func decodeFloat64(b []byte) float64 {
	return math.Float64frombits(endian.Uint64(b))
}

// fieldDecodeLength returns the number of elements of an array field. Fixed-size arrays
// carry no length prefix.
func fieldDecodeLength(raw []byte, fixedLength int) (length int, off int, ok bool) {
	if fixedLength >= 0 {
		ok = true
		length = fixedLength
		return
	}

	if len(raw) < lenInBytes {
		return
	}

	length = int(endian.Uint32(raw))
	if len(raw) < lenInBytes+length {
		return
	}

	ok = true
	off = lenInBytes
	return
}

func fieldDecodeScalar[T any](size int, get func([]byte) T) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		off = size
		if len(raw) < off {
			return
		}

		v = get(raw)
		ok = true
		return
	}
}

func fieldDecodeBool(raw []byte, length int) (v interface{}, off int, ok bool) {
	off = 1
	if len(raw) < off {
		return
	}

	v = raw[0] != 0
	ok = true
	return
}

func fieldDecodeString(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if length == 0 {
		v = ""
		ok = true
		return
	}

	raw = raw[off:]
	if len(raw) < length {
		ok = false
		return
	}

	v = unsafe.String(&raw[0], length)
	off += length
	ok = true
	return
}

// fieldDecodeFastSlice aliases the record data as a []T without copying.
func fieldDecodeFastSlice[T any](size int) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		var s []T

		length, off, ok = fieldDecodeLength(raw, length)
		if !ok {
			return
		}

		if length == 0 {
			v = s
			return
		}

		raw = raw[off:]
		if len(raw) < length*size {
			ok = false
			return
		}

		s = unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), length)
		v = s
		off += length * size
		return
	}
}

func fieldDecodeSlowSlice[T any](size int, get func([]byte) T) fieldDecodeFunc {
	return func(raw []byte, length int) (v interface{}, off int, ok bool) {
		length, off, ok = fieldDecodeLength(raw, length)
		if !ok {
			return
		}

		if len(raw)-off < length*size {
			ok = false
			return
		}

		arr := make([]T, length)
		for i := range arr {
			arr[i] = get(raw[off:])
			off += size
		}
		v = arr
		return
	}
}

func fieldDecodeBoolSlice(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if len(raw)-off < length {
		ok = false
		return
	}

	arr := make([]bool, length)
	for i := range arr {
		arr[i] = raw[off+i] != 0
	}
	v = arr
	off += length
	return
}

func fieldDecodeStringSlice(raw []byte, length int) (v interface{}, off int, ok bool) {
	length, off, ok = fieldDecodeLength(raw, length)
	if !ok {
		return
	}

	if length == 0 {
		var s []string
		v = s
		ok = true
		return
	}

	s := make([]string, length)
	totalOff := off
	for i := 0; i < length; i++ {
		v, off, ok = fieldDecodeString(raw[totalOff:], -1)
		if !ok {
			off = 0
			return
		}

		s[i] = v.(string)
		totalOff += off
	}

	v = s
	off = totalOff
	ok = true
	return
}
