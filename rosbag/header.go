package rosbag

import (
	"bytes"
	"fmt"
)

// iterateHeaderFields walks a record header, or a connection header, which is a sequence
// of <field_len><name>=<value> entries. fn is called for every field in order, and the
// iteration stops at the first error.
func iterateHeaderFields(header []byte, fn func(key, value []byte) error) error {
	for len(header) > 0 {
		if len(header) < lenInBytes {
			return fmt.Errorf("%w: truncated field length", errInvalidHeader)
		}

		fieldLen := endian.Uint32(header)
		header = header[lenInBytes:]
		if uint64(len(header)) < uint64(fieldLen) {
			return fmt.Errorf("%w: field needs %d bytes, only %d left", errInvalidHeader, fieldLen, len(header))
		}

		field := header[:fieldLen]
		header = header[fieldLen:]

		idx := bytes.IndexByte(field, headerFieldDelimiter)
		if idx == -1 {
			return fmt.Errorf("%w: field %q has no '='", errInvalidHeader, field)
		}

		if err := fn(field[:idx], field[idx+1:]); err != nil {
			return err
		}
	}

	return nil
}

func headerOp(header []byte) (Op, error) {
	op := OpInvalid
	err := iterateHeaderFields(header, func(key, value []byte) error {
		if !bytes.Equal(key, []byte("op")) {
			return nil
		}

		if len(value) != 1 {
			return fmt.Errorf("%w: op field is %d bytes", errInvalidHeader, len(value))
		}
		op = Op(value[0])
		return nil
	})
	if err != nil {
		return OpInvalid, err
	}

	if op == OpInvalid {
		return OpInvalid, fmt.Errorf("%w: missing op field", errInvalidHeader)
	}
	return op, nil
}

func fieldUint32(key, value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("%w: %s field is %d bytes, expected 4", errInvalidHeader, key, len(value))
	}
	return endian.Uint32(value), nil
}

func fieldUint64(key, value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, fmt.Errorf("%w: %s field is %d bytes, expected 8", errInvalidHeader, key, len(value))
	}
	return endian.Uint64(value), nil
}
