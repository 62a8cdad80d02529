package bagtest

import (
	"math"
)

// Payload serializes message fields the way ROS does: little endian, strings and
// variable length arrays prefixed by a uint32 length.
type Payload struct {
	buf []byte
}

func (p *Payload) Bytes() []byte {
	return p.buf
}

func (p *Payload) Bool(v bool) *Payload {
	if v {
		return p.Uint8(1)
	}
	return p.Uint8(0)
}

func (p *Payload) Int8(v int8) *Payload {
	return p.Uint8(uint8(v))
}

func (p *Payload) Uint8(v uint8) *Payload {
	p.buf = append(p.buf, v)
	return p
}

func (p *Payload) Int16(v int16) *Payload {
	p.buf = le.AppendUint16(p.buf, uint16(v))
	return p
}

func (p *Payload) Uint16(v uint16) *Payload {
	p.buf = le.AppendUint16(p.buf, v)
	return p
}

func (p *Payload) Int32(v int32) *Payload {
	return p.Uint32(uint32(v))
}

func (p *Payload) Uint32(v uint32) *Payload {
	p.buf = le.AppendUint32(p.buf, v)
	return p
}

func (p *Payload) Int64(v int64) *Payload {
	return p.Uint64(uint64(v))
}

func (p *Payload) Uint64(v uint64) *Payload {
	p.buf = le.AppendUint64(p.buf, v)
	return p
}

func (p *Payload) Float32(v float32) *Payload {
	return p.Uint32(math.Float32bits(v))
}

func (p *Payload) Float64(v float64) *Payload {
	return p.Uint64(math.Float64bits(v))
}

func (p *Payload) String(v string) *Payload {
	p.Len(len(v))
	p.buf = append(p.buf, v...)
	return p
}

func (p *Payload) Time(sec, nsec uint32) *Payload {
	return p.Uint32(sec).Uint32(nsec)
}

// Len writes the length prefix of a variable length array.
func (p *Payload) Len(n int) *Payload {
	return p.Uint32(uint32(n))
}
