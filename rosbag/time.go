package rosbag

import (
	"fmt"
	"time"
)

// Time is the ROS time primitive, seconds and nanoseconds since the unix epoch.
type Time struct {
	Sec  uint32 `json:"secs" yaml:"secs"`
	NSec uint32 `json:"nsecs" yaml:"nsecs"`
}

// Seconds flattens t into a single scalar. Precision is limited by float64 at the
// ~1e9 scale, which keeps sub-microsecond resolution.
func (t Time) Seconds() float64 {
	return float64(t.Sec) + float64(t.NSec)/1e9
}

func (t Time) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.NSec))
}

func (t Time) Before(u Time) bool {
	return t.Sec < u.Sec || (t.Sec == u.Sec && t.NSec < u.NSec)
}

func (t Time) IsZero() bool {
	return t.Sec == 0 && t.NSec == 0
}

func (t Time) String() string {
	return fmt.Sprintf("%d.%09d", t.Sec, t.NSec)
}

// Duration is the ROS duration primitive. Both parts carry the sign.
type Duration struct {
	Sec  int32
	NSec int32
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d.Sec)*time.Second + time.Duration(d.NSec)
}

func (d Duration) String() string {
	return d.Duration().String()
}

func extractTime(raw []byte) Time {
	return Time{
		Sec:  endian.Uint32(raw),
		NSec: endian.Uint32(raw[4:]),
	}
}

func extractDuration(raw []byte) Duration {
	return Duration{
		Sec:  int32(endian.Uint32(raw)),
		NSec: int32(endian.Uint32(raw[4:])),
	}
}
