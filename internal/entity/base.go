package entity

import (
	"sync/atomic"
	"time"
)

// lastUnixMilli is the last value handed out by NowUnixMilli
var lastUnixMilli atomic.Int64

// NowUnixMilli returns the current unix timestamp in milliseconds.
// Values are strictly increasing within the process: when two calls land in
// the same millisecond the second one is pushed to the next millisecond.
func NowUnixMilli() int64 {
	for {
		now := time.Now().UnixMilli()
		last := lastUnixMilli.Load()
		if now <= last {
			now = last + 1
		}
		if lastUnixMilli.CompareAndSwap(last, now) {
			return now
		}
	}
}

// MillisToTime converts unix milliseconds to a UTC time. 0 maps to the zero time.
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// TimeToMillis converts a time to unix milliseconds. The zero time maps to 0.
func TimeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
