// Package rotation picks a deterministic daily subset from an ordered pool.
//
// The selection depends only on the day index (whole 24h periods since the
// Unix epoch) and the pool length, so every visitor, the public page and any
// admin preview agree on the same games for a given UTC day. Over len(pool)
// consecutive days the start position visits every slot once.
//
// Changing the pool length between two days moves the start position, so the
// selection can jump. That is a known limitation of the scheme.
package rotation

import "time"

// DayMillis is the length of one rotation day in milliseconds.
const DayMillis int64 = 24 * 60 * 60 * 1000

// DayIndex returns floor(now in epoch millis / DayMillis).
func DayIndex(now time.Time) int64 {
	ms := now.UnixMilli()
	idx := ms / DayMillis
	if ms%DayMillis < 0 {
		idx--
	}
	return idx
}

// StartIndex returns dayIndex mod n, always in [0, n). n must be positive.
func StartIndex(dayIndex int64, n int) int {
	m := dayIndex % int64(n)
	if m < 0 {
		m += int64(n)
	}
	return int(m)
}

// SelectDaily returns min(k, len(pool)) consecutive entries of pool, starting
// at the day's start index and wrapping around the end.
func SelectDaily[T any](pool []T, k int, now time.Time) []T {
	return SelectForDay(pool, k, DayIndex(now))
}

// SelectForDay is SelectDaily for an explicit day index.
func SelectForDay[T any](pool []T, k int, dayIndex int64) []T {
	n := len(pool)
	if n == 0 || k <= 0 {
		return []T{}
	}
	if k > n {
		k = n
	}
	start := StartIndex(dayIndex, n)
	out := make([]T, k)
	for i := range out {
		out[i] = pool[(start+i)%n]
	}
	return out
}
