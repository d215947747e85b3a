// Package mono provides a monotonic nanosecond clock, kept distinct from
// wall-clock time.Time so that access-tracking counters (atc) never observe
// a backwards jump from an NTP correction.
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonically increasing nanosecond count anchored at
// process start. It is NOT comparable across processes and carries no
// relation to wall-clock time; use it only for ordering and duration math.
func NanoTime() int64 { return int64(time.Since(start)) }

// Since returns the monotonic duration elapsed since ns, as previously
// returned by NanoTime.
func Since(ns int64) time.Duration { return time.Duration(NanoTime() - ns) }
