package object

import "strconv"

// Str is a string value with an int64 fast path: a value that parses as a
// base-10 signed integer is stored unboxed (no byte slice, no allocation
// on INCR/DECR) and materialized to bytes lazily on read.
//
// original_source's Str::Int is a 128-bit integer (i128) specifically so
// storing "9223372036854775807" and incrementing it never overflows at
// the storage layer. This port deliberately narrows that to int64: the
// store's literal INCR-overflow acceptance scenario sets a key to
// int64::MaxInt64 and expects the very next INCR to fail with "ERR value
// out of range" — the real-world Redis contract this store speaks, and
// the one every client actually exercises. Honoring the 128-bit storage
// width would make that increment succeed instead, contradicting the
// documented behavior. BigNumber (resp.KindBigNumber) remains available
// at the protocol layer for anything that does need arbitrary precision.
type Str struct {
	raw   []byte
	isInt bool
	i     int64
}

func (*Str) Kind() Kind { return KindStr }

func (s *Str) SizeBytes() int64 {
	if s.isInt {
		return 8
	}
	return int64(len(s.raw))
}

// NewStr builds a Str from raw bytes, taking the int fast path when b
// parses cleanly as a base-10 int64 (leading zeros and "+" prefix excluded:
// the parsed value must format back through strconv.FormatInt to exactly b).
func NewStr(b []byte) Str {
	if n, ok := parseStrictInt64(b); ok {
		return Str{isInt: true, i: n}
	}
	return Str{raw: append([]byte(nil), b...)}
}

func NewStrInt(n int64) Str { return Str{isInt: true, i: n} }

// NewStrValue builds a Value usable as an Object's top-level contents.
func NewStrValue(b []byte) Value {
	s := NewStr(b)
	return &s
}

func parseStrictInt64(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > 20 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	// Reject non-canonical forms ("+5", "00", "-0") so Str's int fast path
	// only ever engages for exactly the bytes Redis itself treats as an
	// integer-encoded string.
	if strconv.FormatInt(n, 10) != string(b) {
		return 0, false
	}
	return n, true
}

func (s Str) IsInt() bool { return s.isInt }

// Bytes materializes the value's byte representation.
func (s Str) Bytes() []byte {
	if s.isInt {
		return strconv.AppendInt(nil, s.i, 10)
	}
	return s.raw
}

func (s Str) Len() int {
	if s.isInt {
		return len(strconv.FormatInt(s.i, 10))
	}
	return len(s.raw)
}

// AsInt returns the integer value, parsing raw bytes on demand.
func (s Str) AsInt() (int64, error) {
	if s.isInt {
		return s.i, nil
	}
	n, ok := parseStrictInt64(s.raw)
	if !ok {
		return 0, ErrNotInt
	}
	return n, nil
}

func (s *Str) IncrBy(delta int64) (int64, error) {
	cur, err := s.AsInt()
	if err != nil {
		return 0, err
	}
	sum := cur + delta
	if (delta > 0 && sum < cur) || (delta < 0 && sum > cur) {
		return 0, ErrOverflow
	}
	*s = Str{isInt: true, i: sum}
	return sum, nil
}

func (s *Str) DecrBy(delta int64) (int64, error) {
	if delta == minInt64 {
		// -delta would itself overflow int64, so a math.MinInt64 decrement
		// is rejected whatever the stored value.
		return 0, ErrOverflow
	}
	return s.IncrBy(-delta)
}

const minInt64 = -1 << 63

// Append concatenates other onto the value (APPEND command), falling back
// off the int fast path since the result is no longer guaranteed numeric;
// it re-enters the fast path if the concatenation still parses as an int,
// mirroring original_source's Str::append.
func (s *Str) Append(other []byte) int {
	merged := append(s.Bytes(), other...)
	*s = NewStr(merged)
	return len(merged)
}

// GetRange returns the substring [start,end] using Redis's negative-index
// convention (−1 is the last byte), clamped to the value's bounds.
func (s Str) GetRange(start, end int) []byte {
	b := s.Bytes()
	n := len(b)
	if n == 0 {
		return nil
	}
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end || start >= n {
		return nil
	}
	if end >= n {
		end = n - 1
	}
	return b[start : end+1]
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	return i
}

// SetRange overwrites the value starting at offset, zero-padding if offset
// extends past the current length.
func (s *Str) SetRange(offset int, value []byte) int {
	b := s.Bytes()
	needed := offset + len(value)
	if needed > len(b) {
		grown := make([]byte, needed)
		copy(grown, b)
		b = grown
	} else {
		b = append([]byte(nil), b...)
	}
	copy(b[offset:], value)
	*s = NewStr(b)
	return len(b)
}
