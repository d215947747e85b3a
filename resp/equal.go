package resp

import (
	"bytes"
	"math"
)

// Equal compares two frames by value, ignoring Attributes (RESP3 treats
// attributes as metadata riding alongside a reply, not part of its
// identity) and treating Map/Set content as unordered sets rather than
// ordered slices.
func Equal(a, b *Frame) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindSimpleString, KindSimpleError, KindBlobString, KindBlobError:
		return bytes.Equal(a.Bytes, b.Bytes)
	case KindVerbatimString:
		return a.VerbatimFormat == b.VerbatimFormat && bytes.Equal(a.Bytes, b.Bytes)
	case KindInteger:
		return a.Int == b.Int
	case KindBoolean:
		return a.Bool == b.Bool
	case KindDouble:
		return equalDoubleBits(a.Double, b.Double)
	case KindBigNumber:
		if a.Big == nil || b.Big == nil {
			return a.Big == b.Big
		}
		return a.Big.Cmp(b.Big) == 0
	case KindNull:
		return true
	case KindChunkedString:
		if len(a.Chunks) != len(b.Chunks) {
			return false
		}
		for i := range a.Chunks {
			if !bytes.Equal(a.Chunks[i], b.Chunks[i]) {
				return false
			}
		}
		return true
	case KindArray, KindPush:
		return equalItems(a.Items, b.Items)
	case KindSet:
		return equalAsSet(a.Members, b.Members)
	case KindMap:
		return equalKVAsSet(a.Pairs, b.Pairs)
	default:
		return false
	}
}

// equalDoubleBits compares by bit pattern rather than IEEE-754 ==, so that
// a NaN equals a NaN with the same bits and +0/-0 are distinct — matching
// the decided behavior of resp3.rs's derived PartialEq on the Double
// variant rather than Go's default float semantics. Decode turns every
// "nan" into math.NaN(), so that is the NaN that survives an Encode/Decode
// round trip bit for bit.
func equalDoubleBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

func equalItems(a, b []*Frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalAsSet(a, b []*Frame) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for i, y := range b {
			if used[i] {
				continue
			}
			if Equal(x, y) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func equalKVAsSet(a, b []KV) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for i, y := range b {
			if used[i] {
				continue
			}
			if Equal(x.Key, y.Key) && Equal(x.Val, y.Val) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
