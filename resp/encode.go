package resp

import (
	"math"
	"strconv"
)

// Encode appends the wire representation of f (including any attributes)
// to dst and returns the grown slice, following the same append-and-return
// convention as the teacher's transport pdu writers so callers can build a
// reply directly into a connection's reusable write buffer.
func Encode(dst []byte, f *Frame) []byte {
	if len(f.Attributes) > 0 {
		dst = encodeKVList(dst, '|', f.Attributes)
	}
	return encodeTagged(dst, f)
}

func encodeTagged(dst []byte, f *Frame) []byte {
	switch f.Kind {
	case KindSimpleString:
		return encodeLine(dst, '+', f.Bytes)
	case KindSimpleError:
		return encodeLine(dst, '-', f.Bytes)
	case KindInteger:
		return encodeLine(dst, ':', strconv.AppendInt(nil, f.Int, 10))
	case KindBoolean:
		if f.Bool {
			return encodeLine(dst, '#', []byte("t"))
		}
		return encodeLine(dst, '#', []byte("f"))
	case KindDouble:
		return encodeLine(dst, ',', encodeDouble(f.Double))
	case KindBigNumber:
		return encodeLine(dst, '(', []byte(f.Big.String()))
	case KindNull:
		return append(dst, '_', '\r', '\n')
	case KindBlobString:
		return encodeBlob(dst, '$', f.Bytes)
	case KindBlobError:
		return encodeBlob(dst, '!', f.Bytes)
	case KindVerbatimString:
		payload := make([]byte, 0, 4+len(f.Bytes))
		payload = append(payload, f.VerbatimFormat[:]...)
		payload = append(payload, ':')
		payload = append(payload, f.Bytes...)
		return encodeBlob(dst, '=', payload)
	case KindChunkedString:
		for _, chunk := range f.Chunks {
			dst = encodeBlob(dst, ';', chunk)
		}
		return append(dst, ';', '0', '\r', '\n')
	case KindArray:
		return encodeItems(dst, '*', f.Items)
	case KindPush:
		return encodeItems(dst, '>', f.Items)
	case KindSet:
		return encodeItems(dst, '~', f.Members)
	case KindMap:
		return encodeKVList(dst, '%', f.Pairs)
	default:
		return dst
	}
}

func encodeLine(dst []byte, tag byte, body []byte) []byte {
	dst = append(dst, tag)
	dst = append(dst, body...)
	return append(dst, '\r', '\n')
}

func encodeBlob(dst []byte, tag byte, body []byte) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, int64(len(body)), 10)
	dst = append(dst, '\r', '\n')
	dst = append(dst, body...)
	return append(dst, '\r', '\n')
}

func encodeItems(dst []byte, tag byte, items []*Frame) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, int64(len(items)), 10)
	dst = append(dst, '\r', '\n')
	for _, it := range items {
		dst = Encode(dst, it)
	}
	return dst
}

func encodeKVList(dst []byte, tag byte, pairs []KV) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, int64(len(pairs)), 10)
	dst = append(dst, '\r', '\n')
	for _, kv := range pairs {
		dst = Encode(dst, kv.Key)
		dst = Encode(dst, kv.Val)
	}
	return dst
}

func encodeDouble(v float64) []byte {
	switch {
	case math.IsInf(v, 1):
		return []byte("inf")
	case math.IsInf(v, -1):
		return []byte("-inf")
	case math.IsNaN(v):
		return []byte("nan")
	default:
		return strconv.AppendFloat(nil, v, 'g', -1, 64)
	}
}
