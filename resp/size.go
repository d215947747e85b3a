package resp


// Size returns the exact number of bytes Encode would produce for f,
// without serializing it, so callers (e.g. the write-buffer batching in
// conn) can size a buffer once instead of growing it repeatedly. Grounded
// on resp3.rs's size() arithmetic: header bytes + body bytes + CRLF,
// recursing into aggregates.
func Size(f *Frame) int {
	n := 0
	if len(f.Attributes) > 0 {
		n += kvListSize('|', f.Attributes)
	}
	n += taggedSize(f)
	return n
}

func intDigits(n int) int {
	if n == 0 {
		return 1
	}
	neg := 0
	if n < 0 {
		neg = 1
		n = -n
	}
	d := 0
	for n > 0 {
		d++
		n /= 10
	}
	return d + neg
}

func lineSize(bodyLen int) int { return 1 + bodyLen + 2 }

func blobSize(bodyLen int) int { return 1 + intDigits(bodyLen) + 2 + bodyLen + 2 }

func taggedSize(f *Frame) int {
	switch f.Kind {
	case KindSimpleString, KindSimpleError:
		return lineSize(len(f.Bytes))
	case KindInteger:
		return lineSize(intDigits(int(f.Int)))
	case KindBoolean:
		return lineSize(1)
	case KindDouble:
		return lineSize(len(encodeDouble(f.Double)))
	case KindBigNumber:
		return lineSize(len(f.Big.String()))
	case KindNull:
		return 3
	case KindBlobString, KindBlobError:
		return blobSize(len(f.Bytes))
	case KindVerbatimString:
		return blobSize(4 + len(f.Bytes))
	case KindChunkedString:
		n := 0
		for _, chunk := range f.Chunks {
			n += blobSize(len(chunk))
		}
		return n + lineSize(1) // ";0\r\n" terminator
	case KindArray, KindPush:
		n := lineSize(intDigits(len(f.Items)))
		for _, it := range f.Items {
			n += Size(it)
		}
		return n
	case KindSet:
		n := lineSize(intDigits(len(f.Members)))
		for _, it := range f.Members {
			n += Size(it)
		}
		return n
	case KindMap:
		return kvListSize('%', f.Pairs)
	default:
		return 0
	}
}

func kvListSize(_ byte, pairs []KV) int {
	n := lineSize(intDigits(len(pairs)))
	for _, kv := range pairs {
		n += Size(kv.Key) + Size(kv.Val)
	}
	return n
}
