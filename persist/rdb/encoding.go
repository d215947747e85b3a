package rdb

import (
	"bufio"
	"encoding/binary"
	"hash/crc64"
	"io"
	"math"

	"github.com/pierrec/lz4/v3"

	"github.com/rutin-go/rutin/object"
)

// checksummingWriter folds every byte written through it into a running
// CRC-64, the way original_source's rdb_save threads one hasher through
// the whole write pass instead of re-reading the file to checksum it
// afterward.
type checksummingWriter struct {
	w   io.Writer
	crc uint64
}

func (c *checksummingWriter) Write(p []byte) (int, error) {
	c.crc = crc64.Update(c.crc, crcTable, p)
	return c.w.Write(p)
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// writeLength encodes n as a plain uvarint-style length prefix. Redis's
// own RDB uses a bit-packed 6/14/32-bit scheme; this port collapses that
// to encoding/binary's Uvarint since nothing here needs to interoperate
// with a real Redis RDB reader, only with this package's own Load.
func writeLength(w io.Writer, n int) error {
	var buf [binary.MaxVarintLen64]byte
	m := binary.PutUvarint(buf[:], uint64(n))
	_, err := w.Write(buf[:m])
	return err
}

func readLength(r *bufio.Reader) (int, error) {
	n, err := binary.ReadUvarint(r)
	return int(n), err
}

// String encoding markers, original_source's RDB_ENC_* special-format
// tags collapsed to a one-byte kind prefix instead of packed into the
// length header's top bits.
const (
	encPlain = 0
	encLZF   = 1 // compressed with lz4, standing in for Redis's LZF
)

// lzfMinLen is the smallest payload worth spending a compression pass on.
const lzfMinLen = 32

func writeString(w io.Writer, b []byte) error {
	if len(b) >= lzfMinLen {
		compressed := make([]byte, lz4.CompressBlockBound(len(b)))
		var ht [1 << 16]int
		n, err := lz4.CompressBlock(b, compressed, ht[:])
		if err == nil && n > 0 && n < len(b) {
			if err := writeByte(w, encLZF); err != nil {
				return err
			}
			if err := writeLength(w, len(b)); err != nil {
				return err
			}
			if err := writeLength(w, n); err != nil {
				return err
			}
			_, err = w.Write(compressed[:n])
			return err
		}
	}
	if err := writeByte(w, encPlain); err != nil {
		return err
	}
	if err := writeLength(w, len(b)); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readString(r *bufio.Reader) ([]byte, error) {
	enc, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch enc {
	case encPlain:
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		_, err = io.ReadFull(r, b)
		return b, err
	case encLZF:
		uncompressedLen, err := readLength(r)
		if err != nil {
			return nil, err
		}
		compressedLen, err := readLength(r)
		if err != nil {
			return nil, err
		}
		src := make([]byte, compressedLen)
		if _, err := io.ReadFull(r, src); err != nil {
			return nil, err
		}
		dst := make([]byte, uncompressedLen)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	default:
		return nil, errUnknownEncoding(enc)
	}
}

type errUnknownEncoding byte

func (e errUnknownEncoding) Error() string { return "rdb: unknown string encoding tag" }

// encodeValue writes v's aggregate body (everything after the type tag
// and key, already written by the caller).
func encodeValue(w io.Writer, v object.Value) error {
	switch val := v.(type) {
	case *object.Str:
		return writeString(w, val.Bytes())
	case *object.List:
		elems := val.Range(0, val.Len()-1)
		if err := writeLength(w, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeString(w, e); err != nil {
				return err
			}
		}
		return nil
	case *object.Set:
		members := val.Members()
		if err := writeLength(w, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, m); err != nil {
				return err
			}
		}
		return nil
	case *object.Hash:
		fields := val.Fields()
		if err := writeLength(w, len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			fv, _ := val.Get(f)
			if err := writeString(w, []byte(f)); err != nil {
				return err
			}
			if err := writeString(w, fv.Bytes()); err != nil {
				return err
			}
		}
		return nil
	case *object.ZSet:
		elems := val.Range(0, val.Len()-1)
		if err := writeLength(w, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeString(w, []byte(e.Member)); err != nil {
				return err
			}
			if err := writeUint64(w, doubleBits(e.Score)); err != nil {
				return err
			}
		}
		return nil
	default:
		return errUnknownEncoding(0)
	}
}

func decodeValue(r *bufio.Reader, tag byte) (object.Value, error) {
	switch tag {
	case typeString:
		b, err := readString(r)
		if err != nil {
			return nil, err
		}
		s := object.NewStr(b)
		return &s, nil
	case typeList:
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		l := object.NewList()
		for i := 0; i < n; i++ {
			b, err := readString(r)
			if err != nil {
				return nil, err
			}
			l.PushBack(b)
		}
		return l, nil
	case typeSet:
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		s := object.NewSet()
		for i := 0; i < n; i++ {
			b, err := readString(r)
			if err != nil {
				return nil, err
			}
			s.Add(b)
		}
		return s, nil
	case typeHash:
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		h := object.NewHash()
		for i := 0; i < n; i++ {
			f, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			h.Set(string(f), object.NewStr(v))
		}
		return h, nil
	case typeZSet:
		n, err := readLength(r)
		if err != nil {
			return nil, err
		}
		z := object.NewZSet()
		for i := 0; i < n; i++ {
			m, err := readString(r)
			if err != nil {
				return nil, err
			}
			bits, err := readUint64(r)
			if err != nil {
				return nil, err
			}
			z.Add(bitsDouble(bits), string(m))
		}
		return z, nil
	default:
		return nil, errUnknownEncoding(tag)
	}
}

func doubleBits(f float64) uint64 { return math.Float64bits(f) }
func bitsDouble(b uint64) float64 { return math.Float64frombits(b) }
