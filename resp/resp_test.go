package resp

import (
	"bytes"
	"context"
	"math/big"
	"testing"
)

func roundTrip(t *testing.T, f *Frame) *Frame {
	t.Helper()
	buf := Encode(nil, f)
	if n := Size(f); n != len(buf) {
		t.Fatalf("Size()=%d, Encode produced %d bytes", n, len(buf))
	}
	c := NewCursor(buf)
	got, err := Decode(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Pos != len(buf) {
		t.Fatalf("decode consumed %d of %d bytes", c.Pos, len(buf))
	}
	if !Equal(f, got) {
		t.Fatalf("round trip mismatch: in=%+v out=%+v", f, got)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []*Frame{
		SimpleString("OK"),
		SimpleError("ERR wrong type"),
		Integer(42),
		Integer(-1),
		BlobString([]byte("hello world")),
		BlobString([]byte{}),
		BlobError("WRONGTYPE bad"),
		Null(),
		Boolean(true),
		Boolean(false),
		DoubleVal(3.125),
		DoubleVal(0),
		BigNumber(big.NewInt(123456789)),
		Verbatim("txt", []byte("some text")),
	}
	for _, f := range cases {
		roundTrip(t, f)
	}
}

func TestRoundTripDoubleSpecials(t *testing.T) {
	for _, v := range []float64{
		posInf(), negInf(), nan(),
	} {
		roundTrip(t, DoubleVal(v))
	}
}

func posInf() float64 { var z float64; return 1 / z }
func negInf() float64 { var z float64; return -1 / z }
func nan() float64    { var z float64; return z / z }

func TestRoundTripAggregates(t *testing.T) {
	arr := Array(Integer(1), SimpleString("two"), Null())
	roundTrip(t, arr)

	set := Set(Integer(1), Integer(2), Integer(3))
	roundTrip(t, set)

	m := Map(KV{Key: BlobString([]byte("k1")), Val: Integer(1)}, KV{Key: BlobString([]byte("k2")), Val: Integer(2)})
	roundTrip(t, m)

	push := Push(SimpleString("message"), BlobString([]byte("ch")), BlobString([]byte("payload")))
	roundTrip(t, push)
}

func TestRoundTripChunkedString(t *testing.T) {
	f := &Frame{Kind: KindChunkedString, Chunks: [][]byte{[]byte("abc"), []byte("def")}}
	roundTrip(t, f)
}

func TestAttributesIgnoredByEqual(t *testing.T) {
	a := Integer(5)
	b := Integer(5).WithAttributes(KV{Key: SimpleString("ttl"), Val: Integer(10)})
	if !Equal(a, b) {
		t.Fatal("Equal must ignore Attributes")
	}
	buf := Encode(nil, b)
	c := NewCursor(buf)
	got, err := Decode(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Attributes) != 1 {
		t.Fatalf("expected attributes to decode, got %d", len(got.Attributes))
	}
}

func TestDecodeIncompleteThenComplete(t *testing.T) {
	full := Encode(nil, BlobString([]byte("hello")))
	c := NewCursor(full[:len(full)-3])
	if _, err := Decode(c); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if c.Pos != 0 {
		t.Fatalf("incomplete decode must not advance cursor, Pos=%d", c.Pos)
	}
	c.Append(full[len(full)-3:])
	f, err := Decode(c)
	if err != nil {
		t.Fatalf("Decode after append: %v", err)
	}
	if !Equal(f, BlobString([]byte("hello"))) {
		t.Fatalf("mismatch after completing buffer: %+v", f)
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := NewCursor([]byte(":not-a-number\r\n"))
	_, err := Decode(c)
	if _, ok := err.(*MalformedError); !ok {
		t.Fatalf("expected *MalformedError, got %v", err)
	}
}

func TestDecodeAsyncAcrossShortReads(t *testing.T) {
	full := Encode(nil, Array(Integer(1), BlobString([]byte("two"))))
	r := &stutterReader{data: full, chunk: 3}
	c := NewCursor(nil)
	f, err := DecodeAsync(context.Background(), r, c)
	if err != nil {
		t.Fatalf("DecodeAsync: %v", err)
	}
	if !Equal(f, Array(Integer(1), BlobString([]byte("two")))) {
		t.Fatalf("mismatch: %+v", f)
	}
}

type stutterReader struct {
	data  []byte
	chunk int
}

func (s *stutterReader) Read(p []byte) (int, error) {
	if len(s.data) == 0 {
		return 0, bytes.ErrTooLarge
	}
	n := s.chunk
	if n > len(s.data) {
		n = len(s.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, s.data[:n])
	s.data = s.data[n:]
	return n, nil
}

func TestTypedAccessorsWrongKind(t *testing.T) {
	f := SimpleString("OK")
	if _, err := f.AsInt(); err == nil {
		t.Fatal("expected WrongKindError")
	}
	if _, ok := mustWrongKind(f); !ok {
		t.Fatal("expected *WrongKindError type")
	}
}

func mustWrongKind(f *Frame) (*WrongKindError, bool) {
	_, err := f.AsInt()
	wk, ok := err.(*WrongKindError)
	return wk, ok
}
