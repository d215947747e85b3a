// Package resp implements the RESP3 wire format: a byte-cursor decoder that
// distinguishes "incomplete" (need more bytes) from "malformed" (protocol
// violation), a zero-copy-where-possible encoder, and a Frame value type
// covering every RESP3 variant plus the out-of-band attribute map.
//
// The cursor/incomplete-vs-malformed split is grounded on the teacher's
// transport/pdu.go read cursor (roff/woff offsets into a reusable buffer,
// "not enough bytes yet" distinguished from a hard decode error) and on
// rutin_resp3/src/resp3.rs's decode_async, which loops reads until a frame
// completes rather than treating a short read as failure.
package resp

import (
	"math/big"
)

// Kind tags which RESP3 variant a Frame holds. The byte values double as
// the variant's wire prefix, except Hello which never appears on the wire
// (it is only ever constructed from a parsed HELLO command).
type Kind byte

const (
	KindSimpleString   Kind = '+'
	KindSimpleError    Kind = '-'
	KindInteger        Kind = ':'
	KindBlobString     Kind = '$'
	KindBlobError      Kind = '!'
	KindNull           Kind = '_'
	KindBoolean        Kind = '#'
	KindDouble         Kind = ','
	KindBigNumber      Kind = '('
	KindVerbatimString Kind = '='
	KindArray          Kind = '*'
	KindMap            Kind = '%'
	KindSet            Kind = '~'
	KindPush           Kind = '>'
	KindChunkedString  Kind = ';'
	KindHello          Kind = 0
)

func (k Kind) String() string {
	switch k {
	case KindSimpleString:
		return "SimpleString"
	case KindSimpleError:
		return "SimpleError"
	case KindInteger:
		return "Integer"
	case KindBlobString:
		return "BlobString"
	case KindBlobError:
		return "BlobError"
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindDouble:
		return "Double"
	case KindBigNumber:
		return "BigNumber"
	case KindVerbatimString:
		return "VerbatimString"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindSet:
		return "Set"
	case KindPush:
		return "Push"
	case KindChunkedString:
		return "ChunkedString"
	case KindHello:
		return "Hello"
	default:
		return "Unknown"
	}
}

// KV is one key/value pair of a Map frame, or one attribute entry. RESP3
// maps are unordered; Go has no comparable-key map type that tolerates a
// Frame containing slices, so Map content is kept as an association list
// instead of a native map[Frame]Frame. Decode preserves wire order; Equal
// compares as a set.
type KV struct {
	Key *Frame
	Val *Frame
}

// Frame is a RESP3 value. Only the fields relevant to Kind are populated;
// the zero value of the others is ignored by Encode/Equal/Size. Bytes
// fields alias the decode buffer when decoded in place (conn reuses the
// buffer only after the frame has been consumed by the command layer).
type Frame struct {
	Kind Kind

	// SimpleString, SimpleError, BlobString, BlobError, VerbatimString payload.
	Bytes []byte

	// VerbatimString's 3-byte format tag, e.g. "txt" or "mkd".
	VerbatimFormat [3]byte

	Int    int64
	Bool   bool
	Double float64
	Big    *big.Int

	// Array, Push.
	Items []*Frame

	// Map.
	Pairs []KV

	// Set: unordered per RESP3, kept as a slice to avoid requiring a
	// comparable Frame.
	Members []*Frame

	// ChunkedString: the sequence of chunks in arrival order; a zero-length
	// final chunk (already stripped here) terminates the stream on the wire.
	Chunks [][]byte

	// Hello: protocol version, and optional username/password when AUTH is
	// combined with HELLO (HelloUser == nil means no inline auth).
	HelloVersion int64
	HelloUser    []byte
	HelloPass    []byte

	// Attributes is the optional out-of-band attribute map that may precede
	// any frame on the wire (RESP3 '|' type). nil means no attributes.
	Attributes []KV
}

func SimpleString(s string) *Frame { return &Frame{Kind: KindSimpleString, Bytes: []byte(s)} }
func SimpleError(s string) *Frame  { return &Frame{Kind: KindSimpleError, Bytes: []byte(s)} }
func Integer(v int64) *Frame       { return &Frame{Kind: KindInteger, Int: v} }
func BlobString(b []byte) *Frame   { return &Frame{Kind: KindBlobString, Bytes: b} }
func BlobError(s string) *Frame    { return &Frame{Kind: KindBlobError, Bytes: []byte(s)} }
func Null() *Frame                 { return &Frame{Kind: KindNull} }
func Boolean(v bool) *Frame        { return &Frame{Kind: KindBoolean, Bool: v} }
func DoubleVal(v float64) *Frame   { return &Frame{Kind: KindDouble, Double: v} }
func BigNumber(v *big.Int) *Frame  { return &Frame{Kind: KindBigNumber, Big: v} }

func Verbatim(format string, b []byte) *Frame {
	f := &Frame{Kind: KindVerbatimString, Bytes: b}
	copy(f.VerbatimFormat[:], format)
	return f
}

func Array(items ...*Frame) *Frame { return &Frame{Kind: KindArray, Items: items} }
func Push(items ...*Frame) *Frame  { return &Frame{Kind: KindPush, Items: items} }
func Set(members ...*Frame) *Frame { return &Frame{Kind: KindSet, Members: members} }
func Map(pairs ...KV) *Frame       { return &Frame{Kind: KindMap, Pairs: pairs} }

// IsAggregate reports whether Kind nests other frames (Array/Map/Set/Push).
func (k Kind) IsAggregate() bool {
	switch k {
	case KindArray, KindMap, KindSet, KindPush:
		return true
	default:
		return false
	}
}

// WithAttributes returns f with attrs attached, for builder-style construction.
func (f *Frame) WithAttributes(attrs ...KV) *Frame {
	f.Attributes = attrs
	return f
}
