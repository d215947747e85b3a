// Package rdb is the binary snapshot codec: a whole-dataset dump written
// on RDB's own schedule or on demand before an AOF rewrite, and loaded
// back at startup when no newer AOF exists. Grounded on original_source's
// src/persist/rdb.rs (magic header, opcode stream, per-type value
// encodings, trailing checksum); the opcode and type-tag constants below
// carry the same names and values as that source so a hex dump of either
// format reads the same way.
package rdb

import (
	"bufio"
	"hash/crc64"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/store"
)

const (
	magic      = "REDIS"
	rdbVersion = uint32(7)
)

// Opcodes, matching original_source's RDB_OPCODE_* constants.
const (
	opAux       = 0xfa
	opResizeDB  = 0xfb
	opExpireMs  = 0xfc
	opExpire    = 0xfd
	opSelectDB  = 0xfe
	opEOF       = 0xff
)

// Value type tags, matching original_source's RDB_TYPE_* constants (only
// the subset this store's object.Kind set needs).
const (
	typeString = 0
	typeList   = 1
	typeSet    = 2
	typeZSet   = 3
	typeHash   = 4
)

// crcTable uses the stdlib ISO polynomial rather than Redis's own
// Jones polynomial: the corpus carries no CRC-64/Jones implementation and
// none of the example repos pull one in, so the trailer is a CRC-64/ISO of
// this store's own RDB bytes and is not bit-compatible with real Redis RDB
// checksums (see DESIGN.md). LoadReader reads the trailer but does not
// verify it.
var crcTable = crc64.MakeTable(crc64.ISO)

// Save writes db's entire contents to path as a single RDB snapshot.
func Save(db *store.Db, path string) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.WithMessage(err, "rdb: create")
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	cw := &checksummingWriter{w: w, crc: 0}

	if _, err = cw.Write([]byte(magic)); err != nil {
		return err
	}
	if err = writeUint32(cw, rdbVersion); err != nil {
		return err
	}
	if err = writeByte(cw, opSelectDB); err != nil {
		return err
	}
	if err = writeLength(cw, 0); err != nil {
		return err
	}

	var saveErr error
	db.Snapshot(func(key store.Key, o *object.Object) {
		if saveErr != nil {
			return
		}
		saveErr = writeEntry(cw, key, o)
	})
	if saveErr != nil {
		return saveErr
	}

	if err = writeByte(cw, opEOF); err != nil {
		return err
	}
	if err = writeUint64(cw, cw.crc); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return errors.WithMessage(err, "rdb: flush")
	}
	if err = os.Rename(tmp, path); err != nil {
		return errors.WithMessage(err, "rdb: rename")
	}
	return nil
}

func writeEntry(w io.Writer, key store.Key, o *object.Object) error {
	cw := w.(*checksummingWriter)
	if o.HasExpire() {
		if err := writeByte(cw, opExpireMs); err != nil {
			return err
		}
		if err := writeUint64(cw, uint64(o.Expire/1e6)); err != nil {
			return err
		}
	}
	tag, err := typeTag(o.Value)
	if err != nil {
		return err
	}
	if err := writeByte(cw, tag); err != nil {
		return err
	}
	if err := writeString(cw, []byte(key)); err != nil {
		return err
	}
	return encodeValue(cw, o.Value)
}

func typeTag(v object.Value) (byte, error) {
	switch v.Kind() {
	case object.KindStr:
		return typeString, nil
	case object.KindList:
		return typeList, nil
	case object.KindSet:
		return typeSet, nil
	case object.KindHash:
		return typeHash, nil
	case object.KindZSet:
		return typeZSet, nil
	default:
		return 0, errors.Errorf("rdb: unsupported value kind %v", v.Kind())
	}
}

// Load reads an RDB snapshot from path and installs every entry into db,
// returning the number of keys loaded. A missing file is not an error:
// it reports (0, nil), the same "nothing to load yet" outcome a fresh
// data directory produces.
func Load(db *store.Db, path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithMessage(err, "rdb: open")
	}
	defer f.Close()

	return LoadReader(db, bufio.NewReader(f))
}

// LoadReader replays an RDB byte stream read from r, starting at its
// magic header, installing every entry into db. Used both by Load (a
// file on disk) and by repl's replica, which applies the master's
// FULLRESYNC byte stream directly off the open connection.
func LoadReader(db *store.Db, r *bufio.Reader) (int, error) {
	hdr := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, errors.WithMessage(err, "rdb: short header")
	}
	if string(hdr[:len(magic)]) != magic {
		return 0, errors.New("rdb: bad magic")
	}

	n := 0
	var expireNano int64
	for {
		tag, err := r.ReadByte()
		if err != nil {
			return n, errors.WithMessage(err, "rdb: truncated stream")
		}
		switch tag {
		case opEOF:
			if _, err := readUint64(r); err != nil {
				return n, errors.WithMessage(err, "rdb: truncated checksum trailer")
			}
			return n, nil
		case opSelectDB:
			if _, err := readLength(r); err != nil {
				return n, err
			}
		case opExpireMs:
			ms, err := readUint64(r)
			if err != nil {
				return n, err
			}
			expireNano = int64(ms) * 1e6
		case opExpire:
			secs, err := readUint64(r)
			if err != nil {
				return n, err
			}
			expireNano = int64(secs) * 1e9
		case typeString, typeList, typeSet, typeHash, typeZSet:
			key, err := readString(r)
			if err != nil {
				return n, err
			}
			v, err := decodeValue(r, tag)
			if err != nil {
				return n, err
			}
			if err := db.InsertObject(store.Key(key), v, expireNano); err != nil {
				nlog.Warningf("rdb: load %q: %v", key, err)
			}
			expireNano = 0
			n++
		default:
			return n, errors.Errorf("rdb: unknown opcode 0x%02x", tag)
		}
	}
}
