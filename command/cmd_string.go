package command

import (
	"time"

	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

func init() {
	register(&Descriptor{Name: "GET", Arity: 1, Flags: FlagRead.Or(FlagKeyspace), Run: cmdGet})
	register(&Descriptor{Name: "SET", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdSet})
	register(&Descriptor{Name: "INCR", Arity: 1, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdIncr})
}

// GET key — spec.md §4.5: "reads Str at key; blob-string reply or null;
// adds key to the per-client tracked set if client-tracking is on."
func cmdGet(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	key, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	if ctx.User != nil && !ctx.User.AllowsKey(string(key)) {
		return nil, NoPermission("GET")
	}

	o, err := ctx.DB.GetObject(string(key))
	if err == store.ErrNotFound {
		return nil, Null()
	}
	if err != nil {
		return nil, err
	}
	s, err := o.OnStr()
	if err != nil {
		return nil, TypeErr()
	}
	ctx.TrackKey(string(key), o)
	return resp.BlobString(append([]byte(nil), s.Bytes()...)), nil
}

type setOpt int

const (
	setOptNone setOpt = iota
	setOptNX
	setOptXX
)

// SET key value [NX|XX] [GET] [EX n|PX n|EXAT t|PXAT t|KEEPTTL] — full
// option grammar from spec.md §4.5, grounded on original_source's
// cmd/commands/str.rs Set::parse/execute. NX requires Vacant, XX requires
// Occupied; when the predicate is unmet the reply is null (spec.md: "when
// both options preclude success the reply is null") rather than an error.
func cmdSet(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	key, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	if ctx.User != nil && !ctx.User.AllowsKey(string(key)) {
		return nil, NoPermission("SET")
	}
	value, err := args.NextBytes()
	if err != nil {
		return nil, err
	}

	opt := setOptNone
	wantGet := false
	keepTTL := false
	hasExpireOpt := false
	var expireAt int64

	for args.Len() > 0 {
		switch {
		case args.UppercaseN("NX"):
			opt = setOptNX
		case args.UppercaseN("XX"):
			opt = setOptXX
		case args.UppercaseN("GET"):
			wantGet = true
		case args.UppercaseN("KEEPTTL"):
			keepTTL = true
		case args.UppercaseN("EX"):
			n, err := args.NextInt()
			if err != nil {
				return nil, err
			}
			hasExpireOpt = true
			expireAt = store.WallNow() + n*int64(time.Second)
		case args.UppercaseN("PX"):
			n, err := args.NextInt()
			if err != nil {
				return nil, err
			}
			hasExpireOpt = true
			expireAt = store.WallNow() + n*int64(time.Millisecond)
		case args.UppercaseN("EXAT"):
			n, err := args.NextInt()
			if err != nil {
				return nil, err
			}
			hasExpireOpt = true
			expireAt = n * int64(time.Second)
		case args.UppercaseN("PXAT"):
			n, err := args.NextInt()
			if err != nil {
				return nil, err
			}
			hasExpireOpt = true
			expireAt = n * int64(time.Millisecond)
		default:
			return nil, Syntax()
		}
	}

	var (
		oldBytes []byte
		hadOld   bool
		blocked  bool
	)

	err = ctx.DB.ObjectEntry(string(key), int64(ctx.ConnID), func(e *store.Entry) error {
		occupied := e.IsOccupied()
		if opt == setOptNX && occupied {
			blocked = true
			return nil
		}
		if opt == setOptXX && !occupied {
			blocked = true
			return nil
		}
		if wantGet && occupied {
			s, terr := e.Object().OnStr()
			if terr != nil {
				return TypeErr()
			}
			oldBytes = append([]byte(nil), s.Bytes()...)
			hadOld = true
		}

		var newExpire int64
		switch {
		case keepTTL && occupied:
			newExpire = e.Object().Expire
		case hasExpireOpt:
			newExpire = expireAt
		}

		if occupied {
			e.Remove()
		}
		e.OrInsert(object.NewStrValue(value), newExpire)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if blocked {
		if wantGet && hadOld {
			return resp.BlobString(oldBytes), nil
		}
		return resp.Null(), nil
	}
	if wantGet {
		if hadOld {
			return resp.BlobString(oldBytes), nil
		}
		return resp.Null(), nil
	}
	return resp.SimpleString("OK"), nil
}

// INCR key — spec.md §8 scenario 4: incrementing int64::MaxInt64 fails with
// "ERR value out of range" rather than wrapping.
func cmdIncr(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	key, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	if ctx.User != nil && !ctx.User.AllowsKey(string(key)) {
		return nil, NoPermission("INCR")
	}

	var newVal int64
	err = ctx.DB.UpdateObjectForce(string(key), func() object.Value { return object.NewStrValue([]byte("0")) },
		func(o *object.Object) error {
			s, terr := o.OnStr()
			if terr != nil {
				return TypeErr()
			}
			n, ierr := s.IncrBy(1)
			if ierr == object.ErrOverflow {
				return Overflow()
			}
			if ierr != nil {
				return Other(ierr.Error())
			}
			newVal = n
			return nil
		})
	if err != nil {
		return nil, err
	}
	return resp.Integer(newVal), nil
}
