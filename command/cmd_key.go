package command

import (
	"time"

	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

func init() {
	register(&Descriptor{Name: "EXPIRE", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdExpireFactory(time.Second, false)})
	register(&Descriptor{Name: "EXPIREAT", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdExpireFactory(time.Second, true)})
	register(&Descriptor{Name: "EXISTS", Arity: -1, Flags: FlagRead.Or(FlagKeyspace), Run: cmdExists})
	register(&Descriptor{Name: "DEL", Arity: -1, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdDel})
}

type expireOpt int

const (
	expireOptNone expireOpt = iota
	expireOptNX
	expireOptXX
	expireOptGT
	expireOptLT
)

// cmdExpireFactory builds EXPIRE/EXPIREAT's Run func; unit converts the
// numeric argument to nanoseconds, absolute distinguishes EXPIREAT's
// already-absolute timestamp from EXPIRE's relative offset.
func cmdExpireFactory(unit time.Duration, absolute bool) Handler {
	return func(ctx *Context, args *ArgIter) (*resp.Frame, error) {
		key, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		if ctx.User != nil && !ctx.User.AllowsKey(string(key)) {
			return nil, NoPermission("EXPIRE")
		}
		n, err := args.NextInt()
		if err != nil {
			return nil, err
		}

		opt := expireOptNone
		if args.Len() > 0 {
			switch {
			case args.UppercaseN("NX"):
				opt = expireOptNX
			case args.UppercaseN("XX"):
				opt = expireOptXX
			case args.UppercaseN("GT"):
				opt = expireOptGT
			case args.UppercaseN("LT"):
				opt = expireOptLT
			default:
				return nil, Syntax()
			}
		}

		var newEx int64
		if absolute {
			newEx = n * int64(unit)
		} else {
			newEx = store.WallNow() + n*int64(unit)
		}

		applied, err := ctx.DB.ConditionalExpire(string(key), func(cur int64) (bool, int64) {
			switch opt {
			case expireOptNX:
				return cur == 0, newEx
			case expireOptXX:
				return cur != 0, newEx
			case expireOptGT:
				return cur != 0 && newEx > cur, newEx
			case expireOptLT:
				return cur == 0 || newEx < cur, newEx
			default:
				return true, newEx
			}
		})
		if err == store.ErrNotFound {
			return resp.Integer(0), nil
		}
		if err != nil {
			return nil, err
		}
		if !applied {
			return resp.Integer(0), nil
		}
		return resp.Integer(1), nil
	}
}

func cmdExists(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if args.Len() == 0 {
		return nil, WrongArgNum("EXISTS")
	}
	var count int64
	for args.Len() > 0 {
		key, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		if ctx.DB.ContainsObject(string(key)) {
			count++
		}
	}
	return resp.Integer(count), nil
}

func cmdDel(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if args.Len() == 0 {
		return nil, WrongArgNum("DEL")
	}
	var count int64
	for args.Len() > 0 {
		key, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		if ctx.User != nil && !ctx.User.AllowsKey(string(key)) {
			return nil, NoPermission("DEL")
		}
		if _, ok := ctx.DB.RemoveObject(string(key)); ok {
			count++
		}
	}
	return resp.Integer(count), nil
}
