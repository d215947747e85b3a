package command

import (
	"strconv"
	"sync"
	"time"

	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

func init() {
	register(&Descriptor{Name: "LPUSH", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdPush(true)})
	register(&Descriptor{Name: "RPUSH", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdPush(false)})
	register(&Descriptor{Name: "LPOP", Arity: -1, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdPop(true)})
	register(&Descriptor{Name: "RPOP", Arity: -1, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdPop(false)})
	register(&Descriptor{Name: "LLEN", Arity: 1, Flags: FlagRead.Or(FlagKeyspace), Run: cmdLLen})
	register(&Descriptor{Name: "LRANGE", Arity: 3, Flags: FlagRead.Or(FlagKeyspace), Run: cmdLRange})
	register(&Descriptor{Name: "BLPOP", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdBPop(true)})
	register(&Descriptor{Name: "BRPOP", Arity: -2, Flags: FlagWrite.Or(FlagKeyspace), IsWriter: true, Run: cmdBPop(false)})
}

// cmdPush returns LPUSH/RPUSH's handler: pushes one or more elements onto
// key (creating an empty List if absent) and wakes any BLPOP/BRPOP
// blocked on it, per spec.md §4.6's "List" category.
func cmdPush(front bool) Handler {
	return func(ctx *Context, args *ArgIter) (*resp.Frame, error) {
		key, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		elems, err := args.Collect()
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, WrongArgNum("LPUSH")
		}
		var n int
		err = ctx.DB.UpdateObjectForce(string(key), func() object.Value { return object.NewList() },
			func(o *object.Object) error {
				l, err := o.OnList()
				if err != nil {
					return err
				}
				for _, e := range elems {
					if front {
						l.PushFront(e)
					} else {
						l.PushBack(e)
					}
				}
				n = l.Len()
				return nil
			})
		if err != nil {
			return nil, err
		}
		return resp.Integer(int64(n)), nil
	}
}

func cmdPop(front bool) Handler {
	return func(ctx *Context, args *ArgIter) (*resp.Frame, error) {
		key, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		var popped []byte
		var ok bool
		err = ctx.DB.UpdateObject(string(key), func(o *object.Object) error {
			l, err := o.OnList()
			if err != nil {
				return err
			}
			if front {
				popped, ok = l.PopFront()
			} else {
				popped, ok = l.PopBack()
			}
			return nil
		})
		if err == store.ErrNotFound || !ok {
			return nil, Null()
		}
		if err != nil {
			return nil, err
		}
		return resp.BlobString(popped), nil
	}
}

func cmdLLen(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	key, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	var n int
	err = ctx.DB.VisitObject(string(key), func(o *object.Object) error {
		l, err := o.OnList()
		if err != nil {
			return err
		}
		n = l.Len()
		return nil
	})
	if err == store.ErrNotFound {
		return resp.Integer(0), nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Integer(int64(n)), nil
}

func cmdLRange(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	key, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	start, err := args.NextInt()
	if err != nil {
		return nil, err
	}
	end, err := args.NextInt()
	if err != nil {
		return nil, err
	}
	var elems [][]byte
	err = ctx.DB.VisitObject(string(key), func(o *object.Object) error {
		l, err := o.OnList()
		if err != nil {
			return err
		}
		elems = l.Range(int(start), int(end))
		return nil
	})
	if err == store.ErrNotFound {
		return resp.Array(), nil
	}
	if err != nil {
		return nil, err
	}
	items := make([]*resp.Frame, len(elems))
	for i, e := range elems {
		items[i] = resp.BlobString(e)
	}
	return resp.Array(items...), nil
}

// cmdBPop implements BLPOP/BRPOP: pop immediately if an element is
// already present; otherwise subscribe to the key's WaitPush event and
// retry once woken, up to the given timeout (spec.md §5's "absolute
// deadline in the async timer; on expiry reply null"). args is the list
// of keys followed by a trailing timeout in seconds (fractional allowed).
func cmdBPop(front bool) Handler {
	pop := cmdPop(front)
	return func(ctx *Context, args *ArgIter) (*resp.Frame, error) {
		if args.Len() < 2 {
			return nil, WrongArgNum("BLPOP")
		}
		keyFrames, err := args.TakeN(args.Len() - 1)
		if err != nil {
			return nil, err
		}
		timeoutBytes, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		timeoutSecs, perr := strconv.ParseFloat(string(timeoutBytes), 64)
		if perr != nil || timeoutSecs < 0 {
			return nil, Other("ERR timeout is not a float or out of range")
		}
		hasDeadline := timeoutSecs > 0
		deadline := time.Now().Add(time.Duration(timeoutSecs * float64(time.Second)))

		for {
			for _, key := range keyFrames {
				reply, err := pop(ctx, NewArgIter([]*resp.Frame{resp.BlobString(key)}))
				if ce, ok := err.(*Error); ok && ce.Kind == KindNull {
					continue // nothing to pop yet, try the next key
				}
				if err != nil {
					return nil, err
				}
				return resp.Array(resp.BlobString(key), reply), nil
			}
			wait, cancel := waitAnyPush(ctx.DB, keyFrames)
			var timerC <-chan time.Time
			if hasDeadline {
				timer := time.NewTimer(time.Until(deadline))
				defer timer.Stop()
				timerC = timer.C
			}
			select {
			case <-wait:
			case <-timerC:
				cancel()
				return resp.Null(), nil
			}
			cancel()
		}
	}
}

// waitAnyPush subscribes to WaitPush on every key (creating an empty List
// if a key doesn't exist yet, so a waiter can attach to it), returning a
// channel that closes the first time any one of them fires a write, and a
// cancel func to unregister the rest once the wait resolves.
func waitAnyPush(db *store.Db, keys [][]byte) (done <-chan struct{}, cancel func()) {
	ch := make(chan struct{})
	var once sync.Once
	fire := func() { once.Do(func() { close(ch) }) }

	var removers []func()
	for _, k := range keys {
		key := string(k)
		w := &object.Waiter{Kind: object.WaitPush, Done: make(chan struct{})}
		_ = db.UpdateObjectForce(key, func() object.Value { return object.NewList() }, func(o *object.Object) error {
			removers = append(removers, o.Events.AddWaiter(w))
			return errNoNotify
		})
		go func(w *object.Waiter) {
			<-w.Done
			fire()
		}(w)
	}
	return ch, func() {
		for _, r := range removers {
			r()
		}
	}
}

// errNoNotify is UpdateObjectForce's fn returning a non-nil error purely to
// suppress the success-path event Notify a real write would trigger —
// registering a waiter must not immediately wake itself.
var errNoNotify = Other("")
