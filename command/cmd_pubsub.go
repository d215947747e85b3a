package command

import (
	"github.com/rutin-go/rutin/resp"
)

func init() {
	register(&Descriptor{Name: "PUBLISH", Arity: 2, Flags: FlagPubSub, IsWriter: false, Run: cmdPublish})
	register(&Descriptor{Name: "SUBSCRIBE", Arity: -1, Flags: FlagPubSub, Run: cmdSubscribe})
	register(&Descriptor{Name: "UNSUBSCRIBE", Arity: 0, Flags: FlagPubSub, Run: cmdUnsubscribe})
}

// PUBLISH topic msg — spec.md §4.5: walks topic's subscriber list, sends
// each Outbox a Push-style Array [message, topic, msg]; the reply is the
// delivered count. store.Db.Publish prunes every subscriber whose send
// fails (a closed mailbox's TrySend returns false) from the channel list
// under the channel table's write lock and does not count it as delivered,
// grounded on original_source's "if send fails, remove listener".
func cmdPublish(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	topic, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	if ctx.User != nil && !ctx.User.AllowsChannel(string(topic)) {
		return nil, NoPermission("PUBLISH")
	}
	msg, err := args.NextBytes()
	if err != nil {
		return nil, err
	}

	push := resp.Array(
		resp.BlobString([]byte("message")),
		resp.BlobString(append([]byte(nil), topic...)),
		resp.BlobString(append([]byte(nil), msg...)),
	)
	count := ctx.DB.Publish(string(topic), push)
	if count == 0 {
		return nil, ErrorCode(0)
	}
	return resp.Integer(int64(count)), nil
}

// SUBSCRIBE topic... — registers ctx.Self on every named topic not already
// subscribed, replying with the RESP3 Push confirmation sequence.
func cmdSubscribe(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if args.Len() == 0 {
		return nil, WrongArgNum("SUBSCRIBE")
	}
	var last *resp.Frame
	for args.Len() > 0 {
		topic, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		name := string(topic)
		if ctx.User != nil && !ctx.User.AllowsChannel(name) {
			return nil, NoPermission("SUBSCRIBE")
		}
		if _, already := ctx.Subs[name]; !already {
			ctx.Subs[name] = ctx.DB.Subscribe(name, ctx.Self)
		}
		last = resp.Push(
			resp.BlobString([]byte("subscribe")),
			resp.BlobString(append([]byte(nil), topic...)),
			resp.Integer(int64(len(ctx.Subs))),
		)
	}
	return last, nil
}

// UNSUBSCRIBE [topic...] — with no arguments, unsubscribes from every
// channel this connection currently holds, matching Redis's UNSUBSCRIBE
// semantics.
func cmdUnsubscribe(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	var topics [][]byte
	if args.Len() == 0 {
		for name := range ctx.Subs {
			topics = append(topics, []byte(name))
		}
	} else {
		var err error
		topics, err = args.Collect()
		if err != nil {
			return nil, err
		}
	}

	var last *resp.Frame
	if len(topics) == 0 {
		return resp.Push(
			resp.BlobString([]byte("unsubscribe")),
			resp.Null(),
			resp.Integer(0),
		), nil
	}
	for _, topic := range topics {
		name := string(topic)
		if unsub, ok := ctx.Subs[name]; ok {
			unsub()
			delete(ctx.Subs, name)
		}
		last = resp.Push(
			resp.BlobString([]byte("unsubscribe")),
			resp.BlobString(append([]byte(nil), topic...)),
			resp.Integer(int64(len(ctx.Subs))),
		)
	}
	return last, nil
}
