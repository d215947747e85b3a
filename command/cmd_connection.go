package command

import (
	"strconv"

	"github.com/rutin-go/rutin/resp"
)

func init() {
	register(&Descriptor{Name: "PING", Arity: 0, Flags: FlagConnection, Run: cmdPing})
	register(&Descriptor{Name: "AUTH", Arity: -1, Flags: FlagConnection, Run: cmdAuth})
	register(&Descriptor{Name: "HELLO", Arity: 0, Flags: FlagConnection, Run: cmdHello})
}

// PING [message] — spec.md §4.6's connection category: replies PONG, or
// echoes message when one is given.
func cmdPing(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if args.Len() == 0 {
		return resp.SimpleString("PONG"), nil
	}
	msg, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	return resp.BlobString(msg), nil
}

// AUTH [username] password — resolves the credential against ctx.ACL,
// installing the resulting User and Authenticated flag on success.
func cmdAuth(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	first, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	username := "default"
	password := string(first)
	if args.Len() > 0 {
		username = string(first)
		pw, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		password = string(pw)
	}
	u, err := ctx.ACL.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	ctx.User = u
	ctx.Authenticated = true
	return resp.SimpleString("OK"), nil
}

// HELLO [protover [AUTH username password]] — spec.md §6.1's upgrade
// handshake: replies with the server's supported protocol version and
// identity fields as a Map, the RESP3 analogue of Redis's HELLO reply.
// This server speaks RESP3 only; protover 2 is accepted (clients that
// negotiate down still get RESP3 framing, matching real Redis's behavior
// of never downgrading the wire format mid-connection).
func cmdHello(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if args.Len() > 0 {
		verBytes, err := args.NextBytes()
		if err != nil {
			return nil, err
		}
		if _, err := strconv.Atoi(string(verBytes)); err != nil {
			return nil, Syntax()
		}
	}
	for args.Len() > 0 {
		if args.UppercaseN("AUTH") {
			if _, err := cmdAuth(ctx, args); err != nil {
				return nil, err
			}
			continue
		}
		if args.UppercaseN("SETNAME") {
			if _, err := args.NextBytes(); err != nil {
				return nil, err
			}
			continue
		}
		return nil, Syntax()
	}
	return resp.Map(
		resp.KV{Key: resp.BlobString([]byte("server")), Val: resp.BlobString([]byte("rutin"))},
		resp.KV{Key: resp.BlobString([]byte("version")), Val: resp.BlobString([]byte("1.0.0"))},
		resp.KV{Key: resp.BlobString([]byte("proto")), Val: resp.Integer(3)},
		resp.KV{Key: resp.BlobString([]byte("id")), Val: resp.Integer(int64(ctx.ConnID))},
		resp.KV{Key: resp.BlobString([]byte("mode")), Val: resp.BlobString([]byte("standalone"))},
		resp.KV{Key: resp.BlobString([]byte("role")), Val: resp.BlobString([]byte("master"))},
	), nil
}
