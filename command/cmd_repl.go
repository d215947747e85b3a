package command

import (
	"github.com/rutin-go/rutin/resp"
)

func init() {
	register(&Descriptor{Name: "PSYNC", Arity: 2, Flags: FlagReplication, Run: cmdPsync})
	register(&Descriptor{Name: "REPLCONF", Arity: -1, Flags: FlagReplication, Run: cmdReplconf})
}

// PSYNC replid offset — spec.md §4.5/§4.9's hand-off-only contract: this
// handler never itself performs the resync, it only records the
// replica's requested resume point on ctx for the connection loop to act
// on right after Dispatch returns (spec.md §4.9: "the handler loop...
// hands the socket to the master task"). A nil reply here is
// deliberate — FULLRESYNC/CONTINUE and everything that follows is
// written by the master task once it owns the socket.
func cmdPsync(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	replID, err := args.NextBytes()
	if err != nil {
		return nil, err
	}
	offset, err := args.NextInt()
	if err != nil {
		// "?" is the literal replica-requests-full-resync sentinel
		// (spec.md §4.9); NextInt's ParseInt on "?" fails, so treat any
		// parse failure here as a full-resync request rather than a
		// syntax error.
		offset = -1
	}
	ctx.PsyncRequested = true
	ctx.PsyncReplID = string(replID)
	ctx.PsyncOffset = offset
	return nil, nil
}

// REPLCONF key value [key value ...] — the replica-side handshake
// preamble (listening-port, capa, GETACK), accepted here as an
// informational no-op per spec.md §4.5's note that PSYNC is the only
// replication command whose contract is fully specified; every REPLCONF
// sub-form that a handshake can send gets a uniform +OK, matching the
// master accept-path's own handshake loop in repl/master.go.
func cmdReplconf(ctx *Context, args *ArgIter) (*resp.Frame, error) {
	if _, err := args.Collect(); err != nil {
		return nil, err
	}
	return resp.SimpleString("OK"), nil
}
