package command

import (
	"github.com/pkg/errors"

	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/resp"
)

// OnDispatch, when non-nil, is called once per completed Dispatch with
// the resolved command name and whether the reply was an error frame.
// Left as a package-level hook rather than a Context field so the stats
// admin surface (SPEC_FULL.md §4.11) can observe every connection's
// traffic without command importing stats (which itself imports store
// and mailbox — command is a dependency of both, so the reverse import
// would cycle).
var OnDispatch func(name string, isErr bool)

// Dispatch executes one decoded command Frame against ctx, implementing
// spec.md §4.4's six numbered steps: name match, ACL check, argument parse
// (each representative command does its own key/channel re-check), execute,
// write propagation, and reply. raw is the exact bytes the frame was
// decoded from — the canonical form a Wcmd letter carries verbatim to the
// AOF writer and/or set-master task (step 5).
func Dispatch(ctx *Context, frame *resp.Frame, raw []byte) (reply *resp.Frame) {
	name := "?"
	if OnDispatch != nil {
		defer func() {
			isErr := reply != nil && (reply.Kind == resp.KindSimpleError || reply.Kind == resp.KindBlobError)
			OnDispatch(name, isErr)
		}()
	}

	items, err := frame.AsItems()
	if err != nil || len(items) == 0 {
		return ToFrame(Syntax())
	}

	nameBytes, err := items[0].Str()
	if err != nil {
		return ToFrame(Syntax())
	}
	name = upper(string(nameBytes))

	desc, ok := catalog[name]
	if !ok {
		return ToFrame(UnknownCmd(name))
	}

	argFrames := items[1:]
	if desc.Sub != nil {
		if len(argFrames) == 0 {
			return ToFrame(UnknownCmd(name))
		}
		subBytes, err := argFrames[0].Str()
		if err != nil {
			return ToFrame(Syntax())
		}
		sub, ok := desc.Sub[upper(string(subBytes))]
		if !ok {
			return ToFrame(UnknownCmd(name + " " + string(subBytes)))
		}
		desc = sub
		argFrames = argFrames[1:]
	}

	if !checkArity(desc.Arity, len(argFrames)) {
		return ToFrame(WrongArgNum(desc.Name))
	}

	if !desc.Flags.Has(FlagConnection) {
		if !ctx.Authenticated {
			return ToFrame(Forbidden("NOAUTH Authentication required"))
		}
		if ctx.User != nil && !ctx.User.AllowsCommand(desc.Flags) {
			return ToFrame(NoPermission(desc.Name))
		}
	}

	reply, runErr := desc.Run(ctx, NewArgIter(argFrames))
	if runErr != nil {
		if !isControlFlow(runErr) {
			nlog.Warningf("command %s failed: %v", desc.Name, errors.WithMessage(runErr, "dispatch"))
		}
		return ToFrame(runErr)
	}

	if desc.IsWriter {
		propagate(ctx.PostOffice, raw)
	}

	return reply
}

// isControlFlow reports whether err is an expected non-exceptional outcome
// (a missing key, an unmet SET NX/XX predicate, PUBLISH's zero-subscriber
// shortcut) rather than a genuine failure worth a warning log.
func isControlFlow(err error) bool {
	ce, ok := err.(*Error)
	return ok && (ce.Kind == KindNull || ce.Kind == KindErrorCode)
}

func propagate(po *mailbox.PostOffice, raw []byte) {
	if po == nil {
		return
	}
	for _, sink := range po.WcmdSinks() {
		sink.SendWcmd(raw)
	}
}
