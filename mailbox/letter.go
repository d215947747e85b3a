// Package mailbox is the post office: an addressable registry of async
// mailboxes keyed by task id, carrying Letters between connection handlers
// and the long-lived background tasks (AOF writer, master, replica,
// expiration sweeper, the shutdown listener).
//
// Grounded on spec.md §3.4/§6.3 directly; the teacher's pack carries no
// standalone "post office" file to copy from (original_source/post_office.rs
// was filtered out of the retrieval set), so the registry-of-channels-by-id
// shape follows the general pattern the teacher uses in transport for
// per-stream registration, adapted from an HTTP stream registry to a
// channel-of-Letter registry.
package mailbox

import "github.com/rutin-go/rutin/resp"

// Kind tags which variant a Letter carries.
type Kind uint8

const (
	KindShutdown Kind = iota
	KindBlock
	KindResp3
	KindWcmd
	KindPsync
)

func (k Kind) String() string {
	switch k {
	case KindShutdown:
		return "Shutdown"
	case KindBlock:
		return "Block"
	case KindResp3:
		return "Resp3"
	case KindWcmd:
		return "Wcmd"
	case KindPsync:
		return "Psync"
	default:
		return "Unknown"
	}
}

// PsyncPayload is the one-shot hand-off a handler sends the master task
// after receiving a PSYNC command. Handle is left untyped (any) here so
// mailbox never imports the handler package that would otherwise define
// it — avoiding the cyclic-references problem spec.md §9 calls out for
// Db/Conf/PostOffice and generalizes to every component that would
// otherwise need a back-reference. repl.Master type-asserts Handle back
// to its own concrete hand-off type.
type PsyncPayload struct {
	Handle     any
	ReplID     string
	ReplOffset int64
}

// Letter is one message on a mailbox, a tagged union mirroring spec.md
// §6.3. Only Resp3 and Wcmd are cloneable (duplicated to fan a write
// command out to both the AOF and a replica mailbox, or to redirect one
// reply frame to more than one subscriber); Psync is one-shot ownership
// transfer and Clone reports false for it.
type Letter struct {
	Kind Kind

	// Block: closed by the post office's pause orchestration once the
	// blocked task may resume.
	UnblockEvent <-chan struct{}

	// Resp3: a reply frame written straight through to a client connection,
	// used for client-tracking invalidation pushes and inter-client
	// redirection (spec.md §4.7).
	Frame *resp.Frame

	// Wcmd: the raw request bytes of a write command, replayed for
	// durability (AOF) or streamed to a replica's backlog.
	Wcmd []byte

	// Psync: hands a handler off to the master task to begin replication.
	Psync *PsyncPayload
}

func Shutdown() Letter { return Letter{Kind: KindShutdown} }

func Block(unblock <-chan struct{}) Letter {
	return Letter{Kind: KindBlock, UnblockEvent: unblock}
}

func Resp3(f *resp.Frame) Letter { return Letter{Kind: KindResp3, Frame: f} }

func Wcmd(raw []byte) Letter { return Letter{Kind: KindWcmd, Wcmd: raw} }

func Psync(handle any, replID string, offset int64) Letter {
	return Letter{Kind: KindPsync, Psync: &PsyncPayload{Handle: handle, ReplID: replID, ReplOffset: offset}}
}

// Clone duplicates l for delivery to a second mailbox. ok is true only for
// Resp3 and Wcmd letters: a Psync is an ownership transfer that cannot be
// duplicated, per spec.md §6.3, and Shutdown/Block letters are not cloned
// either.
func (l Letter) Clone() (dup Letter, ok bool) {
	if l.Kind != KindResp3 && l.Kind != KindWcmd {
		return Letter{}, false
	}
	return l, true
}
