package command

import (
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

// Context is the per-connection state a command handler sees, grounded on
// spec.md §4.7's handler-loop State tuple {shared, conn, mailbox, context
// (client id, ACL, subscribed channels, tracking redirect)} restricted to
// the slice of it the command layer itself needs (conn's framing state
// belongs to handler, not here).
type Context struct {
	ConnID     mailbox.TaskID
	DB         *store.Db
	PostOffice *mailbox.PostOffice

	// Self is this connection's own Outbox, handed to PUBLISH/SUBSCRIBE so
	// pushed messages and pub/sub acks address this connection's mailbox.
	Self mailbox.Outbox

	ACL  *ACL
	User *User

	// Authenticated reports whether AUTH/HELLO has already supplied valid
	// credentials (or requirepass is unset, in which case this starts
	// true). Commands outside FlagConnection are refused until this is
	// true, mirroring requirepass enforcement.
	Authenticated bool

	// Subs maps a subscribed channel name to its unsubscribe func,
	// registered via store.Db.Subscribe.
	Subs map[string]func()

	// Tracking and TrackedKeys implement spec.md's client-tracking
	// redirection: GET adds the key it read to TrackedKeys when Tracking
	// is on, so a later invalidation (delivered as a Resp3 letter, per
	// spec.md §4.7) can be targeted.
	Tracking    bool
	TrackedKeys map[string]struct{}

	// PsyncRequested is set by cmdPsync and consumed by the handler loop
	// right after Dispatch returns: a true value means this connection's
	// socket must be handed off to the master task (spec.md §4.9) rather
	// than continue being served here. PsyncReplID/PsyncOffset carry the
	// replica's requested resume point ("?"/-1 for a fresh full resync).
	PsyncRequested bool
	PsyncReplID    string
	PsyncOffset    int64
}

func NewContext(connID mailbox.TaskID, db *store.Db, po *mailbox.PostOffice, self mailbox.Outbox, acl *ACL) *Context {
	return &Context{
		ConnID:        connID,
		DB:            db,
		PostOffice:    po,
		Self:          self,
		ACL:           acl,
		User:          acl.DefaultUser(),
		Authenticated: len(acl.DefaultUser().PassHash) == 0,
		Subs:          make(map[string]func()),
		TrackedKeys:   make(map[string]struct{}),
	}
}

// TrackKey records key as read under client tracking and arms a WriteEvent
// on o (spec.md §4.3's write-event mechanism) so the first write to key
// after this read delivers an invalidation Push letter back to this
// connection's own mailbox, per spec.md §4.7 ("used for client-tracking
// invalidations"). Re-reading an already-tracked key is a no-op: per the
// Open Question in spec.md §9 ("exact lifecycle of client_track Outboxes
// across reconnection... source drops silently"), a key stays tracked
// until it is invalidated or the connection closes, it is not re-armed on
// every GET.
func (c *Context) TrackKey(key string, o *object.Object) {
	if !c.Tracking {
		return
	}
	if _, already := c.TrackedKeys[key]; already {
		return
	}
	c.TrackedKeys[key] = struct{}{}

	self := c.Self
	name := key
	o.Events.AddWriteEvent(&object.WriteEvent{
		Mode: object.FnOnce,
		Fn: func(*object.Object) error {
			self.SendResp3(resp.Push(resp.SimpleString("invalidate"), resp.Array(resp.BlobString([]byte(name)))))
			return nil
		},
	})
}

// Close unsubscribes every channel this connection is still subscribed to,
// called by the handler loop on connection teardown.
func (c *Context) Close() {
	for _, unsub := range c.Subs {
		unsub()
	}
}
