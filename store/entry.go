package store

import (
	"github.com/rutin-go/rutin/cmn/mono"
	"github.com/rutin-go/rutin/object"
)

// Entry is the Occupied-or-Vacant view of one key under its shard's write
// lock, passed to the callback given to Db.ObjectEntry. It must not be
// retained or used after that callback returns.
//
// original_source's object_entry suspends the caller on a pending
// IntentionLock held by another task before settling into Occupied/Vacant.
// This port keeps the lock bookkeeping (object.Events.TryLock/Unlock) but
// the wait-then-retry loop lives in Db.ObjectEntry as a plain for-loop
// around a channel receive rather than the original's explicit
// waiter-counter/notify-handle protocol — Go's channel close-to-broadcast
// already gives every waiter a wakeup in one step, so the counter (whose
// job was tracking "am I the last to leave") has no work left to do.
type Entry struct {
	db    *Db
	shard *shard
	key   Key
	obj   *object.Object // nil when Vacant
}

func (e *Entry) IsOccupied() bool { return e.obj != nil }
func (e *Entry) IsVacant() bool   { return e.obj == nil }

// Object returns the live Object, or nil if the entry is Vacant.
func (e *Entry) Object() *object.Object { return e.obj }

// OrInsert installs v (with expireNano, 0 for none) if the entry is
// Vacant, then returns the (possibly newly created) Object.
func (e *Entry) OrInsert(v object.Value, expireNano int64) *object.Object {
	if e.obj != nil {
		return e.obj
	}
	o := object.New(v, expireNano)
	o.Touch(mono.NanoTime())
	e.shard.insertLocked(e.key, o)
	e.db.addUsed(v.SizeBytes())
	e.obj = o
	return o
}

// Remove deletes an Occupied entry, returning the removed Object. A no-op
// returning (nil, false) on a Vacant entry.
func (e *Entry) Remove() (*object.Object, bool) {
	if e.obj == nil {
		return nil, false
	}
	o, _ := e.shard.removeLocked(e.key)
	e.db.addUsed(-o.Value.SizeBytes())
	e.obj = nil
	return o, true
}

// ObjectEntry resolves key to an Entry and invokes fn with the shard's
// write lock held, honoring any IntentionLock recorded by a previous
// occupant: if one is held by a connection other than connID, the caller
// blocks on that lock's release (or the default connID==0 "no affinity"
// caller, which never holds a lock of its own) before the entry settles.
func (db *Db) ObjectEntry(key Key, connID int64, fn func(e *Entry) error) error {
	if err := db.evictIfNeeded(); err != nil {
		return err
	}
	s := db.shardFor(key)
	for {
		s.mu.Lock()
		o, ok := s.entries[key]
		if ok && o.IsExpiredAt(WallNow()) {
			s.removeLocked(key)
			ok = false
		}
		if ok {
			if holder, locked := o.Events.LockHolder(); locked && holder != connID {
				wake := o.Events.WaitUnlock()
				s.mu.Unlock()
				<-wake
				continue
			}
			o.Touch(mono.NanoTime())
		}
		entry := &Entry{db: db, shard: s, key: key}
		if ok {
			entry.obj = o
		}
		err := fn(entry)
		if entry.obj != nil {
			entry.obj.Events.Notify(object.WaitKey)
			entry.obj.Events.Notify(object.WaitPush)
		}
		s.mu.Unlock()
		return err
	}
}
