package object

import (
	"sync"
	"sync/atomic"
)

// EventFlag bits let a reader skip the Events machinery entirely on the
// hot path (plain GET/SET) without taking a lock, grounded on
// original_source's Events.flags AtomicU8 + READ/WRITE/LOCK_EVENT_FLAG
// bitmask. flagWaiter is an internal-only fourth bit (not part of spec.md
// §4.3's READ|WRITE|LOCK set) for the BLPOP-style blocking waiters below,
// which are notified from the write path but aren't one of the three
// ReadEvent/WriteEvent/IntentionLock kinds spec.md describes.
type EventFlag uint8

const (
	FlagRead EventFlag = 1 << iota
	FlagWrite
	FlagLock
	flagWaiter
)

// WaitKind distinguishes what a blocked command is waiting for.
type WaitKind uint8

const (
	WaitPush WaitKind = iota // BLPOP/BRPOP waiting for a list to gain an element
	WaitKey                  // WAIT-style waiting for any write to the key
)

// Waiter is one blocked command's subscription to this key's events.
type Waiter struct {
	Kind WaitKind
	Done chan struct{}
}

// CallbackMode distinguishes spec.md §4.3's two ReadEvent/WriteEvent
// flavors: FnOnce callbacks are removed the first time they fire; FnMut
// callbacks are retained and decide for themselves whether to stay armed.
type CallbackMode uint8

const (
	FnOnce CallbackMode = iota
	FnMut
)

// ReadEvent is a callback armed to observe an immutable view of an Object
// after a successful read. A FnOnce callback fires once and is removed
// regardless of what it returns; a FnMut callback is retained across reads
// and removes itself only when its Fn returns nil ("Ok to self-remove"),
// staying armed on any non-nil error, per spec.md §4.3. A Deadline (in
// cmn/mono nanotime) past which the callback is dropped without firing is
// optional; zero means no deadline.
type ReadEvent struct {
	Mode     CallbackMode
	Deadline int64
	Fn       func(o *Object) error
}

// WriteEvent is ReadEvent's write-side counterpart: it fires after a
// mutation commits and observes the post-mutation Object, per spec.md
// §4.3 ("Fires after the mutation commits").
type WriteEvent struct {
	Mode     CallbackMode
	Deadline int64
	Fn       func(o *Object) error
}

// Events tracks an Object's pending read/write callbacks, blocked
// waiters, and the current intention lock holder (the connection id a
// blocking command has provisionally claimed the key for, e.g. a BLPOP
// about to pop once woken). flags lets store.go's read/write paths check
// "does anything care about this key" with a single atomic load before
// touching anything else.
//
// waiters/lockBy/hasLock/lockWake are only ever mutated while the owning
// shard's write lock is held (AddWaiter is always called from inside an
// UpdateObject*/ObjectEntry callback, Notify from the same call sites
// right after). reads/writes, by contrast, must support registration and
// firing from store.GetObject, which only takes the shard's *read* lock
// and therefore can run concurrently with sibling readers of the same
// key — mu guards those two slices independently of the shard lock.
type Events struct {
	flags atomic.Uint32

	mu     sync.Mutex
	reads  []*ReadEvent
	writes []*WriteEvent

	waiters  []*Waiter
	lockBy   int64
	hasLock  bool
	lockWake chan struct{}
}

func (e *Events) IsEmpty() bool {
	return e.flags.Load() == 0 && len(e.waiters) == 0 && !e.hasLock
}

func (e *Events) flagBits() uint32 { return e.flags.Load() }

// AddReadEvent registers ev to fire the next time (FnOnce) or every time
// (FnMut) this Object is read, e.g. client-tracking's GET-time hook.
func (e *Events) AddReadEvent(ev *ReadEvent) {
	e.mu.Lock()
	e.reads = append(e.reads, ev)
	e.mu.Unlock()
	e.flags.Store(e.flagBits() | uint32(FlagRead))
}

// AddWriteEvent registers ev to fire the next time (FnOnce) or every time
// (FnMut) this Object is written, e.g. client-tracking's invalidation push.
func (e *Events) AddWriteEvent(ev *WriteEvent) {
	e.mu.Lock()
	e.writes = append(e.writes, ev)
	e.mu.Unlock()
	e.flags.Store(e.flagBits() | uint32(FlagWrite))
}

// FireRead runs every still-armed ReadEvent against o after a successful
// read, dropping callbacks whose Deadline has already passed without
// firing them, and removing FnOnce callbacks (and any FnMut callback whose
// Fn returns nil) once they've run. Called by store.GetObject/VisitObject
// right after Touch, before the Object is handed back to the caller.
func (e *Events) FireRead(o *Object, nowNano int64) {
	if e.flagBits()&uint32(FlagRead) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.reads) == 0 {
		return
	}
	remaining := e.reads[:0]
	for _, ev := range e.reads {
		if ev.Deadline != 0 && ev.Deadline <= nowNano {
			continue
		}
		if err := ev.Fn(o); ev.Mode == FnOnce || err == nil {
			continue
		}
		remaining = append(remaining, ev)
	}
	e.reads = remaining
	if len(e.reads) == 0 {
		e.flags.Store(e.flagBits() &^ uint32(FlagRead))
	}
}

// FireWrite is FireRead's write-side counterpart, called by
// store.UpdateObject/UpdateObjectForce right after fn commits successfully,
// alongside the existing Notify(WaitKey)/Notify(WaitPush) waiter wakeups.
func (e *Events) FireWrite(o *Object, nowNano int64) {
	if e.flagBits()&uint32(FlagWrite) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.writes) == 0 {
		return
	}
	remaining := e.writes[:0]
	for _, ev := range e.writes {
		if ev.Deadline != 0 && ev.Deadline <= nowNano {
			continue
		}
		if err := ev.Fn(o); ev.Mode == FnOnce || err == nil {
			continue
		}
		remaining = append(remaining, ev)
	}
	e.writes = remaining
	if len(e.writes) == 0 {
		e.flags.Store(e.flagBits() &^ uint32(FlagWrite))
	}
}

// AddWaiter registers w and returns a function the caller must invoke to
// unregister it (e.g. on timeout), mirroring original_source's
// add_read_event/add_write_event plus flag maintenance.
func (e *Events) AddWaiter(w *Waiter) (remove func()) {
	e.waiters = append(e.waiters, w)
	e.flags.Store(e.flagBits() | uint32(flagWaiter))
	return func() {
		for i, x := range e.waiters {
			if x == w {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				break
			}
		}
		if len(e.waiters) == 0 {
			e.flags.Store(e.flagBits() &^ uint32(flagWaiter))
		}
	}
}

// Notify wakes every registered waiter of the given kind, closing each
// Done channel exactly once. Called by the write path after a command
// that could satisfy a blocking read (LPUSH/RPUSH waking BLPOP/BRPOP).
func (e *Events) Notify(kind WaitKind) {
	if e.flagBits()&uint32(flagWaiter) == 0 {
		return
	}
	remaining := e.waiters[:0]
	for _, w := range e.waiters {
		if w.Kind == kind {
			close(w.Done)
			continue
		}
		remaining = append(remaining, w)
	}
	e.waiters = remaining
	if len(e.waiters) == 0 {
		e.flags.Store(e.flagBits() &^ uint32(flagWaiter))
	}
}

// TryLock claims the intention lock for connID, overwriting any previous
// holder, mirroring add_lock_event's "overwrite target_id" behavior: the
// lock records intent, it doesn't exclude other writers.
func (e *Events) TryLock(connID int64) {
	e.lockBy = connID
	e.hasLock = true
	if e.lockWake == nil {
		e.lockWake = make(chan struct{})
	}
	e.flags.Store(e.flagBits() | uint32(FlagLock))
}

// Unlock releases the intention lock and wakes everyone blocked in
// WaitUnlock, all at once — a channel close is an implicit FIFO-agnostic
// broadcast, standing in for the original's explicit waiter counter.
func (e *Events) Unlock() {
	e.hasLock = false
	if e.lockWake != nil {
		close(e.lockWake)
		e.lockWake = nil
	}
	e.flags.Store(e.flagBits() &^ uint32(FlagLock))
}

func (e *Events) LockHolder() (int64, bool) { return e.lockBy, e.hasLock }

// WaitUnlock returns a channel that closes the next time Unlock is called.
// If no lock is currently held it returns a channel that is already
// closed, so callers can always safely range over a single <-wake step.
func (e *Events) WaitUnlock() <-chan struct{} {
	if !e.hasLock {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	if e.lockWake == nil {
		e.lockWake = make(chan struct{})
	}
	return e.lockWake
}
