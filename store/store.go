package store

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/rutin-go/rutin/cmn/mono"
	"github.com/rutin-go/rutin/object"
)

// maxConcurrentEvictions bounds how many goroutines may be sampling for
// an eviction candidate at once (SPEC_FULL.md §3: golang.org/x/sync's
// semaphore.Weighted "caps concurrent get_object_mut-triggered eviction
// scans"). Without this, a burst of writers all hitting OOM at the same
// instant would each walk the same shard's entries independently instead
// of letting the first scan relieve the pressure the rest are blocked on.
const maxConcurrentEvictions = 4

// Db is the sharded, concurrent key/value database. Shard count is fixed
// at construction (spec.md §3.3: next_power_of_two(num_cpus * 2)) so the
// shard index can be computed with a mask instead of a modulo.
type Db struct {
	shards []*shard
	mask   uint64

	chMu     sync.RWMutex
	channels map[string][]Outbox

	used atomic.Int64 // UsedMemory(), spec.md §5's process-wide atomic
	oom  atomic.Value // holds *OOMConfig, nil until SetOOM is called

	evictSem *semaphore.Weighted
}

// Outbox is the minimal surface PUBLISH needs from a subscriber's mailbox;
// mailbox.Mailbox implements it. Kept as an interface here so store never
// imports mailbox (mailbox imports store instead, avoiding a cycle).
type Outbox interface {
	TrySend(frame any) bool
}

func NumShards() int {
	n := runtime.GOMAXPROCS(0) * 2
	return nextPow2(n)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func New() *Db {
	return NewWithShards(NumShards())
}

func NewWithShards(numShards int) *Db {
	numShards = nextPow2(numShards)
	shards := make([]*shard, numShards)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Db{
		shards:   shards,
		mask:     uint64(numShards - 1),
		channels: make(map[string][]Outbox),
		evictSem: semaphore.NewWeighted(maxConcurrentEvictions),
	}
}

func (db *Db) shardFor(key Key) *shard {
	h := xxhash.Checksum64S([]byte(key), 0)
	return db.shards[h&db.mask]
}

// ShardCount reports the shard count this Db was constructed with.
func (db *Db) ShardCount() int { return len(db.shards) }

// ForEachShard exposes shard iteration for the housekeeper's expiration
// sweep and eviction sampler; it is the only cross-shard primitive Db
// grants outside of pub/sub so that those passes can round-robin without
// Db itself knowing anything about eviction policy.
func (db *Db) ForEachShard(fn func(idx int)) {
	for i := range db.shards {
		fn(i)
	}
}

// Snapshot calls fn once per live key/value pair across every shard,
// holding each shard's read lock only for the duration of that shard's
// pass — used by persist/rdb's save path to dump the dataset without
// stalling writers on other shards for the whole walk. Expired-but-not-
// yet-swept keys are skipped rather than lazily expired, since Snapshot
// only reads.
func (db *Db) Snapshot(fn func(key Key, o *object.Object)) {
	wall := WallNow()
	for _, s := range db.shards {
		s.mu.RLock()
		for k, o := range s.entries {
			if !o.IsExpiredAt(wall) {
				fn(k, o)
			}
		}
		s.mu.RUnlock()
	}
}

// GetObject performs a read-shared lookup. Expired keys are removed as a
// side effect (spec.md §4.2) before ErrNotFound is returned.
func (db *Db) GetObject(key Key) (*object.Object, error) {
	s := db.shardFor(key)
	wall := WallNow()

	s.mu.RLock()
	o, ok := s.entries[key]
	expired := ok && o.IsExpiredAt(wall)
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if expired {
		db.expireNow(s, key)
		return nil, ErrNotFound
	}
	now := mono.NanoTime()
	o.Touch(now)
	o.Events.FireRead(o, now)
	return o, nil
}

func (db *Db) expireNow(s *shard, key Key) {
	s.mu.Lock()
	o, ok := s.entries[key]
	if ok && o.IsExpiredAt(WallNow()) {
		s.removeLocked(key)
		o.Events.Notify(object.WaitKey)
	}
	s.mu.Unlock()
}

// ContainsObject reports liveness without bumping access-tracking state.
func (db *Db) ContainsObject(key Key) bool {
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.RLock()
	o, ok := s.entries[key]
	live := ok && !o.IsExpiredAt(wall)
	s.mu.RUnlock()
	if ok && !live {
		db.expireNow(s, key)
	}
	return live
}

// VisitObject calls fn with read access to key's Object. fn must not
// retain the pointer beyond the call or block on anything besides CPU
// work: the shard's RLock is held for the duration.
func (db *Db) VisitObject(key Key, fn func(o *object.Object) error) error {
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.RLock()
	o, ok := s.entries[key]
	if ok && o.IsExpiredAt(wall) {
		s.mu.RUnlock()
		db.expireNow(s, key)
		return ErrNotFound
	}
	if !ok {
		s.mu.RUnlock()
		return ErrNotFound
	}
	now := mono.NanoTime()
	o.Touch(now)
	o.Events.FireRead(o, now)
	err := fn(o)
	s.mu.RUnlock()
	return err
}

// UpdateObject calls fn with exclusive access to key's Object, firing the
// write event set after fn returns successfully. Returns ErrNotFound
// without calling fn if the key is absent or expired (use
// UpdateObjectForce to create-on-missing).
func (db *Db) UpdateObject(key Key, fn func(o *object.Object) error) error {
	if err := db.evictIfNeeded(); err != nil {
		return err
	}
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.Lock()
	o, ok := s.entries[key]
	if ok && o.IsExpiredAt(wall) {
		s.removeLocked(key)
		s.mu.Unlock()
		return ErrNotFound
	}
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	now := mono.NanoTime()
	o.Touch(now)
	err := fn(o)
	if err == nil {
		o.Events.Notify(object.WaitKey)
		o.Events.Notify(object.WaitPush)
		o.Events.FireWrite(o, now)
	}
	s.mu.Unlock()
	return err
}

// UpdateObjectForce behaves like UpdateObject but creates the key with
// create() (and no TTL) first when it is absent.
func (db *Db) UpdateObjectForce(key Key, create func() object.Value, fn func(o *object.Object) error) error {
	if err := db.evictIfNeeded(); err != nil {
		return err
	}
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.Lock()
	o, ok := s.entries[key]
	if ok && o.IsExpiredAt(wall) {
		s.removeLocked(key)
		ok = false
	}
	if !ok {
		v := create()
		o = object.New(v, 0)
		s.insertLocked(key, o)
		db.addUsed(v.SizeBytes())
	}
	now := mono.NanoTime()
	o.Touch(now)
	err := fn(o)
	if err == nil {
		o.Events.Notify(object.WaitKey)
		o.Events.Notify(object.WaitPush)
		o.Events.FireWrite(o, now)
	}
	s.mu.Unlock()
	return err
}

// InsertObject unconditionally installs o at key, replacing and evicting
// any previous occupant (its events, if any, simply never fire again —
// same as dropping a HashMap entry in the original).
func (db *Db) InsertObject(key Key, v object.Value, expireNano int64) error {
	if err := db.evictIfNeeded(); err != nil {
		return err
	}
	s := db.shardFor(key)
	o := object.New(v, expireNano)
	o.Touch(mono.NanoTime())
	s.mu.Lock()
	old, had := s.insertLocked(key, o)
	s.mu.Unlock()
	if had {
		db.addUsed(old.Value.SizeBytes() * -1)
	}
	db.addUsed(v.SizeBytes())
	return nil
}

func (db *Db) RemoveObject(key Key) (*object.Object, bool) {
	s := db.shardFor(key)
	s.mu.Lock()
	o, ok := s.removeLocked(key)
	s.mu.Unlock()
	if ok {
		db.addUsed(-o.Value.SizeBytes())
		o.Events.Notify(object.WaitKey)
	}
	return o, ok
}

// Expire sets or clears (expireNano == 0) key's TTL. Returns false if the
// key does not exist.
func (db *Db) Expire(key Key, expireNano int64) bool {
	s := db.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.entries[key]
	if !ok {
		return false
	}
	o.Expire = expireNano
	if expireNano == 0 {
		s.expire.Remove(key)
	} else {
		s.expire.Set(key, expireNano)
	}
	return true
}

// ConditionalExpire evaluates predicate(currentExpire) under key's shard
// lock and, if it reports apply=true, installs newExpire and keeps the
// shard's expire index in sync — unlike setting Object.Expire directly
// from inside UpdateObject, which would desync the index the housekeeper
// sweeps (spec.md §4.8). Used by EXPIRE/EXPIREAT's NX/XX/GT/LT option
// predicate, which needs to read the current value before deciding.
func (db *Db) ConditionalExpire(key Key, predicate func(curExpire int64) (apply bool, newExpire int64)) (applied bool, err error) {
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.entries[key]
	if ok && o.IsExpiredAt(wall) {
		s.removeLocked(key)
		ok = false
	}
	if !ok {
		return false, ErrNotFound
	}
	apply, newExpire := predicate(o.Expire)
	if !apply {
		return false, nil
	}
	o.Expire = newExpire
	if newExpire == 0 {
		s.expire.Remove(key)
	} else {
		s.expire.Set(key, newExpire)
	}
	return true, nil
}

// Ttl returns the remaining duration until key expires, or 0 with ok=false
// when the key has no TTL, and ErrNotFound when it doesn't exist.
func (db *Db) Ttl(key Key) (time.Duration, bool, error) {
	s := db.shardFor(key)
	wall := WallNow()
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.entries[key]
	if !ok || o.IsExpiredAt(wall) {
		return 0, false, ErrNotFound
	}
	if !o.HasExpire() {
		return 0, false, nil
	}
	return time.Duration(o.Expire - wall), true, nil
}

// WallNow returns the current wall-clock instant in the same unit
// Object.Expire is set in (unix nanoseconds). Expire is an absolute
// deadline clients reason about (spec.md §3.2), so it lives on the wall
// clock, never on cmn/mono's process-relative counter — mono.NanoTime is
// reserved for atc (access-tracking) ordering, which only needs
// monotonicity, not a wall-clock anchor.
func WallNow() int64 { return time.Now().UnixNano() }

var ErrTypeMismatch = errors.New("store: type mismatch")
