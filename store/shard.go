package store

import (
	"sync"

	"github.com/rutin-go/rutin/object"
)

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*object.Object
	expire  *expireIndex
}

func newShard() *shard {
	return &shard{
		entries: make(map[Key]*object.Object),
		expire:  newExpireIndex(),
	}
}

// removeLocked deletes key from entries and the expire index; caller must
// hold the shard's write lock.
func (s *shard) removeLocked(key Key) (*object.Object, bool) {
	o, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	s.expire.Remove(key)
	return o, true
}

// insertLocked installs o at key, reporting the previous occupant (if
// any) so the caller can reconcile Db.UsedMemory.
func (s *shard) insertLocked(key Key, o *object.Object) (old *object.Object, had bool) {
	old, had = s.entries[key]
	s.entries[key] = o
	if o.HasExpire() {
		s.expire.Set(key, o.Expire)
	} else {
		s.expire.Remove(key)
	}
	return old, had
}
