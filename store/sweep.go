package store

import (
	"github.com/rutin-go/rutin/cmn/mono"
	"github.com/rutin-go/rutin/object"
)

// SweepExpired scans every shard's expire index for keys whose deadline is
// at or before nowNano, removing up to perShardLimit per shard and firing
// each one's write events — the housekeeper's background sweep, spec.md
// §4.8: "scans the lower-bound prefix of expire_index up to now, removing
// each object (firing write events)... does not hold any shard lock
// across await points." Returns the total number of keys removed.
func (db *Db) SweepExpired(nowNano int64, perShardLimit int) int {
	total := 0
	for _, s := range db.shards {
		s.mu.Lock()
		keys := s.expire.PeekExpired(nowNano, perShardLimit)
		var removed []*object.Object
		for _, k := range keys {
			if o, ok := s.entries[k]; ok {
				delete(s.entries, k)
				removed = append(removed, o)
			}
		}
		s.mu.Unlock()

		now := mono.NanoTime()
		for _, o := range removed {
			db.addUsed(-o.Value.SizeBytes())
			o.Events.Notify(object.WaitKey)
			o.Events.FireWrite(o, now)
		}
		total += len(removed)
	}
	return total
}
