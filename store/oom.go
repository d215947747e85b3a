package store

import (
	"context"
	"math/rand"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/rutin-go/rutin/object"
)

// Policy is one of spec.md §4.8's eight eviction policies.
type Policy int

const (
	PolicyNoEviction Policy = iota
	PolicyAllKeysLRU
	PolicyAllKeysLFU
	PolicyAllKeysRandom
	PolicyVolatileLRU
	PolicyVolatileLFU
	PolicyVolatileRandom
	PolicyVolatileTTL
)

// ParsePolicy maps spec.md §6.5's memory.policy string values (the eight
// named policies plus "noeviction") onto Policy, for conf.MemoryConf's
// plain-string config field.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "noeviction":
		return PolicyNoEviction, true
	case "allkeys-lru":
		return PolicyAllKeysLRU, true
	case "allkeys-lfu":
		return PolicyAllKeysLFU, true
	case "allkeys-random":
		return PolicyAllKeysRandom, true
	case "volatile-lru":
		return PolicyVolatileLRU, true
	case "volatile-lfu":
		return PolicyVolatileLFU, true
	case "volatile-random":
		return PolicyVolatileRandom, true
	case "volatile-ttl":
		return PolicyVolatileTTL, true
	default:
		return PolicyNoEviction, false
	}
}

// OOMConfig is spec.md §3.3's "oom: optional eviction configuration."
// Samples is the candidate-set size for the approximate-LRU/LFU sampler
// (spec.md §4.8: "pick N random candidates, evict the worst by atc").
type OOMConfig struct {
	MaxMemory int64
	Policy    Policy
	Samples   int
}

// ErrOOM is returned when no eviction policy is configured (noeviction)
// and used memory has reached MaxMemory, per spec.md §4.8.
var ErrOOM = &oomError{}

type oomError struct{}

func (*oomError) Error() string {
	return "OOM command not allowed when used memory > 'maxmemory'"
}

// SetOOM installs (or clears, with a nil cfg) the Db's memory-pressure
// eviction configuration.
func (db *Db) SetOOM(cfg *OOMConfig) { db.oom.Store(cfg) }

func (db *Db) oomConfig() *OOMConfig {
	cfg, _ := db.oom.Load().(*OOMConfig)
	return cfg
}

// UsedMemory reports the approximate total SizeBytes() of every live
// value, tracked at insert/remove granularity rather than on every
// in-place mutation (spec.md §5 calls for a "process-wide atomic... O(1)
// to evaluate" trigger; this port updates it wherever a key's value is
// installed or removed, which covers SET/DEL/eviction/expiry exactly and
// approximates in-place mutators like INCR/APPEND, whose size deltas are
// small enough not to matter for a sampling-based trigger).
func (db *Db) UsedMemory() int64 { return db.used.Load() }

func (db *Db) addUsed(delta int64) { db.used.Add(delta) }

// evictIfNeeded runs before any mutating entry point acquires its shard
// lock (spec.md §4.2: "invoke eviction if memory pressure requires it"),
// evicting in a loop until used memory drops back under MaxMemory or no
// eligible candidate remains. On `noeviction` it returns ErrOOM instead of
// evicting.
func (db *Db) evictIfNeeded() error {
	cfg := db.oomConfig()
	if cfg == nil || cfg.MaxMemory <= 0 {
		return nil
	}
	if db.UsedMemory() < cfg.MaxMemory {
		return nil
	}
	if cfg.Policy == PolicyNoEviction {
		return ErrOOM
	}
	// Bound how many callers sample for a candidate concurrently: a burst
	// of writers all tripping OOM at once would otherwise each walk
	// shards independently, duplicating work the first scan already does
	// to relieve the pressure the rest are blocked on.
	if err := db.evictSem.Acquire(context.Background(), 1); err != nil {
		return nil
	}
	defer db.evictSem.Release(1)
	for db.UsedMemory() >= cfg.MaxMemory {
		if !db.evictOnce(cfg) {
			break
		}
	}
	return nil
}

// evictOnce samples cfg.Samples candidates across randomly chosen shards,
// evicts the worst-ranked one by the policy's atc comparison, and reports
// whether anything was evicted (false means no eligible key exists).
func (db *Db) evictOnce(cfg *OOMConfig) bool {
	samples := cfg.Samples
	if samples <= 0 {
		samples = 5
	}
	seen := cuckoo.NewFilter(uint(nextPow2(samples * 4)))

	var (
		worstKey     Key
		worstShard   *shard
		worstScore   int64
		haveWorst    bool
		volatileOnly = cfg.Policy == PolicyVolatileLRU || cfg.Policy == PolicyVolatileLFU ||
			cfg.Policy == PolicyVolatileRandom || cfg.Policy == PolicyVolatileTTL
	)

	numShards := len(db.shards)
	start := rand.Intn(numShards)
	for i := 0; i < samples; i++ {
		s := db.shards[(start+i)%numShards]
		s.mu.RLock()
		for key, o := range s.entries {
			if volatileOnly && !o.HasExpire() {
				continue
			}
			if seen.Lookup([]byte(key)) {
				continue
			}
			seen.InsertUnique([]byte(key))
			score := evictScore(cfg.Policy, o)
			if !haveWorst || score < worstScore {
				worstKey, worstShard, worstScore, haveWorst = key, s, score, true
			}
			break // one candidate per shard visit keeps the sample spread out
		}
		s.mu.RUnlock()
	}

	if !haveWorst {
		return false
	}
	worstShard.mu.Lock()
	o, ok := worstShard.removeLocked(worstKey)
	worstShard.mu.Unlock()
	if ok {
		db.addUsed(-o.Value.SizeBytes())
		o.Events.Notify(object.WaitKey)
	}
	return ok
}

// evictScore ranks a candidate so the smallest score is evicted first:
// LRU uses the last-access timestamp, LFU the Morris-incremented
// frequency counter, TTL the expire deadline, random a coin flip.
func evictScore(p Policy, o *object.Object) int64 {
	switch p {
	case PolicyAllKeysLFU, PolicyVolatileLFU:
		return int64(o.Freq())
	case PolicyAllKeysRandom, PolicyVolatileRandom:
		return rand.Int63()
	case PolicyVolatileTTL:
		return o.Expire
	default: // LRU
		return o.LastAccessNano()
	}
}
