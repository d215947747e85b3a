package object

import "sort"

// ZSetElem is one (score, member) pair, grounded on original_source's
// ZSetElem(f64, Bytes) tuple struct.
type ZSetElem struct {
	Score  float64
	Member string
}

// ZSet is a set of members ordered by score, with ties broken
// lexicographically by member, matching Redis's sorted-set ordering. No
// library in the retrieval pack provides an ordered-set/skip-list data
// structure (see DESIGN.md); a sorted slice maintained with sort.Search
// gives the same O(log n) rank/range lookups a skip list would, at O(n)
// insert/delete, which is an acceptable tradeoff for an in-memory single
// shard of modest size.
type ZSet struct {
	byScore []ZSetElem    // kept sorted by (Score, Member)
	byMem   map[string]float64
}

func NewZSet() *ZSet { return &ZSet{byMem: make(map[string]float64)} }

func (*ZSet) Kind() Kind { return KindZSet }

func (z *ZSet) SizeBytes() int64 {
	var n int64
	for _, e := range z.byScore {
		n += int64(len(e.Member)) + 24
	}
	return n
}

func (z *ZSet) Len() int { return len(z.byScore) }

func less(a, b ZSetElem) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

func (z *ZSet) search(e ZSetElem) int {
	return sort.Search(len(z.byScore), func(i int) bool { return !less(z.byScore[i], e) })
}

// Add inserts or updates member's score, returning whether it is new.
func (z *ZSet) Add(score float64, member string) bool {
	old, existed := z.byMem[member]
	if existed {
		z.removeElem(ZSetElem{Score: old, Member: member})
	}
	e := ZSetElem{Score: score, Member: member}
	idx := z.search(e)
	z.byScore = append(z.byScore, ZSetElem{})
	copy(z.byScore[idx+1:], z.byScore[idx:])
	z.byScore[idx] = e
	z.byMem[member] = score
	return !existed
}

func (z *ZSet) removeElem(e ZSetElem) {
	idx := z.search(e)
	for idx < len(z.byScore) && z.byScore[idx].Member != e.Member {
		idx++
	}
	if idx >= len(z.byScore) {
		return
	}
	z.byScore = append(z.byScore[:idx], z.byScore[idx+1:]...)
}

func (z *ZSet) Remove(member string) bool {
	score, ok := z.byMem[member]
	if !ok {
		return false
	}
	z.removeElem(ZSetElem{Score: score, Member: member})
	delete(z.byMem, member)
	return true
}

func (z *ZSet) Score(member string) (float64, bool) {
	s, ok := z.byMem[member]
	return s, ok
}

// Rank returns member's 0-based position in ascending score order.
func (z *ZSet) Rank(member string) (int, bool) {
	score, ok := z.byMem[member]
	if !ok {
		return 0, false
	}
	idx := z.search(ZSetElem{Score: score, Member: member})
	for idx < len(z.byScore) && z.byScore[idx].Member != member {
		idx++
	}
	return idx, true
}

// Range returns elements [start,end] by rank, inclusive, using Redis's
// negative-index convention.
func (z *ZSet) Range(start, end int) []ZSetElem {
	n := len(z.byScore)
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return nil
	}
	out := make([]ZSetElem, end-start+1)
	copy(out, z.byScore[start:end+1])
	return out
}

// RangeByScore returns elements with min <= Score <= max, in ascending order.
func (z *ZSet) RangeByScore(min, max float64) []ZSetElem {
	lo := sort.Search(len(z.byScore), func(i int) bool { return z.byScore[i].Score >= min })
	var out []ZSetElem
	for i := lo; i < len(z.byScore) && z.byScore[i].Score <= max; i++ {
		out = append(out, z.byScore[i])
	}
	return out
}

func (z *ZSet) IncrBy(member string, delta float64) float64 {
	score, ok := z.byMem[member]
	if ok {
		z.removeElem(ZSetElem{Score: score, Member: member})
	}
	newScore := score + delta
	z.Add(newScore, member)
	return newScore
}
