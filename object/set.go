package object

// Set is an unordered collection of distinct byte strings, grounded on
// original_source's Set enum (HashSet<Bytes>); Go's map[string]struct{}
// is the direct idiomatic analogue.
type Set struct {
	m map[string]struct{}
}

func NewSet() *Set { return &Set{m: make(map[string]struct{})} }

func (*Set) Kind() Kind { return KindSet }

func (s *Set) SizeBytes() int64 {
	var n int64
	for k := range s.m {
		n += int64(len(k)) + 16
	}
	return n
}

func (s *Set) Len() int { return len(s.m) }

// Add reports whether elem was newly inserted.
func (s *Set) Add(elem []byte) bool {
	k := string(elem)
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = struct{}{}
	return true
}

func (s *Set) Remove(elem []byte) bool {
	k := string(elem)
	if _, ok := s.m[k]; !ok {
		return false
	}
	delete(s.m, k)
	return true
}

func (s *Set) Contains(elem []byte) bool {
	_, ok := s.m[string(elem)]
	return ok
}

func (s *Set) Members() [][]byte {
	out := make([][]byte, 0, len(s.m))
	for k := range s.m {
		out = append(out, []byte(k))
	}
	return out
}
