package object

// Hash is a field->value mapping, grounded on original_source's Hash enum
// (HashMap<Key, Str>); values reuse Str so HINCRBY gets the same int fast
// path as top-level string keys.
type Hash struct {
	m map[string]Str
}

func NewHash() *Hash { return &Hash{m: make(map[string]Str)} }

func (*Hash) Kind() Kind { return KindHash }

func (h *Hash) SizeBytes() int64 {
	var n int64
	for k, v := range h.m {
		n += int64(len(k)) + v.SizeBytes() + 16
	}
	return n
}

func (h *Hash) Len() int { return len(h.m) }

// Set stores value under field, returning the previous value if any.
func (h *Hash) Set(field string, value Str) (prev Str, had bool) {
	prev, had = h.m[field]
	h.m[field] = value
	return
}

func (h *Hash) Get(field string) (Str, bool) {
	v, ok := h.m[field]
	return v, ok
}

func (h *Hash) Remove(field string) bool {
	if _, ok := h.m[field]; !ok {
		return false
	}
	delete(h.m, field)
	return true
}

func (h *Hash) Contains(field string) bool {
	_, ok := h.m[field]
	return ok
}

func (h *Hash) Fields() []string {
	out := make([]string, 0, len(h.m))
	for k := range h.m {
		out = append(out, k)
	}
	return out
}

func (h *Hash) IncrBy(field string, delta int64) (int64, error) {
	v, ok := h.m[field]
	if !ok {
		v = NewStrInt(0)
	}
	n, err := v.IncrBy(delta)
	if err != nil {
		return 0, err
	}
	h.m[field] = v
	return n, nil
}
