package object

import "container/list"

// List is a doubly linked list of byte strings, grounded on
// original_source's List enum (a VecDeque-backed quicklist collapsed here
// to a single representation: container/list gives O(1) push/pop at both
// ends and O(1) removal given an element handle, which is all LPUSH/
// RPUSH/LPOP/RPOP/LREM/LINSERT need; the Rust source's compressed vs.
// plain representations aren't ported since this store never serializes
// list nodes individually).
type List struct {
	l *list.List
}

func NewList() *List { return &List{l: list.New()} }

func (*List) Kind() Kind { return KindList }

func (s *List) SizeBytes() int64 {
	var n int64
	for e := s.l.Front(); e != nil; e = e.Next() {
		n += int64(len(e.Value.([]byte))) + 16
	}
	return n
}

func (s *List) Len() int { return s.l.Len() }

func (s *List) PushBack(elem []byte)  { s.l.PushBack(elem) }
func (s *List) PushFront(elem []byte) { s.l.PushFront(elem) }

func (s *List) PopBack() ([]byte, bool) {
	e := s.l.Back()
	if e == nil {
		return nil, false
	}
	s.l.Remove(e)
	return e.Value.([]byte), true
}

func (s *List) PopFront() ([]byte, bool) {
	e := s.l.Front()
	if e == nil {
		return nil, false
	}
	s.l.Remove(e)
	return e.Value.([]byte), true
}

func (s *List) elemAt(index int) *list.Element {
	if index < 0 || index >= s.l.Len() {
		return nil
	}
	e := s.l.Front()
	for i := 0; i < index; i++ {
		e = e.Next()
	}
	return e
}

func (s *List) Get(index int) ([]byte, bool) {
	e := s.elemAt(index)
	if e == nil {
		return nil, false
	}
	return e.Value.([]byte), true
}

func (s *List) Set(index int, elem []byte) bool {
	e := s.elemAt(index)
	if e == nil {
		return false
	}
	e.Value = elem
	return true
}

// InsertBefore inserts elem immediately before the element at index.
func (s *List) InsertBefore(index int, elem []byte) bool {
	e := s.elemAt(index)
	if e == nil {
		return false
	}
	s.l.InsertBefore(elem, e)
	return true
}

func (s *List) InsertAfter(index int, elem []byte) bool {
	e := s.elemAt(index)
	if e == nil {
		return false
	}
	s.l.InsertAfter(elem, e)
	return true
}

func (s *List) RemoveAt(index int) ([]byte, bool) {
	e := s.elemAt(index)
	if e == nil {
		return nil, false
	}
	s.l.Remove(e)
	return e.Value.([]byte), true
}

// Range returns a copy of elements [start,end] inclusive, in list order.
func (s *List) Range(start, end int) [][]byte {
	n := s.l.Len()
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n {
		return nil
	}
	out := make([][]byte, 0, end-start+1)
	i := 0
	for e := s.l.Front(); e != nil && i <= end; e, i = e.Next(), i+1 {
		if i >= start {
			out = append(out, e.Value.([]byte))
		}
	}
	return out
}

func (s *List) Clear() { s.l.Init() }
