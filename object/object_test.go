package object

import "testing"

func TestStrIntFastPath(t *testing.T) {
	s := NewStr([]byte("9223372036854775807"))
	if !s.IsInt() {
		t.Fatal("expected int fast path")
	}
	if _, err := s.IncrBy(1); err != ErrOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestStrAppendDropsIntFastPath(t *testing.T) {
	s := NewStr([]byte("12"))
	s.Append([]byte("a"))
	if s.IsInt() {
		t.Fatal("expected raw after non-numeric append")
	}
	if string(s.Bytes()) != "12a" {
		t.Fatalf("got %q", s.Bytes())
	}
}

func TestStrGetRangeNegative(t *testing.T) {
	s := NewStr([]byte("Hello World"))
	if got := string(s.GetRange(-5, -1)); got != "World" {
		t.Fatalf("got %q", got)
	}
}

func TestListPushPop(t *testing.T) {
	l := NewList()
	l.PushBack([]byte("a"))
	l.PushBack([]byte("b"))
	l.PushFront([]byte("z"))
	if l.Len() != 3 {
		t.Fatalf("len=%d", l.Len())
	}
	v, ok := l.PopFront()
	if !ok || string(v) != "z" {
		t.Fatalf("got %q", v)
	}
	r := l.Range(0, -1)
	if len(r) != 2 || string(r[0]) != "a" || string(r[1]) != "b" {
		t.Fatalf("range=%v", r)
	}
}

func TestSetAddRemove(t *testing.T) {
	s := NewSet()
	if !s.Add([]byte("a")) {
		t.Fatal("expected new member")
	}
	if s.Add([]byte("a")) {
		t.Fatal("expected duplicate rejected")
	}
	if !s.Contains([]byte("a")) {
		t.Fatal("expected contains")
	}
	if !s.Remove([]byte("a")) || s.Contains([]byte("a")) {
		t.Fatal("expected removed")
	}
}

func TestHashIncrBy(t *testing.T) {
	h := NewHash()
	n, err := h.IncrBy("f", 5)
	if err != nil || n != 5 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	n, err = h.IncrBy("f", -2)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestZSetOrderingAndRank(t *testing.T) {
	z := NewZSet()
	z.Add(3, "c")
	z.Add(1, "a")
	z.Add(2, "b")
	rng := z.Range(0, -1)
	if len(rng) != 3 || rng[0].Member != "a" || rng[2].Member != "c" {
		t.Fatalf("range=%v", rng)
	}
	rank, ok := z.Rank("b")
	if !ok || rank != 1 {
		t.Fatalf("rank=%d ok=%v", rank, ok)
	}
}

func TestZSetRangeByScore(t *testing.T) {
	z := NewZSet()
	z.Add(1, "a")
	z.Add(2, "b")
	z.Add(3, "c")
	got := z.RangeByScore(2, 3)
	if len(got) != 2 || got[0].Member != "b" || got[1].Member != "c" {
		t.Fatalf("got=%v", got)
	}
}

func TestObjectWrongType(t *testing.T) {
	o := New(NewSet(), 0)
	if _, err := o.OnStr(); err == nil {
		t.Fatal("expected WrongTypeError")
	}
}

func TestEventsWaiterWakeup(t *testing.T) {
	var e Events
	w := &Waiter{Kind: WaitPush, Done: make(chan struct{})}
	remove := e.AddWaiter(w)
	defer remove()
	e.Notify(WaitPush)
	select {
	case <-w.Done:
	default:
		t.Fatal("expected waiter woken")
	}
}
