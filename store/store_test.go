package store

import (
	"testing"
	"time"

	"github.com/rutin-go/rutin/object"
)

func TestInsertAndGet(t *testing.T) {
	db := NewWithShards(4)
	db.InsertObject("k", object.NewStrValue([]byte("v")), 0)
	o, err := db.GetObject("k")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	s, err := o.OnStr()
	if err != nil || string(s.Bytes()) != "v" {
		t.Fatalf("s=%v err=%v", s, err)
	}
}

func TestGetObjectMissing(t *testing.T) {
	db := NewWithShards(4)
	if _, err := db.GetObject("nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiryRemovesOnAccess(t *testing.T) {
	db := NewWithShards(4)
	past := WallNow() - int64(time.Second)
	db.InsertObject("k", object.NewStrValue([]byte("v")), past)
	if _, err := db.GetObject("k"); err != ErrNotFound {
		t.Fatalf("expected expired key to read as not found, got %v", err)
	}
	if db.ContainsObject("k") {
		t.Fatal("expected key removed after expiry")
	}
}

func TestUpdateObjectForceCreatesThenUpdates(t *testing.T) {
	db := NewWithShards(4)
	err := db.UpdateObjectForce("counter", func() object.Value {
		return object.NewStrValue([]byte("0"))
	}, func(o *object.Object) error {
		s, err := o.OnStr()
		if err != nil {
			return err
		}
		_, err = s.IncrBy(1)
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	o, _ := db.GetObject("counter")
	s, _ := o.OnStr()
	if n, _ := s.AsInt(); n != 1 {
		t.Fatalf("n=%d", n)
	}
}

func TestObjectEntryOccupiedVacant(t *testing.T) {
	db := NewWithShards(4)
	var sawVacant bool
	err := db.ObjectEntry("x", 0, func(e *Entry) error {
		sawVacant = e.IsVacant()
		e.OrInsert(object.NewStrValue([]byte("hi")), 0)
		return nil
	})
	if err != nil || !sawVacant {
		t.Fatalf("err=%v sawVacant=%v", err, sawVacant)
	}
	err = db.ObjectEntry("x", 0, func(e *Entry) error {
		if !e.IsOccupied() {
			t.Fatal("expected occupied on second pass")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestRemoveObject(t *testing.T) {
	db := NewWithShards(4)
	db.InsertObject("k", object.NewStrValue([]byte("v")), 0)
	if _, ok := db.RemoveObject("k"); !ok {
		t.Fatal("expected removed")
	}
	if db.ContainsObject("k") {
		t.Fatal("expected gone")
	}
}

type fakeOutbox struct{ received []any }

func (f *fakeOutbox) TrySend(frame any) bool {
	f.received = append(f.received, frame)
	return true
}

func TestPubSub(t *testing.T) {
	db := NewWithShards(4)
	a := &fakeOutbox{}
	b := &fakeOutbox{}
	unsubA := db.Subscribe("chan", a)
	_ = db.Subscribe("chan", b)

	n := db.Publish("chan", "hello")
	if n != 2 {
		t.Fatalf("n=%d", n)
	}
	if len(a.received) != 1 || len(b.received) != 1 {
		t.Fatalf("a=%v b=%v", a.received, b.received)
	}

	unsubA()
	if db.NumSubscribers("chan") != 1 {
		t.Fatalf("expected 1 subscriber left")
	}
}
