package mailbox

import (
	"testing"
	"time"

	"github.com/rutin-go/rutin/resp"
)

func TestRegisterSpecialRoundTrip(t *testing.T) {
	po := New()
	ob, ib, guard := po.RegisterSpecial(TaskAOFWriter)
	defer guard.Close()

	if !ob.SendWcmd([]byte("*1\r\n$4\r\nPING\r\n")) {
		t.Fatal("expected send to succeed")
	}
	select {
	case l := <-ib.Recv():
		if l.Kind != KindWcmd {
			t.Fatalf("kind=%v", l.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for letter")
	}
}

func TestRegisterNormalProbesOnCollision(t *testing.T) {
	po := New()
	id1, _, _, g1 := po.RegisterNormal(100)
	defer g1.Close()
	id2, _, _, g2 := po.RegisterNormal(100)
	defer g2.Close()
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d twice", id1)
	}
}

func TestMailboxGuardClosePreventsFurtherSends(t *testing.T) {
	po := New()
	ob, _, guard := po.RegisterSpecial(TaskSetMaster)
	guard.Close()
	if _, ok := po.Lookup(TaskSetMaster); ok {
		t.Fatal("expected mailbox removed after guard close")
	}
	if ob.Send(Shutdown()) {
		t.Fatal("expected send on closed mailbox to fail")
	}
}

func TestWcmdSinksReturnsRegisteredOnly(t *testing.T) {
	po := New()
	if len(po.WcmdSinks()) != 0 {
		t.Fatal("expected no sinks before registration")
	}
	_, _, g := po.RegisterSpecial(TaskAOFWriter)
	defer g.Close()
	if len(po.WcmdSinks()) != 1 {
		t.Fatal("expected one sink")
	}
}

func TestOutboxTrySendAcceptsOnlyFrames(t *testing.T) {
	po := New()
	ob, ib, guard := po.RegisterSpecial(TaskCtrlC)
	defer guard.Close()
	if ob.TrySend("not a frame") {
		t.Fatal("expected non-frame payload rejected")
	}
	if !ob.TrySend(resp.SimpleString("OK")) {
		t.Fatal("expected frame payload accepted")
	}
	<-ib.Recv()
}
