package hk

import (
	"time"

	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/store"
)

// sweepBatchLimit bounds how many expired keys one sweep tick removes per
// shard, so a long-idle database catching up on a huge backlog of expired
// keys doesn't monopolize a shard lock in one pass (spec.md §4.8: "does
// not hold any shard lock across await points" — capping batch size keeps
// each lock acquisition short even without an await in the middle).
const sweepBatchLimit = 1024

// RunExpirationSweeper is the dedicated background task keyed by
// mailbox.TaskExpirationEvict (spec.md §4.8), scanning db's expire index
// on a fixed interval until its mailbox receives a Shutdown letter. It is
// meant to run as its own goroutine, supervised the way cmd/rutin-server
// supervises every long-lived task. onSwept, if given, is called with the
// number of keys removed on every tick (cmd/rutin-server wires this to
// stats.Collector.ObserveExpired; tests pass none).
func RunExpirationSweeper(db *store.Db, inbox mailbox.Inbox, interval time.Duration, onSwept ...func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case letter, ok := <-inbox.Recv():
			if !ok || letter.Kind == mailbox.KindShutdown {
				return
			}
			if letter.Kind == mailbox.KindBlock {
				<-letter.UnblockEvent
			}
		case <-ticker.C:
			n := db.SweepExpired(store.WallNow(), sweepBatchLimit)
			if n > 0 {
				for _, fn := range onSwept {
					fn(n)
				}
			}
		}
	}
}
