package hk_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/rutin-go/rutin/hk"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/store"
)

func TestHousekeeper(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}

var _ = Describe("Housekeeper", func() {
	It("runs a registered job on its interval and honors Unregister-by-negative-return", func() {
		h := hk.New()
		go h.Run()
		h.WaitStarted()
		defer h.Stop()

		hits := 0
		done := make(chan struct{})
		h.Register(hk.Job{
			Name:     "once",
			Interval: 20 * time.Millisecond,
			Fn: func() time.Duration {
				hits++
				close(done)
				return -1 // unregister after the first tick
			},
		})

		Eventually(done, time.Second).Should(BeClosed())
		Consistently(func() int { return hits }, 100*time.Millisecond).Should(Equal(1))
	})
})

var _ = Describe("RunExpirationSweeper", func() {
	It("removes an expired key on its own without a client read", func() {
		db := store.NewWithShards(2)
		db.InsertObject("k", object.NewStrValue([]byte("v")), store.WallNow()-int64(time.Second))

		po := mailbox.New()
		_, inbox, guard := po.RegisterSpecial(mailbox.TaskExpirationEvict)
		defer guard.Close()

		done := make(chan struct{})
		go func() {
			hk.RunExpirationSweeper(db, inbox, 10*time.Millisecond)
			close(done)
		}()

		Eventually(func() bool { return db.ContainsObject("k") }, time.Second).Should(BeFalse())

		ob, _ := po.Lookup(mailbox.TaskExpirationEvict)
		ob.SendShutdown()
		Eventually(done, time.Second).Should(BeClosed())
	})
})
