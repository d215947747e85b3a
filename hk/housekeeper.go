// Package hk is the housekeeper: a named-job scheduler other subsystems
// register periodic callbacks with, named after (and grounded on the
// concept of) the teacher's own hk package — a dedicated background-task
// scheduler other subsystems register callbacks with, the way aistore's
// core/lom.go registers its LOM-cache eviction via regLomCacheWithHK().
// The teacher's own housekeeper.go source was not present in the
// retrieval pack (only its ginkgo test file was), so the scheduler body
// below is this module's own, built from the same named-interval-callback
// shape the test file implies (TestInit/DefaultHK.Run/WaitStarted).
//
// In this store the scheduler runs the periodic RDB snapshot job that
// cmd/rutin-server registers. The expiration sweeper (spec.md §4.8, a
// dedicated task keyed by mailbox.TaskExpirationEvict) lives in this
// package as RunExpirationSweeper but runs on its own ticker rather than
// as a registered job; the AOF writer's `everysec` fsync and the master's
// PING-to-replica tick also keep their own tickers.
package hk

import (
	"sync"
	"time"

	"github.com/rutin-go/rutin/cmn/debug"
	"github.com/rutin-go/rutin/cmn/nlog"
)

// Job is a named periodic callback. Fn returns the duration to wait
// before its next run; returning 0 keeps the interval the job was
// registered with, a negative value unregisters the job.
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func() time.Duration
}

// Housekeeper runs every registered Job on its own goroutine-free timer,
// woken by a single shared ticker tick check rather than one goroutine
// per job — mirrors the teacher's single DefaultHK instance model (one
// scheduler, many registered callbacks) instead of spawning N timers.
type Housekeeper struct {
	mu      sync.Mutex
	jobs    map[string]*scheduled
	started chan struct{}
	stop    chan struct{}
	once    sync.Once
}

type scheduled struct {
	job  Job
	next time.Time
}

const tick = 100 * time.Millisecond

func New() *Housekeeper {
	return &Housekeeper{
		jobs:    make(map[string]*scheduled),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Register installs j, replacing any previous job of the same name.
func (h *Housekeeper) Register(j Job) {
	debug.Assert(j.Interval > 0, "hk: job interval must be positive")
	h.mu.Lock()
	h.jobs[j.Name] = &scheduled{job: j, next: time.Now().Add(j.Interval)}
	h.mu.Unlock()
}

func (h *Housekeeper) Unregister(name string) {
	h.mu.Lock()
	delete(h.jobs, name)
	h.mu.Unlock()
}

// Run drives every registered job until Stop is called. Intended to be
// launched as its own long-lived task (spec.md's dedicated background
// task model); call WaitStarted to block until the first tick loop is
// live, e.g. before a test registers jobs and needs the scheduler awake.
func (h *Housekeeper) Run() {
	close(h.started)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			h.runDue(now)
		}
	}
}

func (h *Housekeeper) runDue(now time.Time) {
	h.mu.Lock()
	due := make([]*scheduled, 0, 4)
	for _, s := range h.jobs {
		if !now.Before(s.next) {
			due = append(due, s)
		}
	}
	h.mu.Unlock()

	for _, s := range due {
		next := func() (d time.Duration) {
			defer func() {
				if r := recover(); r != nil {
					nlog.Errorf("hk: job %q panicked: %v", s.job.Name, r)
					d = s.job.Interval
				}
			}()
			return s.job.Fn()
		}()
		switch {
		case next < 0:
			h.Unregister(s.job.Name)
			continue
		case next == 0:
			next = s.job.Interval
		}
		h.mu.Lock()
		if cur, ok := h.jobs[s.job.Name]; ok && cur == s {
			s.next = now.Add(next)
		}
		h.mu.Unlock()
	}
}

// WaitStarted blocks until Run's tick loop has begun.
func (h *Housekeeper) WaitStarted() { <-h.started }

// Stop halts Run; safe to call multiple times or before Run starts.
func (h *Housekeeper) Stop() { h.once.Do(func() { close(h.stop) }) }
