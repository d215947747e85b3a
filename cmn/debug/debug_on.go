//go:build debug

package debug

import (
	"fmt"
	"sync"
)

func ON() bool { return true }

func Assert(cond bool, args ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprint(args...))
	}
}

func AssertFunc(f func() bool, args ...any) { Assert(f(), args...) }

func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: " + err.Error())
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, args...))
	}
}

// AssertMutexLocked is best-effort: sync.Mutex exposes no public Locked
// query, so this only documents intent at call sites; it never fires.
func AssertMutexLocked(_ *sync.Mutex)      {}
func AssertRWMutexLocked(_ *sync.RWMutex)  {}
func AssertRWMutexRLocked(_ *sync.RWMutex) {}
