// Package sys provides the small bits of system information the server
// needs at startup: the CPU count and GOMAXPROCS tuning (store.NumShards
// sizes the shard count from GOMAXPROCS itself), trimmed from the teacher's container-aware CPU detection since
// this store has no per-mountpath or per-node placement concerns.
package sys

import (
	"os"
	"runtime"

	"github.com/rutin-go/rutin/cmn/nlog"
)

const maxProcsEnvVar = "GOMAXPROCS"

func NumCPU() int { return runtime.NumCPU() }

// SetMaxProcs lowers GOMAXPROCS to NumCPU when it is set higher, unless it
// is overridden via the Go environment variable.
func SetMaxProcs() {
	if val, exists := os.LookupEnv(maxProcsEnvVar); exists {
		nlog.Warningf("GOMAXPROCS is set via environment %q: %q", maxProcsEnvVar, val)
		return
	}
	maxprocs := runtime.GOMAXPROCS(0)
	ncpu := NumCPU()
	if maxprocs > ncpu {
		nlog.Warningf("reducing GOMAXPROCS (%d) to %d (num CPUs)", maxprocs, ncpu)
		runtime.GOMAXPROCS(ncpu)
	}
}
