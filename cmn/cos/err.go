// Package cos provides small common types and error classifiers shared by
// every other package in this module.
package cos

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/rutin-go/rutin/cmn/debug"
	"github.com/rutin-go/rutin/cmn/nlog"
)

type (
	ErrNotFound struct {
		what string
	}
	ErrSignal struct {
		signal syscall.Signal
	}
	// Errs aggregates up to maxErrs distinct errors (deduped by message),
	// used where a background task wants to report "several things went
	// wrong" without growing without bound.
	Errs struct {
		mu   sync.Mutex
		errs []error
	}
)

const maxErrs = 4

// ErrNotFound

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// Errs

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) JoinErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return ""
	}
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	return fmt.Sprintf("%v (and %d more error(s))", e.errs[0], len(e.errs)-1)
}

//
// connection error classification — used by conn/handler/repl to decide
// reconnect-vs-terminate
//

func UnwrapSyscallErr(err error) error {
	var serr *os.SyscallError
	if errors.As(err, &serr) {
		return serr.Unwrap()
	}
	return nil
}

func IsErrConnectionRefused(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }
func IsErrConnectionReset(err error) bool   { return errors.Is(err, syscall.ECONNRESET) }
func IsErrBrokenPipe(err error) bool        { return errors.Is(err, syscall.EPIPE) }
func IsErrOOS(err error) bool               { return errors.Is(err, syscall.ENOSPC) }

func IsRetriableConnErr(err error) bool {
	return IsErrConnectionRefused(err) || IsErrConnectionReset(err) || IsErrBrokenPipe(err)
}

func isErrDNSLookup(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func IsEOF(err error) bool { return err != nil && err.Error() == "EOF" }

func IsUnreachable(err error) bool {
	return IsErrConnectionRefused(err) || isErrDNSLookup(err) || IsEOF(err)
}

//
// ErrSignal
//

// https://tldp.org/LDP/abs/html/exitcodes.html
func (e *ErrSignal) ExitCode() int               { return 128 + int(e.signal) }
func NewSignalError(s syscall.Signal) *ErrSignal { return &ErrSignal{signal: s} }
func (e *ErrSignal) Error() string               { return fmt.Sprintf("signal %d", e.signal) }

//
// abnormal termination
//

const fatalPrefix = "FATAL ERROR: "

func Exitf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	_exit(msg)
}

// ExitLogf logs before exiting, unlike Exitf.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.Errorf("%s", msg)
	nlog.Flush(true)
	_exit(msg)
}

func _exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
