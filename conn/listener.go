package conn

import (
	"context"
	"crypto/tls"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rutin-go/rutin/conf"
)

// Listen opens a TCP listener on addr with SO_REUSEADDR set on the
// listening socket before bind, so a restart doesn't have to wait out
// TIME_WAIT. net.ListenConfig has no direct option for this; the raw
// syscall.RawConn.Control hook is adapted from the teacher's
// ios/*_linux.go style of reaching past the standard library for a
// specific socket-level knob (there disk iostat ioctls, here SO_REUSEADDR).
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			if err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return ctrlErr
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

// ListenTLS wraps Listen with the configured certificate, implementing
// spec.md §6.1's "RESP3 over TLS when TLS is configured."
func ListenTLS(ctx context.Context, addr string, tlsConf *conf.TLSConf) (net.Listener, error) {
	ln, err := Listen(ctx, addr)
	if err != nil {
		return nil, err
	}
	cert, err := tls.LoadX509KeyPair(tlsConf.CertFile, tlsConf.KeyFile)
	if err != nil {
		ln.Close()
		return nil, err
	}
	return tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}}), nil
}

// SetKeepAlive enables TCP keepalive on an accepted connection, called by
// the accept loop right after Accept returns, through net.TCPConn's own
// SetKeepAlive/SetKeepAlivePeriod rather than a raw socket option.
func SetKeepAlive(c net.Conn, period time.Duration) error {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetKeepAlive(true); err != nil {
		return err
	}
	return tc.SetKeepAlivePeriod(period)
}
