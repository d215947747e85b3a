package conn

import "io"

// FakeStream is an in-process io.ReadWriteCloser substitute for a real
// socket, grounded on the teacher's in-memory stream harnessing in
// transport's message tests (msg_test.go drives a stream without a
// socket) and serving the role spec.md §3.5 assigns it: the test suite
// and the (external) Lua engine both drive a handler's Conn end-to-end
// without opening a TCP connection.
type FakeStream struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (f *FakeStream) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *FakeStream) Write(p []byte) (int, error) { return f.w.Write(p) }

func (f *FakeStream) Close() error {
	rerr := f.r.Close()
	werr := f.w.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// NewFakePair returns two connected FakeStreams: server is what a Conn
// wraps on the handler side, client is what a test (or the Lua executor,
// driving EVAL's own FakeStream per spec.md §4.5) writes requests into and
// reads replies from.
func NewFakePair() (server, client *FakeStream) {
	serverR, clientW := io.Pipe() // client writes requests, server reads them
	clientR, serverW := io.Pipe() // server writes replies, client reads them
	server = &FakeStream{r: serverR, w: serverW}
	client = &FakeStream{r: clientR, w: clientW}
	return server, client
}
