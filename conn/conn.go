// Package conn wraps one client TCP/TLS stream (or FakeStream) with the
// framed read/write buffers and pipelining discipline spec.md §3.5/§4.6
// describe: ReadFrames drains everything already decodable from the
// in-memory buffer before awaiting more bytes, and writes are coalesced
// behind a batch counter so a pipelined request only flushes once every
// reply it produced has been written.
//
// Grounded on original_source's src/connection.rs (reader_buf cursor,
// decode-until-incomplete loop) and the teacher's transport/pdu.go
// byte-cursor style (roff/woff offsets into a reusable buffer).
package conn

import (
	"bufio"
	"context"
	"io"
	"net"

	"github.com/rutin-go/rutin/resp"
)

// Conn is one client connection's framing state. Not safe for concurrent
// use: spec.md §5 requires strictly sequential read/dispatch/write per
// connection, so a single handler goroutine owns it.
type Conn struct {
	rw    io.ReadWriteCloser
	bufr  *bufio.Reader
	read  *resp.Cursor
	write []byte
	batch int

	RemoteAddr string
}

func New(rw io.ReadWriteCloser) *Conn {
	c := &Conn{rw: rw, read: resp.NewCursor(nil)}
	c.bufr = bufio.NewReaderSize(rw, 4096)
	if nc, ok := rw.(net.Conn); ok {
		c.RemoteAddr = nc.RemoteAddr().String()
	}
	return c
}

// ReadFrames decodes every frame already sitting in the read buffer
// (resp.Decode's ErrIncomplete stops the drain) and returns them together;
// it blocks on the underlying stream for more bytes only when the buffer
// holds no complete frame at all, so a pipelined batch of N requests costs
// one or a few reads instead of N. A read error is returned alongside
// whatever frames were already decoded before it occurred.
func (c *Conn) ReadFrames(ctx context.Context) ([]*resp.Frame, error) {
	var frames []*resp.Frame
	for {
		f, err := resp.Decode(c.read)
		if err == nil {
			frames = append(frames, f)
			c.batch++
			continue
		}
		if err != resp.ErrIncomplete {
			return frames, err
		}
		if len(frames) > 0 {
			return frames, nil
		}
		f, err = resp.DecodeAsync(ctx, c.bufr, c.read)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		c.batch++
	}
}

// WriteFrame appends f's wire bytes to the write buffer and decrements the
// batch counter; when the counter reaches zero (every pipelined read has
// now produced its reply) the buffer flushes to the stream in one Write.
func (c *Conn) WriteFrame(f *resp.Frame) error {
	c.write = resp.Encode(c.write, f)
	if c.batch > 0 {
		c.batch--
	}
	if c.batch == 0 {
		return c.Flush()
	}
	return nil
}

// Flush forces the write buffer out regardless of the batch counter, used
// on connection teardown so a final reply is never silently dropped.
func (c *Conn) Flush() error {
	if len(c.write) == 0 {
		return nil
	}
	_, err := c.rw.Write(c.write)
	c.write = c.write[:0]
	return err
}

// BatchPending reports how many reads have not yet produced a write.
func (c *Conn) BatchPending() int { return c.batch }

// Raw returns the underlying stream, letting a caller that has decided to
// take over framing itself (the PSYNC hand-off to repl.Master, per
// spec.md §4.9) reach past Conn's RESP3 discipline.
func (c *Conn) Raw() io.ReadWriteCloser { return c.rw }

// ResetReadBuffer slides any unconsumed trailing bytes to the front of the
// read buffer. The handler calls this once a batch's replies have all been
// written (spec.md §4.1's zero-copy caveat: "After the handler finishes a
// batch, the connection resets the read buffer position and the
// references become invalid" — so this must never run while any frame
// from that batch is still referenced).
func (c *Conn) ResetReadBuffer() { c.read.Reset() }

func (c *Conn) Close() error {
	_ = c.Flush()
	return c.rw.Close()
}
