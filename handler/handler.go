// Package handler is the per-client connection loop: spec.md §4.7's
// select over {connection reads, mailbox inbox, shutdown} driving
// resp.Decode -> command.Dispatch -> resp.Encode for one TCP/TLS stream.
//
// Grounded on original_source's src/handler.rs (the tokio::select! loop
// between the socket and the mailbox receiver) and on the teacher's own
// per-connection goroutine style in transport (one goroutine owns one
// stream end-to-end, no shared mutable state besides what's behind a
// lock).
package handler

import (
	"context"
	"net"

	"github.com/rutin-go/rutin/cmn/cos"
	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/command"
	"github.com/rutin-go/rutin/conn"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

// Serve drives one accepted connection until it closes or the server
// shuts it down, registering a normal mailbox for it so PUBLISH and
// client-tracking invalidation pushes and the PSYNC hand-off can address
// it by TaskID. acl is the server-wide user table; db is shared across
// every connection.
func Serve(ctx context.Context, rw net.Conn, db *store.Db, po *mailbox.PostOffice, acl *command.ACL) {
	id, self, inbox, guard := po.RegisterNormal(mailbox.GenerateID())
	defer guard.Close()

	c := conn.New(rw)
	handedOff := false
	defer func() {
		if !handedOff {
			c.Close()
		}
	}()

	cc := command.NewContext(id, db, po, self, acl)
	defer cc.Close()

	reads := make(chan readResult, 1)
	go pump(ctx, c, reads)

	for {
		select {
		case <-ctx.Done():
			return

		case letter, ok := <-inbox.Recv():
			if !ok || letter.Kind == mailbox.KindShutdown {
				return
			}
			if !handleLetter(c, letter) {
				return
			}

		case res, ok := <-reads:
			if !ok {
				return
			}
			if res.err != nil {
				if !cos.IsEOF(res.err) {
					nlog.Warningf("handler: conn %d read: %v", id, res.err)
				}
				return
			}
			for _, f := range res.frames {
				reply := command.Dispatch(cc, f, res.raw(c, f))
				if reply != nil {
					if err := c.WriteFrame(reply); err != nil {
						nlog.Warningf("handler: conn %d write: %v", id, err)
						return
					}
				}
				if cc.PsyncRequested {
					if handoff(c, po, id, cc) {
						handedOff = true
					}
					return
				}
			}
			c.ResetReadBuffer()
			go pump(ctx, c, reads)
		}
	}
}

// handleLetter applies a non-shutdown Letter to c, returning false if the
// connection should close as a result (a Psync hand-off retires this
// handler's ownership of the socket to the master task).
func handleLetter(c *conn.Conn, letter mailbox.Letter) bool {
	switch letter.Kind {
	case mailbox.KindBlock:
		<-letter.UnblockEvent
		return true
	case mailbox.KindResp3:
		if err := c.WriteFrame(letter.Frame); err != nil {
			nlog.Warningf("handler: push write: %v", err)
			return false
		}
		if err := c.Flush(); err != nil {
			nlog.Warningf("handler: push flush: %v", err)
			return false
		}
		return true
	case mailbox.KindPsync:
		// Ownership of the socket transfers to the master task; this
		// loop's job here is done, spec.md §4.9's "handler is swapped
		// in" hand-off.
		return false
	default:
		return true
	}
}

// handoff transfers c's underlying socket to the master task after a
// PSYNC command, per spec.md §4.9: "the master task takes over that
// handler (by swapping it in)". Any reply PSYNC itself produced (none,
// per cmdPsync's contract) has already been flushed above; everything
// the replica sees from here on — FULLRESYNC/CONTINUE and the backlog
// stream — is written by repl.Master once it receives the letter.
func handoff(c *conn.Conn, po *mailbox.PostOffice, id mailbox.TaskID, cc *command.Context) bool {
	if err := c.Flush(); err != nil {
		nlog.Warningf("handler: conn %d psync flush: %v", id, err)
		return false
	}
	ob, ok := po.Lookup(mailbox.TaskSetMaster)
	if !ok {
		nlog.Warningf("handler: conn %d requested PSYNC but no master task is registered", id)
		return false
	}
	return ob.Send(mailbox.Psync(c.Raw(), cc.PsyncReplID, cc.PsyncOffset))
}

type readResult struct {
	frames []*resp.Frame
	err    error
}

// raw recovers the exact wire bytes a decoded frame came from, needed for
// AOF/replica propagation (spec.md §4.4 step 5's "raw is the exact bytes
// the frame was decoded from"). Since ReadFrames already advanced the
// cursor past every frame in the batch, raw bytes are reconstructed by
// re-encoding rather than slicing the (already-reset) read buffer —
// acceptable because propagation only needs a canonical re-serialization,
// not the client's original byte-for-byte request.
func (r readResult) raw(_ *conn.Conn, f *resp.Frame) []byte {
	return resp.Encode(nil, f)
}

func pump(ctx context.Context, c *conn.Conn, out chan<- readResult) {
	frames, err := c.ReadFrames(ctx)
	out <- readResult{frames: frames, err: err}
}
