package repl

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/rutin-go/rutin/cmn/cos"
	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/command"
	"github.com/rutin-go/rutin/conf"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/persist/rdb"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

// Replica is the replication-sink task, keyed by mailbox.TaskSetReplica:
// it connects out to a master, handshakes, applies the initial snapshot,
// then dispatches every subsequent command locally as a read-only client
// (spec.md §4.9).
type Replica struct {
	db  *store.Db
	po  *mailbox.PostOffice
	acl *command.ACL
	cfg *conf.ReplicaConf
}

func NewReplica(db *store.Db, po *mailbox.PostOffice, acl *command.ACL, cfg *conf.ReplicaConf) *Replica {
	return &Replica{db: db, po: po, acl: acl, cfg: cfg}
}

// Run connects to the configured master and applies its stream until ctx
// is cancelled or its mailbox receives a Shutdown letter, reconnecting
// after a fixed 500ms delay whenever a session ends, whatever the error,
// the way spec.md §4.9's
// "replica task... handshakes" implies a persistent, self-healing
// connection rather than a one-shot attempt.
func (r *Replica) Run(ctx context.Context, inbox mailbox.Inbox) {
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case letter, ok := <-inbox.Recv():
				if !ok || letter.Kind == mailbox.KindShutdown {
					close(stop)
					return
				}
				if letter.Kind == mailbox.KindBlock {
					<-letter.UnblockEvent
				}
			}
		}
	}()

	backoff := 500 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}
		if err := r.connectAndApply(ctx, stop); err != nil {
			nlog.Warningf("repl: replica session: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(backoff):
		}
	}
}

func (r *Replica) connectAndApply(ctx context.Context, stop <-chan struct{}) error {
	addr := net.JoinHostPort(r.cfg.MasterHost, strconv.Itoa(int(r.cfg.MasterPort)))
	c, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return errors.WithMessage(err, "repl: dial master")
	}
	defer c.Close()

	bufr := bufio.NewReader(c)
	if err := r.handshake(c, bufr); err != nil {
		return errors.WithMessage(err, "repl: handshake")
	}
	if err := r.applySnapshot(bufr); err != nil {
		return errors.WithMessage(err, "repl: apply snapshot")
	}
	return r.applyStream(ctx, stop, bufr)
}

// handshake sends PING, optional AUTH, REPLCONF, then PSYNC ? -1 (always
// a full resync in this port; partial resync across reconnects is left
// to the master's backlog-miss path, which itself forces a full resync).
func (r *Replica) handshake(c net.Conn, bufr *bufio.Reader) error {
	send := func(args ...string) error {
		items := make([]*resp.Frame, len(args))
		for i, a := range args {
			items[i] = resp.BlobString([]byte(a))
		}
		_, err := c.Write(resp.Encode(nil, resp.Array(items...)))
		return err
	}
	cursor := resp.NewCursor(nil)
	readReply := func() (*resp.Frame, error) { return resp.DecodeAsync(context.Background(), bufr, cursor) }

	if err := send("PING"); err != nil {
		return err
	}
	if _, err := readReply(); err != nil {
		return err
	}
	if r.cfg.MasterAuth != "" {
		if err := send("AUTH", r.cfg.MasterAuth); err != nil {
			return err
		}
		if _, err := readReply(); err != nil {
			return err
		}
	}
	if err := send("REPLCONF", "listening-port", "0"); err != nil {
		return err
	}
	if _, err := readReply(); err != nil {
		return err
	}
	if err := send("PSYNC", "?", "-1"); err != nil {
		return err
	}
	_, err := readReply() // FULLRESYNC replid offset
	return err
}

// applySnapshot reads the RDB byte stream the master sends right after
// FULLRESYNC and loads it into db. The master's fullResync writes the
// file's raw bytes with no length prefix, so this reads until the fixed
// RDB trailer (EOF opcode + 8-byte checksum) is consumed by rdb.LoadReader
// itself, which knows how to stop — this reader simply hands rdb.LoadReader a
// bufio.Reader positioned right after the handshake reply.
func (r *Replica) applySnapshot(bufr *bufio.Reader) error {
	n, err := rdb.LoadReader(r.db, bufr)
	if err != nil {
		return err
	}
	nlog.Infof("repl: replica loaded %d keys from snapshot", n)
	return nil
}

// applyStream dispatches every subsequent command locally through
// command.Dispatch on a Context marked authenticated and carrying no User,
// so no ACL check applies (the master is trusted). Commands are dispatched
// with a nil raw slice: a write command still propagates, but the Wcmd it
// hands to this process's registered sinks (cmd/rutin-server always
// registers the AOF writer) carries no bytes.
func (r *Replica) applyStream(ctx context.Context, stop <-chan struct{}, bufr *bufio.Reader) error {
	cursor := resp.NewCursor(nil)
	cc := command.NewContext(mailbox.TaskSetReplica, r.db, r.po, noopOutbox{}, r.acl)
	cc.Authenticated = true

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		f, err := resp.DecodeAsync(ctx, bufr, cursor)
		if err != nil {
			if cos.IsEOF(err) {
				return nil
			}
			return err
		}
		command.Dispatch(cc, f, nil)
	}
}

type noopOutbox struct{}

func (noopOutbox) TrySend(any) bool { return false }
