// Command rutin-server is the process entrypoint: parse flags and an
// optional TOML config file (spec.md §6.2), load whatever snapshot sits
// on disk, then run the RESP3 accept loop alongside every supervised
// background task (AOF writer, expiration sweeper, periodic RDB
// snapshot, replication, admin stats HTTP) until a signal asks it to
// stop.
//
// Grounded on the teacher's own cmd/cli and cmd/aisfs main packages for
// the flag-parse-then-supervise shape, generalized from aistore's
// "construct subsystems, hand them to an errgroup, wait on a signal"
// pattern since this store has no cluster membership of its own to join.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/command"
	"github.com/rutin-go/rutin/conf"
	"github.com/rutin-go/rutin/conn"
	"github.com/rutin-go/rutin/handler"
	"github.com/rutin-go/rutin/hk"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/persist"
	"github.com/rutin-go/rutin/persist/aof"
	"github.com/rutin-go/rutin/persist/rdb"
	"github.com/rutin-go/rutin/repl"
	"github.com/rutin-go/rutin/stats"
	"github.com/rutin-go/rutin/store"
	"github.com/rutin-go/rutin/sys"
)

func main() {
	if err := run(); err != nil {
		nlog.Errorf("rutin-server: %v", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		port      = flag.Int("port", 0, "override server.port from the config file")
		logLevel  = flag.String("log-level", "", "override server.log_level")
		replicaof = flag.String("replicaof", "", "HOST:PORT of a master to replicate from, overriding the replica config section")
		statsAddr = flag.String("stats-addr", ":9121", "admin HTTP listen address for /metrics and /healthz")
	)
	flag.Parse()

	cfg := conf.Default()
	if args := flag.Args(); len(args) > 0 {
		loaded, err := conf.Load(args[0])
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = uint16(*port)
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = *logLevel
	}
	if *replicaof != "" {
		host, portStr, err := net.SplitHostPort(*replicaof)
		if err != nil {
			return fmt.Errorf("--replicaof: %w", err)
		}
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return fmt.Errorf("--replicaof: bad port %q", portStr)
		}
		cfg.Replica.MasterHost = host
		cfg.Replica.MasterPort = uint16(p)
	}
	cfg.Server.RunID = genRunID()

	sys.SetMaxProcs()
	nlog.Infof("rutin-server: run_id=%s shards=%d", cfg.Server.RunID, store.NumShards())

	db := store.New()
	if policy, ok := store.ParsePolicy(cfg.Memory.Policy); ok {
		db.SetOOM(&store.OOMConfig{MaxMemory: cfg.Memory.MaxMemory, Policy: policy, Samples: cfg.Memory.Samples})
	} else {
		nlog.Warningf("rutin-server: unrecognized memory.policy %q, defaulting to noeviction", cfg.Memory.Policy)
	}

	po := mailbox.New()
	acl := buildACL(cfg.Security)

	if n, err := persist.LoadNewest(db, po, acl, cfg.RDB, cfg.AOF); err != nil {
		nlog.Errorf("rutin-server: startup load: %v", err)
	} else if n > 0 {
		nlog.Infof("rutin-server: replayed %d record(s) from disk", n)
	}

	collector := stats.New()
	collector.WireDispatch()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	aofWriter, err := aof.Open(cfg.AOF.FilePath, cfg.AOF.AppendFsync, cfg.AOF.MaxRecordExponent)
	if err != nil {
		return fmt.Errorf("open aof: %w", err)
	}
	_, aofInbox, aofGuard := po.RegisterSpecial(mailbox.TaskAOFWriter)
	defer aofGuard.Close()
	g.Go(func() error {
		aofWriter.Run(db, aofInbox)
		return aofWriter.Close()
	})

	_, expInbox, expGuard := po.RegisterSpecial(mailbox.TaskExpirationEvict)
	defer expGuard.Close()
	g.Go(func() error {
		hk.RunExpirationSweeper(db, expInbox, time.Second, collector.ObserveExpired)
		return nil
	})

	housekeeper := hk.New()
	if cfg.RDB.IntervalSecs > 0 {
		housekeeper.Register(hk.Job{
			Name:     "rdb-snapshot",
			Interval: cfg.RDB.Interval(),
			Fn: func() time.Duration {
				if err := rdb.Save(db, cfg.RDB.FilePath); err != nil {
					nlog.Errorf("rutin-server: periodic rdb snapshot: %v", err)
				}
				return 0
			},
		})
	}
	g.Go(func() error {
		housekeeper.Run()
		return nil
	})
	go func() {
		<-gctx.Done()
		housekeeper.Stop()
	}()

	if cfg.Master.MaxReplica > 0 {
		master := repl.NewMaster(db, &cfg.Master)
		_, masterInbox, masterGuard := po.RegisterSpecial(mailbox.TaskSetMaster)
		defer masterGuard.Close()
		g.Go(func() error {
			master.Run(gctx, masterInbox)
			return nil
		})
	}

	if cfg.Replica.MasterHost != "" {
		replica := repl.NewReplica(db, po, acl, &cfg.Replica)
		_, replicaInbox, replicaGuard := po.RegisterSpecial(mailbox.TaskSetReplica)
		defer replicaGuard.Close()
		g.Go(func() error {
			replica.Run(gctx, replicaInbox)
			return nil
		})
	}

	g.Go(func() error {
		if err := stats.Serve(*statsAddr, db, po, collector); err != nil {
			nlog.Errorf("rutin-server: stats server: %v", err)
		}
		return nil
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := listener(gctx, cfg, addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return acceptLoop(gctx, ln, db, po, acl)
	})

	g.Go(func() error {
		<-gctx.Done()
		nlog.Infof("rutin-server: shutting down")
		po.Broadcast(mailbox.Shutdown())
		return nil
	})

	nlog.Infof("rutin-server: listening on %s", addr)
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

// listener opens the plain-TCP listener, or the TLS one when cfg.TLS is
// configured (spec.md §6.5's optional tls section).
func listener(ctx context.Context, cfg *conf.Config, addr string) (net.Listener, error) {
	if cfg.TLS != nil {
		return conn.ListenTLS(ctx, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.TLS.Port), cfg.TLS)
	}
	return conn.Listen(ctx, addr)
}

// acceptLoop hands every accepted connection to handler.Serve on its own
// goroutine until ln is closed (which gctx.Done's sibling task above
// triggers), per spec.md §4.7's one-goroutine-per-connection model.
func acceptLoop(ctx context.Context, ln net.Listener, db *store.Db, po *mailbox.PostOffice, acl *command.ACL) error {
	for {
		rw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if tc, ok := rw.(*net.TCPConn); ok {
			_ = conn.SetKeepAlive(tc, time.Minute)
		}
		go handler.Serve(ctx, rw, db, po, acl)
	}
}

// buildACL installs the always-present unrestricted default user, then
// layers in every security.acl_users entry from the config file, per
// spec.md §6.5.
func buildACL(sec conf.SecurityConf) *command.ACL {
	acl := command.NewACL()
	acl.DefaultUser()
	for _, u := range sec.ACLUsers {
		acl.Users[u.Name] = &command.User{
			Name:       u.Name,
			PassHash:   []byte(u.PassHash),
			On:         u.On,
			AllowCmds:  command.ParseCategoryFlags(u.AllowCmds),
			AllowKeys:  u.AllowKeys,
			AllowChans: u.AllowChans,
		}
	}
	return acl
}

// genRunID produces the 24-hex-digit run id spec.md §3.1 attaches to
// every server process, reusing mailbox.GenerateID's shortid-backed
// generator rather than inventing a second random source.
func genRunID() string {
	return fmt.Sprintf("%016x%08x", uint64(mailbox.GenerateID()), uint64(mailbox.GenerateID())&0xffffffff)
}
