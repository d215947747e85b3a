// Package stats is the Prometheus-backed metrics surface and the
// /healthz admin endpoint, served over a separate HTTP listener from the
// RESP3 TCP port (SPEC_FULL.md §4.11): the data port itself never grows
// an inline-HTTP surface, since spec.md §6.1 disallows inline commands
// on it.
//
// Naming follows the teacher's own stats package convention (one counter
// per operation, one gauge per live resource, suffix encodes the kind —
// `*.n` for a count, `*.size` for a byte total) translated to Prometheus
// metric names (snake_case, `_total`/`_bytes` suffixes) since this store
// exposes a /metrics scrape endpoint instead of the teacher's StatsD
// push model.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/command"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/store"
)

// Collector owns every metric this server exposes, plus references to
// the live Db/PostOffice needed to compute gauges on scrape (connected
// clients, used memory) rather than push-updating them on every op.
type Collector struct {
	reg *prometheus.Registry

	opsTotal      *prometheus.CounterVec
	hitsTotal     prometheus.Counter
	missesTotal   prometheus.Counter
	evictionsN    prometheus.Counter
	expiredN      prometheus.Counter
	replOffsetGa  prometheus.Gauge
	usedMemoryGa  prometheus.Gauge
	clientsGa     prometheus.Gauge
	replicaLagGa  prometheus.Gauge
	commandErrors prometheus.Counter
}

// New registers the full metric set under a fresh registry, mirroring
// the teacher's practice of one dedicated registry per daemon instance
// rather than the global default (so tests can construct independent
// Collectors without colliding on metric names).
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rutin",
			Name:      "ops_total",
			Help:      "Number of commands dispatched, by command name.",
		}, []string{"cmd"}),
		hitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rutin", Name: "keyspace_hits_total",
			Help: "Number of successful key lookups.",
		}),
		missesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rutin", Name: "keyspace_misses_total",
			Help: "Number of key lookups that found nothing.",
		}),
		evictionsN: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rutin", Name: "evicted_keys_total",
			Help: "Number of keys evicted under memory pressure.",
		}),
		expiredN: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rutin", Name: "expired_keys_total",
			Help: "Number of keys removed by the expiration sweeper.",
		}),
		replOffsetGa: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rutin", Name: "repl_backlog_offset",
			Help: "Current master replication backlog offset.",
		}),
		usedMemoryGa: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rutin", Name: "used_memory_bytes",
			Help: "Approximate total size of all live values.",
		}),
		clientsGa: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rutin", Name: "connected_clients",
			Help: "Number of currently registered client connection mailboxes.",
		}),
		replicaLagGa: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rutin", Name: "replica_lag_bytes",
			Help: "Replica's reported lag behind the master's backlog offset.",
		}),
		commandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rutin", Name: "command_errors_total",
			Help: "Number of commands that returned a RESP3 error reply.",
		}),
	}
	reg.MustRegister(
		c.opsTotal, c.hitsTotal, c.missesTotal, c.evictionsN, c.expiredN,
		c.replOffsetGa, c.usedMemoryGa, c.clientsGa, c.replicaLagGa, c.commandErrors,
	)
	return c
}

func (c *Collector) ObserveCommand(name string)   { c.opsTotal.WithLabelValues(name).Inc() }
func (c *Collector) ObserveHit()                  { c.hitsTotal.Inc() }
func (c *Collector) ObserveMiss()                 { c.missesTotal.Inc() }
func (c *Collector) ObserveEviction(n int)         { c.evictionsN.Add(float64(n)) }
func (c *Collector) ObserveExpired(n int)          { c.expiredN.Add(float64(n)) }
func (c *Collector) ObserveCommandError()          { c.commandErrors.Inc() }
func (c *Collector) SetReplOffset(offset int64)    { c.replOffsetGa.Set(float64(offset)) }
func (c *Collector) SetReplicaLag(lagBytes int64)  { c.replicaLagGa.Set(float64(lagBytes)) }

// WireDispatch installs c as command.Dispatch's per-command observer
// (command/dispatch.go's OnDispatch hook), so every command executed on
// every connection increments opsTotal/commandErrors without command
// itself depending on stats.
func (c *Collector) WireDispatch() {
	command.OnDispatch = func(name string, isErr bool) {
		c.ObserveCommand(name)
		if isErr {
			c.ObserveCommandError()
		}
	}
}

// refresh recomputes the gauges that track live resources rather than
// discrete events, called once per scrape from the /metrics handler.
func (c *Collector) refresh(db *store.Db, po *mailbox.PostOffice) {
	c.usedMemoryGa.Set(float64(db.UsedMemory()))
	c.clientsGa.Set(float64(po.NormalCount()))
}

// Serve runs the admin HTTP listener (fasthttp, per SPEC_FULL.md §3's
// wiring decision for the teacher's valyala/fasthttp dependency) until
// ctx is done, exposing GET /metrics (Prometheus exposition format via
// promhttp, wrapped for fasthttp with fasthttpadaptor since client_golang
// only speaks net/http natively) and GET /healthz (a static 200).
func Serve(addr string, db *store.Db, po *mailbox.PostOffice, c *Collector) error {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))
	srv := &fasthttp.Server{
		Handler: func(rc *fasthttp.RequestCtx) {
			switch string(rc.Path()) {
			case "/metrics":
				c.refresh(db, po)
				metricsHandler(rc)
			case "/healthz":
				rc.SetStatusCode(fasthttp.StatusOK)
				rc.SetBodyString("ok")
			default:
				rc.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
	}
	nlog.Infof("stats: admin http listening on %s", addr)
	return srv.ListenAndServe(addr)
}
