package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the driver core, scoped
// per named pool (§4.K).
type Collector struct {
	Registry *prometheus.Registry

	connectionsBusy    *prometheus.GaugeVec
	connectionsFree    *prometheus.GaugeVec
	connectionsTotal   *prometheus.GaugeVec
	connectionsWaiting *prometheus.GaugeVec
	poolExhausted      *prometheus.CounterVec
	acquireDuration    *prometheus.HistogramVec

	callDuration   *prometheus.HistogramVec
	authDuration   *prometheus.HistogramVec
	authFailures   *prometheus.CounterVec
	fastAuthHits   *prometheus.CounterVec
	breakResets    *prometheus.CounterVec
	redirectHops   *prometheus.CounterVec
	drcpReleases   *prometheus.CounterVec

	pingDuration *prometheus.HistogramVec
	pingFailures *prometheus.CounterVec

	lobFetchDuration *prometheus.HistogramVec
	lobBytesFetched  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on a fresh custom
// registry. Safe to call multiple times (tests, or once per embedding
// process) since each call is independent.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsBusy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oracore_connections_busy",
				Help: "Number of busy (checked-out) connections per pool",
			},
			[]string{"pool"},
		),
		connectionsFree: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oracore_connections_free",
				Help: "Number of free (idle) connections per pool",
			},
			[]string{"pool"},
		),
		connectionsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oracore_connections_total",
				Help: "Total number of connections per pool",
			},
			[]string{"pool"},
		),
		connectionsWaiting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oracore_connections_waiting",
				Help: "Number of goroutines waiting on Acquire per pool",
			},
			[]string{"pool"},
		),
		poolExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_pool_exhausted_total",
				Help: "Total number of NOWAIT/TIMEDWAIT acquire failures per pool",
			},
			[]string{"pool", "getmode"},
		),
		acquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracore_acquire_duration_seconds",
				Help:    "Time spent waiting in Acquire()",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"pool"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracore_call_duration_seconds",
				Help:    "Duration of process_message round trips",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"pool", "msg_type"},
		),
		authDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracore_auth_duration_seconds",
				Help:    "Duration of the authentication handshake",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"pool", "mode"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_auth_failures_total",
				Help: "Authentication failures by phase",
			},
			[]string{"pool", "phase"},
		),
		fastAuthHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_fast_auth_total",
				Help: "FAST_AUTH cookie collapses, by outcome",
			},
			[]string{"pool", "outcome"},
		),
		breakResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_break_reset_total",
				Help: "BREAK/RESET recoveries by trigger",
			},
			[]string{"pool", "trigger"},
		),
		redirectHops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_redirect_hops_total",
				Help: "REDIRECT packets followed during phase one",
			},
			[]string{"pool"},
		),
		drcpReleases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_drcp_releases_total",
				Help: "DRCP session releases by purity",
			},
			[]string{"pool", "purity"},
		),
		pingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracore_ping_duration_seconds",
				Help:    "Duration of pool ping_interval validation round trips",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"pool"},
		),
		pingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_ping_failures_total",
				Help: "Failed pool ping validations, connection discarded",
			},
			[]string{"pool"},
		),
		lobFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracore_lob_fetch_duration_seconds",
				Help:    "Duration of LOB read chunk operations",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"pool", "lob_type"},
		),
		lobBytesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracore_lob_bytes_fetched_total",
				Help: "Total bytes read from LOB locators",
			},
			[]string{"pool", "lob_type"},
		),
	}

	reg.MustRegister(
		c.connectionsBusy,
		c.connectionsFree,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.poolExhausted,
		c.acquireDuration,
		c.callDuration,
		c.authDuration,
		c.authFailures,
		c.fastAuthHits,
		c.breakResets,
		c.redirectHops,
		c.drcpReleases,
		c.pingDuration,
		c.pingFailures,
		c.lobFetchDuration,
		c.lobBytesFetched,
	)

	return c
}

// UpdatePoolStats updates the gauge metrics from a pool.Stats snapshot.
func (c *Collector) UpdatePoolStats(pool string, busy, free, total, waiting int) {
	c.connectionsBusy.WithLabelValues(pool).Set(float64(busy))
	c.connectionsFree.WithLabelValues(pool).Set(float64(free))
	c.connectionsTotal.WithLabelValues(pool).Set(float64(total))
	c.connectionsWaiting.WithLabelValues(pool).Set(float64(waiting))
}

// PoolExhausted increments the exhaustion counter for a getmode.
func (c *Collector) PoolExhausted(pool, getmode string) {
	c.poolExhausted.WithLabelValues(pool, getmode).Inc()
}

// AcquireDuration observes time spent in Acquire().
func (c *Collector) AcquireDuration(pool string, d time.Duration) {
	c.acquireDuration.WithLabelValues(pool).Observe(d.Seconds())
}

// CallDuration observes a process_message round trip for a TTC
// message type.
func (c *Collector) CallDuration(pool, msgType string, d time.Duration) {
	c.callDuration.WithLabelValues(pool, msgType).Observe(d.Seconds())
}

// AuthCompleted observes the duration of a successful handshake.
func (c *Collector) AuthCompleted(pool, mode string, d time.Duration) {
	c.authDuration.WithLabelValues(pool, mode).Observe(d.Seconds())
}

// AuthFailed increments the auth failure counter for a handshake phase
// (e.g. "round1", "round2", "fastauth").
func (c *Collector) AuthFailed(pool, phase string) {
	c.authFailures.WithLabelValues(pool, phase).Inc()
}

// FastAuthAttempt records a FAST_AUTH collapse attempt's outcome
// ("hit" or "miss").
func (c *Collector) FastAuthAttempt(pool, outcome string) {
	c.fastAuthHits.WithLabelValues(pool, outcome).Inc()
}

// BreakReset increments the break/reset counter for a recovery
// trigger ("timeout", "cancel", "error").
func (c *Collector) BreakReset(pool, trigger string) {
	c.breakResets.WithLabelValues(pool, trigger).Inc()
}

// RedirectHop increments the REDIRECT-hop counter during phase one.
func (c *Collector) RedirectHop(pool string) {
	c.redirectHops.WithLabelValues(pool).Inc()
}

// DRCPRelease increments the DRCP session release counter for a
// purity tag ("default", "new", "self").
func (c *Collector) DRCPRelease(pool, purity string) {
	c.drcpReleases.WithLabelValues(pool, purity).Inc()
}

// PingCompleted observes a ping_interval validation round trip.
func (c *Collector) PingCompleted(pool string, d time.Duration) {
	c.pingDuration.WithLabelValues(pool).Observe(d.Seconds())
}

// PingFailed increments the ping failure counter.
func (c *Collector) PingFailed(pool string) {
	c.pingFailures.WithLabelValues(pool).Inc()
}

// LOBFetch observes a LOB read chunk's duration and byte count.
func (c *Collector) LOBFetch(pool, lobType string, d time.Duration, n int) {
	c.lobFetchDuration.WithLabelValues(pool, lobType).Observe(d.Seconds())
	c.lobBytesFetched.WithLabelValues(pool, lobType).Add(float64(n))
}

// RemovePool deletes all metrics series for a pool (on pool close).
func (c *Collector) RemovePool(pool string) {
	c.connectionsBusy.DeleteLabelValues(pool)
	c.connectionsFree.DeleteLabelValues(pool)
	c.connectionsTotal.DeleteLabelValues(pool)
	c.connectionsWaiting.DeleteLabelValues(pool)
	c.poolExhausted.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.acquireDuration.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.callDuration.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.authDuration.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.authFailures.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.fastAuthHits.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.breakResets.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.redirectHops.DeleteLabelValues(pool)
	c.drcpReleases.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.pingDuration.DeleteLabelValues(pool)
	c.pingFailures.DeleteLabelValues(pool)
	c.lobFetchDuration.DeletePartialMatch(prometheus.Labels{"pool": pool})
	c.lobBytesFetched.DeletePartialMatch(prometheus.Labels{"pool": pool})
}
