// Package stats provides race-free total/blocked/allowed query
// counters plus a start timestamp, mirrored onto Prometheus counters for
// the admin API's /metrics endpoint.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats holds three monotonic counters: total, blocked, allowed. All
// methods are safe for concurrent use; updates are a single atomic
// increment, never held across a suspension point.
type Stats struct {
	total     atomic.Uint64
	blocked   atomic.Uint64
	allowed   atomic.Uint64
	startedAt time.Time

	promTotal   prometheus.Counter
	promBlocked prometheus.Counter
	promAllowed prometheus.Counter
}

// New creates a Stats collector with Prometheus counters registered under
// the given registerer (pass prometheus.DefaultRegisterer, or a test
// registry to avoid collisions across parallel tests).
func New(reg prometheus.Registerer) *Stats {
	factory := promauto.With(reg)
	return &Stats{
		startedAt: time.Now(),
		promTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sinkhole",
			Name:      "queries_total",
			Help:      "Total DNS queries received.",
		}),
		promBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sinkhole",
			Name:      "queries_blocked_total",
			Help:      "Queries denied by the blocklist matcher.",
		}),
		promAllowed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sinkhole",
			Name:      "queries_allowed_total",
			Help:      "Queries forwarded to the upstream resolver.",
		}),
	}
}

// RecordDropped counts a parse failure or malformed-query drop: total
// increments, neither blocked nor allowed does. allowed+blocked <= total
// always holds, with inequality exactly when a drop occurred.
func (s *Stats) RecordDropped() {
	s.total.Add(1)
	s.promTotal.Inc()
}

// RecordBlocked counts a query denied by the matcher.
func (s *Stats) RecordBlocked() {
	s.total.Add(1)
	s.blocked.Add(1)
	s.promTotal.Inc()
	s.promBlocked.Inc()
}

// RecordAllowed counts a query forwarded upstream (whether or not the
// forward itself succeeded — a failed forward still synthesizes a
// REFUSED reply and counts as allowed).
func (s *Stats) RecordAllowed() {
	s.total.Add(1)
	s.allowed.Add(1)
	s.promTotal.Inc()
	s.promAllowed.Inc()
}

// Snapshot is a point-in-time read of the three counters and uptime.
type Snapshot struct {
	Total     uint64
	Blocked   uint64
	Allowed   uint64
	StartedAt time.Time
	Uptime    time.Duration
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Total:     s.total.Load(),
		Blocked:   s.blocked.Load(),
		Allowed:   s.allowed.Load(),
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt),
	}
}
