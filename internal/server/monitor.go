// Package server prunes dead connections with a recurring liveness sweep.
package server

import (
	"context"
	"log/slog"
	"time"
)

// Monitor periodically evicts registry entries whose heartbeat has gone
// stale. It is the only actor allowed to remove a connection purely on
// timeout; everything else evicts on protocol violations. Interval, threshold
// and clock are injected so tests can drive sweeps directly.
type Monitor struct {
	registry  *Registry
	notify    func()
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewMonitor builds a Monitor over the hub's registry using the hub's
// configured sweep interval and staleness threshold.
func NewMonitor(h *Hub) *Monitor {
	return &Monitor{
		registry:  h.registry,
		notify:    h.BroadcastUserList,
		interval:  h.cfg.SweepInterval,
		threshold: h.cfg.StaleThreshold,
		now:       h.now,
		log:       h.log,
	}
}

// Run sweeps until ctx is canceled. A failure inside one cycle never stops
// the next one.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("liveness monitor started", "interval", m.interval, "threshold", m.threshold)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("liveness monitor stopped")
			return
		case <-ticker.C:
			if m.sweep() > 0 {
				m.notify()
			}
		}
	}
}

// sweep removes every entry staler than the threshold and returns how many
// were evicted.
func (m *Monitor) sweep() int {
	evicted := m.registry.EvictStale(m.now().Add(-m.threshold))
	for _, e := range evicted {
		m.log.Info("evicted stale connection", "conn_id", e.Session.id, "username", e.Username)
	}
	return len(evicted)
}
