package netstatus

import (
	"context"
	"log/slog"
	"time"
)

// Pinger checks whether the server can be reached.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober polls a Pinger and feeds the result into a Monitor.
type Prober struct {
	pinger   Pinger
	monitor  *Monitor
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// NewProber creates a Prober that pings every interval.
func NewProber(p Pinger, m *Monitor, interval time.Duration, log *slog.Logger) *Prober {
	timeout := interval / 2
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &Prober{pinger: p, monitor: m, interval: interval, timeout: timeout, log: log}
}

// Probe performs a single check and updates the monitor.
func (p *Prober) Probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(pingCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if p.monitor.Online() {
			p.log.Debug("probe failed", "error", err)
		}
		p.monitor.Set(false)
		return
	}
	p.monitor.Set(true)
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
