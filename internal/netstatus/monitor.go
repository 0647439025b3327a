// Package netstatus tracks whether the server is reachable.
package netstatus

import (
	"log/slog"
	"sync"
)

// Monitor holds the current online flag and fans out transitions to subscribers.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[chan bool]struct{}
	log    *slog.Logger
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(online bool, log *slog.Logger) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[chan bool]struct{}),
		log:    log,
	}
}

// Online reports the last known connectivity.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a connectivity event. Subscribers are notified only on change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online
	m.log.Info("connectivity changed", "online", online)

	for ch := range m.subs {
		// Subscribers only care about the latest state; drop a stale value
		// rather than block the caller.
		select {
		case ch <- online:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
}

// ReportFailure marks the monitor offline after a request failed for lack of
// connectivity. Callers decide which errors qualify.
func (m *Monitor) ReportFailure(err error) {
	m.log.Warn("request failed, assuming offline", "error", err)
	m.Set(false)
}

// Subscribe returns a channel receiving every subsequent transition. The
// channel is buffered with capacity one and always holds the newest state.
func (m *Monitor) Subscribe() <-chan bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan bool, 1)
	m.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch.
func (m *Monitor) Unsubscribe(ch <-chan bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c := range m.subs {
		if c == ch {
			delete(m.subs, c)
			return
		}
	}
}
