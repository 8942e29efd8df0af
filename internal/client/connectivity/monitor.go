// Package connectivity tracks whether the API server is reachable.
//
// A Monitor owns the current Mode. It is updated by periodic probes (Run),
// by on-demand probes after a transport failure (Check), and directly by
// callers that observed the server answer (SetMode). Listeners registered
// with OnChange are called on every transition.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// ProbeFunc reports nil when the server answered.
type ProbeFunc func(ctx context.Context) error

const defaultProbeTimeout = 3 * time.Second

type Monitor struct {
	probe        ProbeFunc
	probeTimeout time.Duration
	log          logging.Logger

	mu        sync.RWMutex
	mode      Mode
	listeners []func(from, to Mode)
}

// NewMonitor returns a monitor that starts online; the first failed request
// or probe flips it.
func NewMonitor(probe ProbeFunc, log logging.Logger) *Monitor {
	return &Monitor{
		probe:        probe,
		probeTimeout: defaultProbeTimeout,
		log:          log,
		mode:         ModeOnline,
	}
}

func (m *Monitor) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *Monitor) Online() bool {
	return m.Mode() == ModeOnline
}

// OnChange registers fn to be called after each mode transition. Listeners
// run synchronously on the goroutine that caused the transition.
func (m *Monitor) OnChange(fn func(from, to Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetMode records mode, notifying listeners if it changed.
func (m *Monitor) SetMode(mode Mode) {
	m.mu.Lock()
	from := m.mode
	if from == mode {
		m.mu.Unlock()
		return
	}
	m.mode = mode
	listeners := append([]func(from, to Mode){}, m.listeners...)
	m.mu.Unlock()

	m.log.Info(context.Background(), "connectivity changed", "from", string(from), "to", string(mode))
	for _, fn := range listeners {
		fn(from, mode)
	}
}

// Check probes the server once and updates the mode.
func (m *Monitor) Check(ctx context.Context) Mode {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.probe(ctx)
	cancel()

	if err != nil {
		m.log.Debug(ctx, "connectivity probe failed", "error", err)
		m.SetMode(ModeOffline)
		return ModeOffline
	}
	m.SetMode(ModeOnline)
	return ModeOnline
}

// Run probes every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
