// Package probe runs a background liveness monitor against the
// knowledge-graph backend. It exists for the long-running monitor mode;
// one-shot commands never start it.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/pkg/graph"
)

// StatusFunc probes the backend, typically memory.Service.Status.
type StatusFunc func(ctx context.Context) (*graph.Status, error)

// checkTimeout bounds one probe; a hung backend must not pile up runs.
const checkTimeout = 15 * time.Second

// Monitor periodically probes the backend and records the outcome.
type Monitor struct {
	status   StatusFunc
	interval string
	logger   zerolog.Logger
	cron     *cron.Cron

	wg sync.WaitGroup

	mu   sync.RWMutex
	last *graph.Status
}

// Config configures a Monitor.
type Config struct {
	Status StatusFunc
	Logger zerolog.Logger

	// Interval is a cron spec, e.g. "@every 5m".
	Interval string
}

// NewMonitor creates a liveness monitor.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.Status == nil {
		return nil, fmt.Errorf("status function is required")
	}
	if cfg.Interval == "" {
		return nil, fmt.Errorf("probe interval is required")
	}

	return &Monitor{
		status:   cfg.Status,
		interval: cfg.Interval,
		logger:   cfg.Logger.With().Str("component", "probe").Logger(),
		cron:     cron.New(),
	}, nil
}

// Start schedules the probe and runs the first check immediately.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.interval, m.check); err != nil {
		return fmt.Errorf("scheduling probe %q: %w", m.interval, err)
	}

	m.cron.Start()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.check()
	}()

	m.logger.Info().Str("interval", m.interval).Msg("Liveness monitor started")
	return nil
}

// Stop halts the schedule and waits for any running check to finish,
// including the immediate one launched by Start.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.wg.Wait()
	m.logger.Info().Msg("Liveness monitor stopped")
}

// Last returns the most recent probe result, nil before the first run.
func (m *Monitor) Last() *graph.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	started := time.Now()
	st, err := m.status(ctx)
	if err != nil {
		st = &graph.Status{OK: false, Message: err.Error()}
	}

	m.mu.Lock()
	m.last = st
	m.mu.Unlock()

	observability.RecordProbe(st.OK)

	event := m.logger.Debug()
	if !st.OK {
		event = m.logger.Warn()
	}
	event.
		Bool("ok", st.OK).
		Str("message", st.Message).
		Dur("duration", time.Since(started)).
		Msg("Backend probe")
}
