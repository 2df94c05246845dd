package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/rs/zerolog"
)

// Monitor probes one dependency on an interval and publishes its health as
// a metrics component
type Monitor struct {
	component string
	checker   Checker
	config    Config
	status    *Status
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
	logger    zerolog.Logger
}

// NewMonitor creates a monitor reporting checker results under component
func NewMonitor(component string, checker Checker, config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Retries <= 0 {
		config.Retries = 1
	}
	return &Monitor{
		component: component,
		checker:   checker,
		config:    config,
		status:    NewStatus(),
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("health").With().Str("target", checker.Target()).Logger(),
	}
}

// Start probes immediately and then every interval until Stop
func (m *Monitor) Start() {
	go func() {
		m.Probe()

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Probe()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop stops the probe loop
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Probe runs one check and publishes the resulting status
func (m *Monitor) Probe() Status {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	result := m.checker.Check(ctx)
	cancel()

	m.mu.Lock()
	wasHealthy := m.status.Healthy
	m.status.Update(result, m.config)
	status := *m.status
	m.mu.Unlock()

	if status.Healthy {
		metrics.UpdateComponent(m.component, true, "")
	} else {
		metrics.UpdateComponent(m.component, false, result.Message)
	}

	switch {
	case wasHealthy && !status.Healthy:
		m.logger.Warn().Str("reason", result.Message).Msg("dependency unreachable")
	case !wasHealthy && status.Healthy:
		m.logger.Info().Msg("dependency reachable again")
	}
	return status
}

// Status returns a copy of the current status
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.status
}
