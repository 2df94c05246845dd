package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sizer reports a current element count
type Sizer interface {
	Len() int
}

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collector periodically refreshes gauges and component health, and emits a
// heartbeat log line
type Collector struct {
	ledger   Sizer
	gate     Sizer
	store    Pinger
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(ledger, gate Sizer, store Pinger, interval time.Duration, logger zerolog.Logger) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		ledger:   ledger,
		gate:     gate,
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect runs one collection pass
func (c *Collector) Collect() {
	records := c.ledger.Len()
	LedgerRecords.Set(float64(records))

	entries := 0
	if c.gate != nil {
		entries = c.gate.Len()
		DebounceEntries.Set(float64(entries))
	}

	storeOK := true
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.store.Ping(ctx)
		cancel()
		if err != nil {
			storeOK = false
			UpdateComponent(ComponentStorage, false, err.Error())
		} else {
			UpdateComponent(ComponentStorage, true, "")
		}
	}

	c.logger.Info().
		Int("records", records).
		Int("debounce_entries", entries).
		Bool("store_ok", storeOK).
		Msg("alive")
}
