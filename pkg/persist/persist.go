package persist

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/storage"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultKey is the namespace key holding the serialized ledger
const DefaultKey = "failedHosts"

// Notifier receives a change notification after every save attempt
type Notifier interface {
	Notify()
}

// Adapter round-trips ledger snapshots through a Store
type Adapter struct {
	store    storage.Store
	key      string
	notifier Notifier
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewAdapter creates a persistence adapter. notifier may be nil.
func NewAdapter(store storage.Store, key string, notifier Notifier) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	return &Adapter{
		store:    store,
		key:      key,
		notifier: notifier,
		timeout:  5 * time.Second,
		logger:   log.WithComponent("persist"),
	}
}

// Save writes the snapshot and then notifies listeners. Store failures are
// logged and swallowed; the in-memory ledger stays authoritative. The write
// ignores cancellation of ctx and is bounded by the adapter timeout instead.
func (a *Adapter) Save(ctx context.Context, snapshot []types.FailureRecord) {
	if err := a.write(ctx, snapshot); err != nil {
		metrics.StoreOperations.WithLabelValues("save", "error").Inc()
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		a.logger.Error().Err(err).Int("records", len(snapshot)).Msg("storage set error")
	} else {
		metrics.StoreOperations.WithLabelValues("save", "ok").Inc()
		metrics.UpdateComponent(metrics.ComponentStorage, true, "")
		a.logger.Debug().Int("records", len(snapshot)).Msg("storage updated")
	}

	if a.notifier != nil {
		a.notifier.Notify()
	}
}

func (a *Adapter) write(ctx context.Context, snapshot []types.FailureRecord) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreDuration, "save")

	if snapshot == nil {
		snapshot = []types.FailureRecord{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	// A mutation already applied in memory must reach the store even when
	// the request that caused it has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	return a.store.Set(ctx, a.key, data)
}

// Load reads the persisted snapshot. An absent key, a read error or an
// undecodable value all yield an empty ledger.
func (a *Adapter) Load(ctx context.Context) []types.FailureRecord {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreDuration, "load")

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.store.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.StoreOperations.WithLabelValues("load", "empty").Inc()
		return []types.FailureRecord{}
	}
	if err != nil {
		metrics.StoreOperations.WithLabelValues("load", "error").Inc()
		a.logger.Error().Err(err).Msg("storage get error")
		return []types.FailureRecord{}
	}

	var records []types.FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		metrics.StoreOperations.WithLabelValues("load", "error").Inc()
		a.logger.Error().Err(err).Msg("stored ledger is not decodable, starting empty")
		return []types.FailureRecord{}
	}

	metrics.StoreOperations.WithLabelValues("load", "ok").Inc()
	a.logger.Info().Int("records", len(records)).Msg("loaded from storage")
	if records == nil {
		records = []types.FailureRecord{}
	}
	return records
}
