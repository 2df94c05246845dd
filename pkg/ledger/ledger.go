package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultMaxRecords is the default ledger capacity
const DefaultMaxRecords = 200

// Persister stores ledger snapshots
type Persister interface {
	Save(ctx context.Context, snapshot []types.FailureRecord)
	Load(ctx context.Context) []types.FailureRecord
}

// HostNormalizer canonicalizes prune candidates
type HostNormalizer interface {
	NormalizeHost(candidate string) (string, bool)
}

// Ledger is the bounded, deduplicated store of per-host failure records.
// Records are kept in update order, oldest first; every operation is
// serialized and persists before it returns.
type Ledger struct {
	mu         sync.Mutex
	records    []types.FailureRecord
	maxRecords int
	persister  Persister
	normalizer HostNormalizer
	logger     zerolog.Logger
}

// New creates an empty ledger. persister may be nil for a memory-only ledger.
func New(maxRecords int, persister Persister, normalizer HostNormalizer) *Ledger {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Ledger{
		records:    make([]types.FailureRecord, 0, maxRecords+1),
		maxRecords: maxRecords,
		persister:  persister,
		normalizer: normalizer,
		logger:     log.WithComponent("ledger"),
	}
}

// MaxRecords returns the ledger capacity
func (l *Ledger) MaxRecords() int {
	return l.maxRecords
}

// Load replaces the in-memory state with the persisted snapshot. Duplicate
// hosts keep their latest entry and the oldest entries beyond capacity are
// dropped. It returns the number of records restored.
func (l *Ledger) Load(ctx context.Context) int {
	if l.persister == nil {
		return 0
	}
	snapshot := l.persister.Load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(snapshot))
	restored := make([]types.FailureRecord, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		rec := snapshot[i]
		if rec.Host == "" || seen[rec.Host] {
			continue
		}
		if rec.Hits < 1 {
			rec.Hits = 1
		}
		seen[rec.Host] = true
		restored = append(restored, rec)
	}
	// restored is newest first; flip back to update order
	for i, j := 0, len(restored)-1; i < j; i, j = i+1, j-1 {
		restored[i], restored[j] = restored[j], restored[i]
	}
	if over := len(restored) - l.maxRecords; over > 0 {
		restored = restored[over:]
	}

	l.records = restored
	metrics.LedgerRecords.Set(float64(len(l.records)))
	return len(l.records)
}

// Record merges an admitted failure signal for host into the ledger
func (l *Ledger) Record(ctx context.Context, host, errCode string, now time.Time) types.FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := now.UnixMilli()
	rec := types.FailureRecord{Host: host, LastError: errCode, LastSeen: ts, Hits: 1}

	if idx := l.indexOf(host); idx >= 0 {
		prev := l.records[idx]
		rec.Hits = prev.Hits + 1
		if prev.LastSeen > ts {
			// A clock step backwards never moves lastSeen back
			rec.LastSeen = prev.LastSeen
		}
		l.records = append(l.records[:idx], l.records[idx+1:]...)
	}
	l.records = append(l.records, rec)

	if over := len(l.records) - l.maxRecords; over > 0 {
		for _, evicted := range l.records[:over] {
			l.logger.Debug().Str("host", evicted.Host).Msg("evicted")
		}
		l.records = append(l.records[:0], l.records[over:]...)
		metrics.LedgerEvictions.Add(float64(over))
	}

	l.logger.Info().
		Str("host", host).
		Str("error", errCode).
		Int("hits", rec.Hits).
		Msg("captured")

	l.persist(ctx)
	return rec
}

// List returns every record, most recently seen first
func (l *Ledger) List() []types.FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.FailureRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, l.records[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen > out[j].LastSeen
	})
	return out
}

// Get returns the record for a canonical host
func (l *Ledger) Get(host string) (types.FailureRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx := l.indexOf(host); idx >= 0 {
		return l.records[idx], true
	}
	return types.FailureRecord{}, false
}

// Len returns the number of records
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// ClearAll empties the ledger and returns how many records were removed
func (l *Ledger) ClearAll(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := len(l.records)
	l.records = l.records[:0]
	l.logger.Info().Int("count", count).Msg("cleared")

	l.persist(ctx)
	return count
}

// Prune removes the records matching hosts. Candidates may be canonical
// hosts or raw URLs; they are normalized before matching. Nothing is
// persisted when no record matched.
func (l *Ledger) Prune(ctx context.Context, hosts []string) int {
	targets := make(map[string]bool, len(hosts))
	for _, candidate := range hosts {
		host := candidate
		if l.normalizer != nil {
			normalized, ok := l.normalizer.NormalizeHost(candidate)
			if !ok {
				continue
			}
			host = normalized
		}
		targets[host] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(targets) == 0 {
		return 0
	}

	kept := l.records[:0]
	pruned := 0
	for _, rec := range l.records {
		if targets[rec.Host] {
			pruned++
			continue
		}
		kept = append(kept, rec)
	}
	l.records = kept

	l.logger.Info().
		Int("requested", len(hosts)).
		Int("pruned", pruned).
		Int("remaining", len(l.records)).
		Msg("pruned")

	if pruned > 0 {
		metrics.LedgerPruned.Add(float64(pruned))
		l.persist(ctx)
	}
	return pruned
}

func (l *Ledger) indexOf(host string) int {
	for i := range l.records {
		if l.records[i].Host == host {
			return i
		}
	}
	return -1
}

// persist must be called with l.mu held so saves observe mutations in order
func (l *Ledger) persist(ctx context.Context) {
	metrics.LedgerRecords.Set(float64(len(l.records)))
	if l.persister == nil {
		return
	}
	snapshot := make([]types.FailureRecord, len(l.records))
	copy(snapshot, l.records)
	l.persister.Save(ctx, snapshot)
}
