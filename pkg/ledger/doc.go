/*
Package ledger holds the bounded, deduplicated history of failing hosts.

The ledger is the single source of truth for "which hosts have been failing
recently". It is fed by the capture pipeline, read by the command API, and
mutated by operator commands (clear, prune, promote).

# Architecture

	┌──────────── capture.Pipeline ────────────┐
	│  normalize → debounce → Record(host,err) │
	└───────────────────┬──────────────────────┘
	                    │
	┌───────────────────▼──── Ledger ──────────┐
	│                                           │
	│  records (oldest first, by update order)  │
	│    [c.com] [a.com] [b.com] ... [newest]   │
	│       ↑ evicted first when len > max      │
	│                                           │
	│  List()   → copy sorted by lastSeen desc  │
	│  Prune()  → NormalizeHost each candidate  │
	│  ClearAll()                               │
	└───────────────────┬──────────────────────┘
	                    │ snapshot (under lock)
	┌───────────────────▼──── Persister ───────┐
	│  persist.Adapter: JSON under one key,    │
	│  then one failed_hosts_updated event     │
	└──────────────────────────────────────────┘

# Invariants

  - Host is unique across records.
  - Len() never exceeds MaxRecords (default 200).
  - A record's LastSeen never moves backwards and Hits is at least 1.
  - Record and ClearAll always save; Prune saves only when it removed
    something. Saves are issued while the mutex is held, so they land in
    mutation order.

# Merge and Eviction

Recording a host that is already present increments Hits, replaces LastError
and moves the record to the most-recent end. Recording a new host appends it.
When the ledger is over capacity the oldest-updated records are dropped, so a
host that keeps failing is never evicted in favour of newer one-off failures.

# Usage

	normalizer := hostname.NewNormalizer(hostname.DefaultPolicy())
	adapter := persist.NewAdapter(store, persist.DefaultKey, broker)

	l := ledger.New(200, adapter, normalizer)
	l.Load(ctx)

	l.Record(ctx, "api.example.com", "404", time.Now())
	for _, r := range l.List() {
		fmt.Println(r.Host, r.Hits)
	}

	l.Prune(ctx, []string{"https://api.example.com/path"})

A nil Persister gives a memory-only ledger, which the tests use.
*/
package ledger
