package debounce

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	// DefaultWindow is the interval during which identical signals are suppressed
	DefaultWindow = 4 * time.Second

	// DefaultMaxEntries caps the number of remembered (host, error) pairs
	DefaultMaxEntries = 800
)

// Gate suppresses repeated identical (host, error) signals within a window.
// Remembered keys are bounded by an LRU and aged out by Sweep.
type Gate struct {
	window  time.Duration
	entries *lru.Cache
	mu      sync.Mutex
}

// NewGate creates a gate. Non-positive arguments fall back to the defaults.
func NewGate(window time.Duration, maxEntries int) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	// lru.New only fails for a non-positive size
	entries, _ := lru.New(maxEntries)
	return &Gate{
		window:  window,
		entries: entries,
	}
}

// Key builds the debounce key for a signal
func Key(host, errCode string) string {
	return host + "|" + errCode
}

// Admit reports whether the signal should proceed. A suppressed signal does
// not refresh the stored timestamp.
func (g *Gate) Admit(host, errCode string, now time.Time) bool {
	key := Key(host, errCode)

	g.mu.Lock()
	defer g.mu.Unlock()

	if v, ok := g.entries.Peek(key); ok {
		if prior := v.(time.Time); now.Sub(prior) < g.window {
			return false
		}
	}
	g.entries.Add(key, now)
	return true
}

// Sweep drops entries whose window has elapsed and returns how many were removed
func (g *Gate) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for _, k := range g.entries.Keys() {
		v, ok := g.entries.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(v.(time.Time)) >= g.window {
			g.entries.Remove(k)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entries.Len()
}

// Window returns the suppression window
func (g *Gate) Window() time.Duration {
	return g.window
}

// Reset forgets every remembered key
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries.Purge()
}
