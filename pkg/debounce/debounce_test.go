package debounce

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmitSuppressesWithinWindow(t *testing.T) {
	g := NewGate(4*time.Second, 10)
	now := time.UnixMilli(1_700_000_000_000)

	assert.True(t, g.Admit("example.com", "404", now))
	assert.False(t, g.Admit("example.com", "404", now.Add(3999*time.Millisecond)))
	assert.True(t, g.Admit("example.com", "404", now.Add(4*time.Second)))
}

func TestSuppressedSignalDoesNotExtendWindow(t *testing.T) {
	g := NewGate(4*time.Second, 10)
	now := time.UnixMilli(1_700_000_000_000)

	assert.True(t, g.Admit("example.com", "404", now))
	assert.False(t, g.Admit("example.com", "404", now.Add(3*time.Second)))
	// Window is measured from the admitted signal, not the suppressed one
	assert.True(t, g.Admit("example.com", "404", now.Add(4*time.Second)))
}

func TestAdmitKeyedByHostAndError(t *testing.T) {
	g := NewGate(4*time.Second, 10)
	now := time.UnixMilli(1_700_000_000_000)

	assert.True(t, g.Admit("example.com", "404", now))
	assert.True(t, g.Admit("example.com", "500", now))
	assert.True(t, g.Admit("other.com", "404", now))
	assert.False(t, g.Admit("example.com", "500", now.Add(time.Second)))
}

func TestGateIsBounded(t *testing.T) {
	g := NewGate(time.Minute, 5)
	now := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 20; i++ {
		assert.True(t, g.Admit(fmt.Sprintf("host-%d.com", i), "404", now))
	}
	assert.Equal(t, 5, g.Len())

	// Oldest keys were evicted, so they are admitted again
	assert.True(t, g.Admit("host-0.com", "404", now))
	assert.False(t, g.Admit("host-19.com", "404", now))
}

func TestSweep(t *testing.T) {
	g := NewGate(4*time.Second, 10)
	now := time.UnixMilli(1_700_000_000_000)

	g.Admit("old.com", "404", now)
	g.Admit("new.com", "404", now.Add(3*time.Second))

	removed := g.Sweep(now.Add(5 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, g.Len())
	assert.False(t, g.Admit("new.com", "404", now.Add(5*time.Second)))
}

func TestDefaultsAndReset(t *testing.T) {
	g := NewGate(0, 0)
	assert.Equal(t, DefaultWindow, g.Window())

	now := time.Now()
	g.Admit("example.com", "404", now)
	g.Reset()
	assert.Equal(t, 0, g.Len())
	assert.True(t, g.Admit("example.com", "404", now))
}
