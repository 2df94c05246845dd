package metrics

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fixedSizer int

func (s fixedSizer) Len() int { return int(s) }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestCollectorCollect(t *testing.T) {
	resetHealth()
	var buf bytes.Buffer

	c := NewCollector(fixedSizer(7), fixedSizer(3), stubPinger{}, 0, zerolog.New(&buf))
	c.Collect()

	assert.Equal(t, float64(7), testutil.ToFloat64(LedgerRecords))
	assert.Equal(t, float64(3), testutil.ToFloat64(DebounceEntries))
	assert.True(t, ComponentHealthy(ComponentStorage))
	assert.Contains(t, buf.String(), `"records":7`)
}

func TestCollectorMarksStoreUnhealthy(t *testing.T) {
	resetHealth()

	c := NewCollector(fixedSizer(0), nil, stubPinger{err: errors.New("dial tcp: refused")}, 0, zerolog.Nop())
	c.Collect()

	assert.False(t, ComponentHealthy(ComponentStorage))
	assert.Equal(t, "unhealthy", GetHealth().Status)
}
