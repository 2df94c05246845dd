package persist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cuemby/failwatch/pkg/storage"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify() { c.n.Add(1) }

type failingStore struct {
	*storage.MemoryStore
	getErr error
	setErr error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	notifier := &countingNotifier{}
	a := NewAdapter(store, "", notifier)

	records := []types.FailureRecord{
		{Host: "example.com", LastError: "404", LastSeen: 1000, Hits: 2},
	}
	a.Save(ctx, records)

	assert.Equal(t, int32(1), notifier.n.Load())

	raw, err := store.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"host":"example.com","lastError":"404","lastSeen":1000,"hits":2}]`, string(raw))

	assert.Equal(t, records, a.Load(ctx))
}

func TestSaveEmptySnapshotWritesArray(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	a := NewAdapter(store, "custom", nil)

	a.Save(ctx, nil)

	raw, err := store.Get(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestLoadAbsentKeyIsEmpty(t *testing.T) {
	a := NewAdapter(storage.NewMemoryStore(), "", nil)

	records := a.Load(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestLoadReadErrorIsEmpty(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), getErr: errors.New("store unavailable")}
	a := NewAdapter(store, "", nil)

	assert.Empty(t, a.Load(context.Background()))
}

func TestLoadCorruptValueIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, DefaultKey, []byte("{not json")))

	assert.Empty(t, NewAdapter(store, "", nil).Load(ctx))
}

func TestSaveFailureStillNotifies(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), setErr: errors.New("disk full")}
	notifier := &countingNotifier{}
	a := NewAdapter(store, "", notifier)

	assert.NotPanics(t, func() {
		a.Save(context.Background(), []types.FailureRecord{{Host: "example.com", Hits: 1}})
	})
	assert.Equal(t, int32(1), notifier.n.Load())
}

// ctxStore fails writes whose context is already done, as network stores do
type ctxStore struct {
	*storage.MemoryStore
}

func (s *ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestSaveOutlivesCanceledCaller(t *testing.T) {
	store := &ctxStore{MemoryStore: storage.NewMemoryStore()}
	a := NewAdapter(store, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	a.Save(ctx, []types.FailureRecord{{Host: "a.com", Hits: 1}, {Host: "b.com", Hits: 1}})
	cancel()

	// caller went away between the mutation and the save
	a.Save(ctx, []types.FailureRecord{{Host: "b.com", Hits: 1}})

	records := a.Load(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "b.com", records[0].Host)
}
