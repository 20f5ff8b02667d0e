package storage_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDisk = errors.New("disk unavailable")

// flakyStore fails the first failures calls to Set, then delegates.
type flakyStore struct {
	*storage.MemoryStore
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.calls.Add(1) <= f.failures {
		return errDisk
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func fastConfig() storage.ResilientConfig {
	return storage.ResilientConfig{
		MaxAttempts:      3,
		InitialDelay:     time.Millisecond,
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	}
}

func TestResilientStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return storage.NewResilientStore(storage.NewMemoryStore(), fastConfig())
	})
}

func TestResilientStore_RetriesTransientFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: storage.NewMemoryStore(), failures: 2}
	s := storage.NewResilientStore(inner, fastConfig())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "progress/streak", []byte("1")))
	assert.Equal(t, int32(3), inner.calls.Load())

	got, err := s.Get(ctx, "progress/streak")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestResilientStore_MissingKeysDoNotTripBreaker(t *testing.T) {
	s := storage.NewResilientStore(storage.NewMemoryStore(), fastConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.Get(ctx, "progress/streak")
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, "drafts/1"), storage.ErrNotFound)
	}
	require.NoError(t, s.Set(ctx, "progress/streak", []byte("1")))
}

func TestResilientStore_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: storage.NewMemoryStore(), failures: 1000}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	s := storage.NewResilientStore(inner, cfg)
	ctx := context.Background()

	assert.Error(t, s.Set(ctx, "progress/streak", []byte("1")))
	assert.Error(t, s.Set(ctx, "progress/streak", []byte("1")))
	before := inner.calls.Load()

	assert.Error(t, s.Set(ctx, "progress/streak", []byte("1")))
	assert.Equal(t, before, inner.calls.Load(), "open breaker should short-circuit")
}

func TestResilientStore_InvalidKeyNotRetried(t *testing.T) {
	inner := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	s := storage.NewResilientStore(inner, fastConfig())

	err := s.Set(context.Background(), "../etc", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidKey)
	assert.Equal(t, int32(0), inner.calls.Load())
}
