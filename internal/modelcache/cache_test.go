package modelcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whisperpipe/transcribe-api/internal/config"
)

type fakeHandle struct {
	closed atomic.Bool
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

type countingLoader struct {
	fetchCalls atomic.Int64
	ctorCalls  atomic.Int64
	failFetch  bool
}

func (l *countingLoader) FetchModel(_ context.Context, _ string, _ string) error {
	l.fetchCalls.Add(1)
	if l.failFetch {
		return fmt.Errorf("network down")
	}
	return nil
}

func (l *countingLoader) Construct(_ context.Context, _ string, _ config.Device, _ config.ComputeType) (Handle, error) {
	l.ctorCalls.Add(1)
	return &fakeHandle{}, nil
}

func TestGetSingleFlight(t *testing.T) {
	dir := t.TempDir()
	loader := &countingLoader{}
	cache := New(dir, loader, loader)

	key := Key{RepoID: "org/model", Device: config.DeviceCPU, ComputeType: config.ComputeInt8}

	const K = 20
	var wg sync.WaitGroup
	handles := make([]Handle, K)
	for i := 0; i < K; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := cache.Get(context.Background(), key)
			require.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, loader.fetchCalls.Load())
	require.EqualValues(t, 1, loader.ctorCalls.Load())
	for _, h := range handles {
		require.Same(t, handles[0], h)
	}
	require.Len(t, cache.Names(), 1)
	require.Equal(t, 1, cache.Size())
}

func TestGetDifferentKeysLoadIndependently(t *testing.T) {
	dir := t.TempDir()
	loader := &countingLoader{}
	cache := New(dir, loader, loader)

	k1 := Key{RepoID: "org/a", Device: config.DeviceCPU, ComputeType: config.ComputeInt8}
	k2 := Key{RepoID: "org/b", Device: config.DeviceCPU, ComputeType: config.ComputeInt8}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = cache.Get(context.Background(), k1) }()
	go func() { defer wg.Done(); _, _ = cache.Get(context.Background(), k2) }()
	wg.Wait()

	require.EqualValues(t, 2, loader.fetchCalls.Load())
	require.Equal(t, 2, cache.Size())
}

func TestGetFailureNotCached(t *testing.T) {
	dir := t.TempDir()
	loader := &countingLoader{failFetch: true}
	cache := New(dir, loader, loader)

	key := Key{RepoID: "org/model", Device: config.DeviceCPU, ComputeType: config.ComputeInt8}

	_, err := cache.Get(context.Background(), key)
	require.Error(t, err)
	require.Equal(t, 0, cache.Size())
}

func TestClearClosesHandles(t *testing.T) {
	dir := t.TempDir()
	loader := &countingLoader{}
	cache := New(dir, loader, loader)

	key := Key{RepoID: "org/model", Device: config.DeviceCPU, ComputeType: config.ComputeInt8}
	h, err := cache.Get(context.Background(), key)
	require.NoError(t, err)

	require.NoError(t, cache.Clear())
	require.Equal(t, 0, cache.Size())
	require.True(t, h.(*fakeHandle).closed.Load())
}
