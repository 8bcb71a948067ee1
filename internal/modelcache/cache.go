// Package modelcache implements ModelCache (spec §4.1): a single-flight,
// keyed cache of inference model handles. Single-flight is built on
// golang.org/x/sync/singleflight rather than a hand-rolled load-lock map,
// following the same package's use for worker fan-out elsewhere in the
// pipeline (SPEC_FULL §4.9/§4.10).
package modelcache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/whisperpipe/transcribe-api/internal/apperr"
	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/metrics"
)

// Key uniquely identifies a cached model handle (spec §3's ModelKey).
type Key struct {
	RepoID      string
	Device      config.Device
	ComputeType config.ComputeType
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.RepoID, k.Device, k.ComputeType)
}

// LocalDir derives the on-disk directory name for a repo_id, replacing '/'
// with '-' (spec §4.1a).
func (k Key) LocalDir(modelsDir string) string {
	return modelsDir + "/" + strings.ReplaceAll(k.RepoID, "/", "-")
}

// Handle is the opaque model handle returned by Get. It wraps whatever the
// concrete engine package constructs; the cache only manages its lifetime.
type Handle interface {
	// Close releases resources backing the handle, if any.
	Close() error
}

// Downloader fetches model artifacts for a repo_id into target_dir,
// resuming a previous partial download if one is present (spec §4.1b).
type Downloader interface {
	FetchModel(ctx context.Context, repoID, targetDir string) error
}

// Constructor builds a Handle pinned to a device/compute_type once the
// model artifacts are present locally (spec §4.1c).
type Constructor interface {
	Construct(ctx context.Context, localDir string, device config.Device, compute config.ComputeType) (Handle, error)
}

// Cache is the process-lifetime ModelCache singleton. Construct once in
// main and pass it down explicitly (spec §9's "not ambient globals" note).
type Cache struct {
	modelsDir string
	dl        Downloader
	ctor      Constructor

	mu      sync.RWMutex
	handles map[Key]Handle

	group singleflight.Group

	// Metrics is optional; when set, Get reports cache hit/miss on every
	// call (spec §8 property 2).
	Metrics *metrics.Metrics
}

func New(modelsDir string, dl Downloader, ctor Constructor) *Cache {
	return &Cache{
		modelsDir: modelsDir,
		dl:        dl,
		ctor:      ctor,
		handles:   make(map[Key]Handle),
	}
}

// Get returns the cached handle for key, loading it if necessary. Concurrent
// callers for the same key observe exactly one FetchModel + Construct call;
// different keys load independently (spec §4.1 contract, spec §8 property 2).
func (c *Cache) Get(ctx context.Context, key Key) (Handle, error) {
	if h, ok := c.peek(key); ok {
		c.recordLoad(ctx, true)
		return h, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if h, ok := c.peek(key); ok {
			c.recordLoad(ctx, true)
			return h, nil
		}
		c.recordLoad(ctx, false)

		localDir := key.LocalDir(c.modelsDir)
		if !dirExists(localDir) {
			if err := c.dl.FetchModel(ctx, key.RepoID, localDir); err != nil {
				return nil, apperr.ModelLoadFailed(err, "failed to download model %q", key.RepoID)
			}
		}

		h, err := c.ctor.Construct(ctx, localDir, key.Device, key.ComputeType)
		if err != nil {
			return nil, apperr.ModelLoadFailed(err, "failed to construct model handle for %q", key.RepoID)
		}

		c.mu.Lock()
		c.handles[key] = h
		c.mu.Unlock()

		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

func (c *Cache) recordLoad(ctx context.Context, hit bool) {
	if c.Metrics != nil {
		c.Metrics.RecordModelLoad(ctx, hit)
	}
}

func (c *Cache) peek(key Key) (Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[key]
	return h, ok
}

// Clear drops all cached handles, closing each one. The first error
// encountered while closing is returned; it does not prevent the others from
// being released.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for k, h := range c.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close handle for %q: %w", k.RepoID, err)
		}
		delete(c.handles, k)
	}
	return firstErr
}

// Names returns a snapshot of the currently cached keys.
func (c *Cache) Names() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]Key, 0, len(c.handles))
	for k := range c.handles {
		keys = append(keys, k)
	}
	return keys
}

// Size returns the number of currently cached handles.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}
