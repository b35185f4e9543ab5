// Package cache holds the last fetched snapshot of gauge readings and
// coordinates refreshes of it.
//
// A SnapshotCache is built once at startup and shared by every caller. Reads
// of a fresh snapshot take only a read lock. Refreshes are single-flight:
// callers that arrive while a fetch is running wait for it and receive the same
// snapshot, or the same error together with the previous snapshot.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/abelzeko/waterwatch/internal/entities"
	"github.com/abelzeko/waterwatch/internal/metrics"
)

const refreshKey = "snapshot"

// Fetcher returns the current readings from the upstream source.
type Fetcher interface {
	FetchReadings(ctx context.Context) ([]entities.StationReading, error)
}

// RefreshHook is called once for every successful refresh with the new snapshot.
type RefreshHook func(ctx context.Context, snap *entities.Snapshot)

// Options configures a SnapshotCache.
type Options struct {
	// FetchTimeout bounds a single upstream fetch.
	FetchTimeout time.Duration
	// OnRefresh runs after each successful refresh on its own goroutine.
	OnRefresh RefreshHook
	// Clock stamps FetchedAt. Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// SnapshotCache is the single owner of the current snapshot.
type SnapshotCache struct {
	fetcher      Fetcher
	fetchTimeout time.Duration
	onRefresh    RefreshHook
	clock        func() time.Time
	logger       *slog.Logger

	mu          sync.RWMutex
	current     *entities.Snapshot
	invalidated bool

	flight singleflight.Group
	hooks  sync.WaitGroup
}

// New creates an empty cache in front of fetcher.
func New(fetcher Fetcher, opts Options) *SnapshotCache {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SnapshotCache{
		fetcher:      fetcher,
		fetchTimeout: opts.FetchTimeout,
		onRefresh:    opts.OnRefresh,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
}

// Current returns the cached snapshot without refreshing. It is nil until the
// first successful refresh.
func (c *SnapshotCache) Current() *entities.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// GetOrRefresh returns the cached snapshot if it is younger than ttl at now,
// refreshing it otherwise. When the refresh fails the previous snapshot (which
// may be nil) is returned along with the error.
func (c *SnapshotCache) GetOrRefresh(ctx context.Context, now time.Time, ttl time.Duration) (*entities.Snapshot, error) {
	if snap, ok := c.fresh(now, ttl); ok {
		return snap, nil
	}
	return c.refresh(ctx, func() (*entities.Snapshot, bool) {
		return c.fresh(now, ttl)
	})
}

// Refresh fetches a new snapshot regardless of age. It still joins a refresh
// that is already in flight.
func (c *SnapshotCache) Refresh(ctx context.Context) (*entities.Snapshot, error) {
	return c.refresh(ctx, nil)
}

// Invalidate marks the current snapshot stale so the next read refreshes it.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.invalidated = true
	c.mu.Unlock()
}

// Wait blocks until every started refresh hook has returned.
func (c *SnapshotCache) Wait() {
	c.hooks.Wait()
}

func (c *SnapshotCache) fresh(now time.Time, ttl time.Duration) (*entities.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.invalidated || now.Sub(c.current.FetchedAt) > ttl {
		return nil, false
	}
	return c.current, true
}

// refresh joins or starts the flight. reuse, when set, is consulted inside the
// flight so a caller that lost the race with a just-finished refresh does not
// fetch again.
func (c *SnapshotCache) refresh(ctx context.Context, reuse func() (*entities.Snapshot, bool)) (*entities.Snapshot, error) {
	ch := c.flight.DoChan(refreshKey, func() (interface{}, error) {
		if reuse != nil {
			if snap, ok := reuse(); ok {
				return snap, nil
			}
		}
		return c.fetch(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.Current(), res.Err
		}
		return res.Val.(*entities.Snapshot), nil
	case <-ctx.Done():
		return c.Current(), ctx.Err()
	}
}

// fetch runs inside the flight. The upstream call is detached from the
// triggering caller so that one caller giving up does not fail the others.
func (c *SnapshotCache) fetch(ctx context.Context) (*entities.Snapshot, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	started := c.clock()
	readings, err := c.fetcher.FetchReadings(fetchCtx)
	metrics.RecordFetch(c.clock().Sub(started), err)
	if err != nil {
		c.logger.Warn("snapshot refresh failed, keeping previous snapshot",
			"error", err,
			"duration", c.clock().Sub(started),
		)
		return nil, fmt.Errorf("refresh snapshot: %w", err)
	}

	snap := &entities.Snapshot{
		Readings:  readings,
		FetchedAt: c.clock().UTC(),
	}

	c.mu.Lock()
	c.current = snap
	c.invalidated = false
	c.mu.Unlock()
	metrics.RecordRefresh(snap.FetchedAt, len(readings))

	c.logger.Info("snapshot refreshed",
		"readings", len(readings),
		"fetched_at", snap.FetchedAt.Format(time.RFC3339),
		"duration", snap.FetchedAt.Sub(started.UTC()),
	)

	if c.onRefresh != nil {
		c.hooks.Add(1)
		go func() {
			defer c.hooks.Done()
			c.onRefresh(context.WithoutCancel(ctx), snap)
		}()
	}
	return snap, nil
}
