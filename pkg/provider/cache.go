package provider

import (
	"context"
	"errors"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"

	"github.com/kass/go-aqi-viz/pkg/models"
)

const directoryKey = "directory"

// CachedFetcher shares one directory snapshot between callers for ttl and
// collapses concurrent misses into a single upstream fetch. Failed fetches are
// not cached. A caller that gives up does not cancel the fetch for the others.
type CachedFetcher struct {
	next  Fetcher
	ttl   time.Duration
	cache gcache.Cache
	group singleflight.Group
}

// NewCachedFetcher wraps next with a snapshot cache
func NewCachedFetcher(next Fetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		ttl:   ttl,
		cache: gcache.New(1).LRU().Build(),
	}
}

// FetchStations returns the cached snapshot or fetches a new one
func (c *CachedFetcher) FetchStations(ctx context.Context) (models.Directory, error) {
	if v, err := c.cache.Get(directoryKey); err == nil {
		return cloneDirectory(v.(models.Directory)), nil
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return models.Directory{}, err
	}

	// The shared fetch must outlive any single caller; the client timeout
	// still bounds it.
	ch := c.group.DoChan(directoryKey, func() (interface{}, error) {
		dir, err := c.next.FetchStations(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if err := c.cache.SetWithExpire(directoryKey, dir, c.ttl); err != nil {
			return nil, err
		}
		return dir, nil
	})

	select {
	case <-ctx.Done():
		return models.Directory{}, &NetworkError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return models.Directory{}, res.Err
		}
		return cloneDirectory(res.Val.(models.Directory)), nil
	}
}

// Invalidate drops the cached snapshot
func (c *CachedFetcher) Invalidate() {
	c.cache.Remove(directoryKey)
}

// cloneDirectory copies the station slice so callers cannot mutate the shared snapshot
func cloneDirectory(dir models.Directory) models.Directory {
	return models.Directory{
		Stations:  append([]models.Station(nil), dir.Stations...),
		FetchedAt: dir.FetchedAt,
	}
}
