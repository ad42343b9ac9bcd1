package catalog

import (
	"context"
	"strconv"
	"time"

	"github.com/karlseguin/ccache/v3"

	"planificanet/internal/model"
)

// Cached memoizes a Source for ttl. The catalog only changes through
// migrations, so a stale read costs at most one TTL.
type Cached struct {
	src   Source
	ttl   time.Duration
	cache *ccache.Cache[any]
}

func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{
		src:   src,
		ttl:   ttl,
		cache: ccache.New(ccache.Configure[any]().MaxSize(256)),
	}
}

func (c *Cached) Stop() { c.cache.Stop() }

func (c *Cached) Zones(ctx context.Context) ([]model.Zone, error) {
	return fetch(c, "zonas", func() ([]model.Zone, error) { return c.src.Zones(ctx) })
}

func (c *Cached) Neighborhoods(ctx context.Context, zoneID int64) ([]model.Neighborhood, error) {
	key := "barrios:" + strconv.FormatInt(zoneID, 10)
	return fetch(c, key, func() ([]model.Neighborhood, error) { return c.src.Neighborhoods(ctx, zoneID) })
}

func (c *Cached) Services(ctx context.Context) ([]model.Service, error) {
	return fetch(c, "servicios", func() ([]model.Service, error) { return c.src.Services(ctx) })
}

// Service resolves id against the cached service list.
func (c *Cached) Service(ctx context.Context, id int64) (*model.Service, error) {
	all, err := c.Services(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

// fetch returns the cached value for key or loads and stores it.
// Errors are not cached.
func fetch[T any](c *Cached, key string, load func() (T, error)) (T, error) {
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value().(T), nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.cache.Set(key, v, c.ttl)
	return v, nil
}
