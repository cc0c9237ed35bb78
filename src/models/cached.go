package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shahintaesheikh/agentflow/src/cache"
)

// CachedModel wraps a Model and caches Send calls keyed by the full request.
type CachedModel struct {
	Model Model
	Cache *cache.LRUCache
}

// NewCachedModel creates a new CachedModel wrapper.
func NewCachedModel(model Model, size int, ttl time.Duration) *CachedModel {
	return &CachedModel{
		Model: model,
		Cache: cache.NewLRUCache(size, ttl),
	}
}

// Send checks the cache before calling the underlying model. Failed calls
// are never cached.
func (c *CachedModel) Send(ctx context.Context, req Request) (Response, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return c.Model.Send(ctx, req)
	}
	key := cache.HashKey(string(raw))
	if val, ok := c.Cache.Get(key); ok {
		if resp, ok := val.(Response); ok {
			return resp, nil
		}
	}

	resp, err := c.Model.Send(ctx, req)
	if err != nil {
		return Response{}, err
	}
	c.Cache.Set(key, resp)
	return resp, nil
}

// DefaultCacheTTL applies when caching is enabled without a TTL.
const DefaultCacheTTL = 5 * time.Minute

// WithCache wraps model in a CachedModel when size is positive and returns
// it unchanged otherwise.
func WithCache(model Model, size int, ttl time.Duration) Model {
	if size <= 0 {
		return model
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return NewCachedModel(model, size, ttl)
}
