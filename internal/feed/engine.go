package feed

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/internal/cache"
	"github.com/driftlab/skyfeed/pkg/logging"
)

// cachedPageTTL bounds the staleness of cached skeleton pages.
const cachedPageTTL = 30 * time.Second

// Engine is the serving boundary in front of the registry. It validates
// the request, bounds the ranking call with a deadline, consults the
// optional response cache, and degrades internal failures to an empty
// page so clients stay functional.
type Engine struct {
	registry *Registry
	cache    *cache.Cache
	timeout  time.Duration
	logger   *zap.Logger
}

// NewEngine creates a feed engine. redisCache may be nil.
func NewEngine(registry *Registry, redisCache *cache.Cache, timeout time.Duration) *Engine {
	return &Engine{
		registry: registry,
		cache:    redisCache,
		timeout:  timeout,
		logger:   logging.WithComponent("feed-engine"),
	}
}

// URIs returns the uris of all registered feeds.
func (e *Engine) URIs() []string {
	return e.registry.URIs()
}

// GetFeedSkeleton serves one page of a feed. It returns ErrUnknownFeed
// and ErrAuthRequired as validation errors; any other failure inside the
// algorithm yields an empty page and a nil error.
func (e *Engine) GetFeedSkeleton(ctx context.Context, req Request) (Page, error) {
	algo, ok := e.registry.Get(req.Feed)
	if !ok {
		return Page{}, ErrUnknownFeed
	}
	if algo.RequiresAuth() && req.Viewer == "" {
		return Page{}, ErrAuthRequired
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	// Viewer-dependent feeds are never shared through the cache.
	cacheable := e.cache != nil && !algo.RequiresAuth()
	cacheKey := ""
	if cacheable {
		cacheKey = cache.HashKey("getFeedSkeleton", req.Feed, strconv.Itoa(req.Limit), req.Cursor)
		var cached Page
		if err := e.cache.GetJSON(cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	handleCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page, err := algo.Handle(handleCtx, req)
	if err != nil {
		e.logger.Error("Feed handler failed, serving empty feed",
			zap.String("feed", req.Feed),
			zap.Int("limit", req.Limit),
			zap.String("cursor", req.Cursor),
			zap.Error(err))
		return Page{Items: []string{}}, nil
	}
	if page.Items == nil {
		page.Items = []string{}
	}

	if cacheable {
		if err := e.cache.SetJSON(cacheKey, page, cachedPageTTL); err != nil && err != cache.ErrCacheDisabled {
			e.logger.Warn("Failed to cache feed page", zap.Error(err))
		}
	}

	return page, nil
}
