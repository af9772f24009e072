package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
)

// PostStore deletes stale posts.
type PostStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GraphStore deletes stale block/follow edges.
type GraphStore interface {
	DeleteEdgesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper periodically deletes rows past their configured TTLs. Sweeps
// are unconditional range deletes; readers tolerate rows disappearing
// between queries.
type Reaper struct {
	cfg    *config.ReaperConfig
	posts  PostStore
	graph  GraphStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a new retention reaper
func New(cfg *config.ReaperConfig, posts PostStore, graph GraphStore) *Reaper {
	return &Reaper{
		cfg:    cfg,
		posts:  posts,
		graph:  graph,
		logger: logging.WithComponent("reaper"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately, then on every tick until the context is
// cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one retention pass. Failures are logged and retried on
// the next tick.
func (r *Reaper) Sweep(ctx context.Context) {
	now := r.now()

	postsDeleted, err := r.posts.DeleteOlderThan(ctx, now.Add(-r.cfg.PostTTL))
	if err != nil {
		r.logger.Error("Post retention sweep failed", zap.Error(err))
	}

	edgesDeleted, err := r.graph.DeleteEdgesOlderThan(ctx, now.Add(-r.cfg.EdgeTTL))
	if err != nil {
		r.logger.Error("Edge retention sweep failed", zap.Error(err))
	}

	if postsDeleted > 0 || edgesDeleted > 0 {
		r.logger.Info("Retention sweep complete",
			zap.Int64("posts_deleted", postsDeleted),
			zap.Int64("edges_deleted", edgesDeleted))
	}
}
