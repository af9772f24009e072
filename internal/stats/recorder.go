package stats

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/pkg/logging"
)

// Store persists fetch counters.
type Store interface {
	IncrementFetchCount(ctx context.Context, feed, requester string) error
}

type record struct {
	feed      string
	requester string
}

// Recorder writes per-(feed, requester) fetch counters off the request
// path. Records are best-effort: a full buffer or a failed write drops
// the record after logging, and nothing is ever retried or surfaced to
// the caller.
type Recorder struct {
	store  Store
	ch     chan record
	logger *zap.Logger
}

// NewRecorder creates a stats recorder with the given buffer size
func NewRecorder(store Store, buffer int) *Recorder {
	return &Recorder{
		store:  store,
		ch:     make(chan record, buffer),
		logger: logging.WithComponent("stats"),
	}
}

// Run drains the buffer until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-r.ch:
			if err := r.store.IncrementFetchCount(ctx, rec.feed, rec.requester); err != nil {
				r.logger.Warn("Failed to record feed fetch",
					zap.String("feed", rec.feed),
					zap.String("requester", rec.requester),
					zap.Error(err))
			}
		}
	}
}

// Record enqueues a fetch counter update without blocking the caller.
func (r *Recorder) Record(feed, requester string) {
	select {
	case r.ch <- record{feed: feed, requester: requester}:
	default:
		r.logger.Warn("Stats buffer full, dropping record",
			zap.String("feed", feed))
	}
}
