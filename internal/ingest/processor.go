package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/internal/firehose"
	"github.com/driftlab/skyfeed/internal/models"
	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
)

// PostStore is the slice of the post repository the processor writes to.
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	DeleteByURI(ctx context.Context, uri string) error
	IncrementLikes(ctx context.Context, uri string, delta int64) (int64, error)
	IncrementReplies(ctx context.Context, uri string, delta int64) (int64, error)
}

// GraphStore is the slice of the graph repository the processor writes to.
type GraphStore interface {
	CreateBlock(ctx context.Context, block *models.Block) error
	DeleteBlock(ctx context.Context, rkey string) error
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, rkey string) error
}

// Processor applies decoded commit events to the store. Processing is
// sequential per connection; event order within the stream is preserved.
type Processor struct {
	cfg    *config.IngestConfig
	posts  PostStore
	graph  GraphStore
	logger *zap.Logger
	now    func() time.Time
}

// NewProcessor creates a new event processor
func NewProcessor(cfg *config.IngestConfig, posts PostStore, graph GraphStore) *Processor {
	return &Processor{
		cfg:    cfg,
		posts:  posts,
		graph:  graph,
		logger: logging.WithComponent("ingest"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent applies a single commit event. Malformed payloads are
// logged with event context and skipped; store errors are returned so
// the stream layer can decide whether the store is down.
func (p *Processor) HandleEvent(ctx context.Context, event *firehose.CommitEvent) error {
	switch event.Collection {
	case firehose.CollectionPost:
		return p.handlePost(ctx, event)
	case firehose.CollectionLike:
		return p.handleEngagement(ctx, event, p.posts.IncrementLikes)
	case firehose.CollectionRepost:
		return p.handleEngagement(ctx, event, p.posts.IncrementReplies)
	case firehose.CollectionBlock:
		return p.handleBlock(ctx, event)
	case firehose.CollectionFollow:
		return p.handleFollow(ctx, event)
	default:
		return nil
	}
}

func (p *Processor) handlePost(ctx context.Context, event *firehose.CommitEvent) error {
	switch event.Operation {
	case firehose.OpCreate:
		var rec postRecord
		if err := json.Unmarshal(event.Record, &rec); err != nil {
			p.logEventError(event, "malformed post record", err)
			return nil
		}

		// Indexing policy: only top-level posts with non-empty text.
		if p.cfg.TopLevelOnly && (rec.Reply != nil || rec.Text == "") {
			return nil
		}

		post := normalizePost(event, &rec, p.now())
		if err := p.posts.Create(ctx, post); err != nil {
			return fmt.Errorf("create post %s: %w", post.URI, err)
		}
		return nil

	case firehose.OpDelete:
		if err := p.posts.DeleteByURI(ctx, event.URI()); err != nil {
			return fmt.Errorf("delete post %s: %w", event.URI(), err)
		}
		return nil

	default:
		// Post updates are not indexed; the stored row keeps the
		// originally ingested content.
		return nil
	}
}

// handleEngagement resolves the liked/reposted post and bumps its counter
// with a single relative update. Engagement on posts we never indexed is
// dropped without creating a placeholder row.
func (p *Processor) handleEngagement(ctx context.Context, event *firehose.CommitEvent, increment func(context.Context, string, int64) (int64, error)) error {
	if event.Operation != firehose.OpCreate {
		return nil
	}

	var rec subjectRecord
	if err := json.Unmarshal(event.Record, &rec); err != nil {
		p.logEventError(event, "malformed engagement record", err)
		return nil
	}
	if rec.Subject.URI == "" {
		p.logEventError(event, "engagement record without subject", nil)
		return nil
	}

	affected, err := increment(ctx, rec.Subject.URI, 1)
	if err != nil {
		return fmt.Errorf("increment counter for %s: %w", rec.Subject.URI, err)
	}
	if affected == 0 {
		p.logger.Debug("Engagement on unindexed post dropped",
			zap.String("subject", rec.Subject.URI))
	}
	return nil
}

func (p *Processor) handleBlock(ctx context.Context, event *firehose.CommitEvent) error {
	switch event.Operation {
	case firehose.OpCreate:
		var rec graphRecord
		if err := json.Unmarshal(event.Record, &rec); err != nil {
			p.logEventError(event, "malformed block record", err)
			return nil
		}
		block := &models.Block{
			RKey:      event.RKey,
			Actor:     event.Actor,
			Subject:   rec.Subject,
			CreatedAt: parseCreatedAt(rec.CreatedAt, p.now()),
		}
		if err := p.graph.CreateBlock(ctx, block); err != nil {
			return fmt.Errorf("create block %s: %w", event.RKey, err)
		}
		return nil

	case firehose.OpDelete:
		if err := p.graph.DeleteBlock(ctx, event.RKey); err != nil {
			return fmt.Errorf("delete block %s: %w", event.RKey, err)
		}
		return nil

	default:
		return nil
	}
}

func (p *Processor) handleFollow(ctx context.Context, event *firehose.CommitEvent) error {
	switch event.Operation {
	case firehose.OpCreate:
		var rec graphRecord
		if err := json.Unmarshal(event.Record, &rec); err != nil {
			p.logEventError(event, "malformed follow record", err)
			return nil
		}
		follow := &models.Follow{
			RKey:      event.RKey,
			Actor:     event.Actor,
			Subject:   rec.Subject,
			CreatedAt: parseCreatedAt(rec.CreatedAt, p.now()),
		}
		if err := p.graph.CreateFollow(ctx, follow); err != nil {
			return fmt.Errorf("create follow %s: %w", event.RKey, err)
		}
		return nil

	case firehose.OpDelete:
		if err := p.graph.DeleteFollow(ctx, event.RKey); err != nil {
			return fmt.Errorf("delete follow %s: %w", event.RKey, err)
		}
		return nil

	default:
		return nil
	}
}

func (p *Processor) logEventError(event *firehose.CommitEvent, msg string, err error) {
	p.logger.Error(msg,
		zap.String("collection", event.Collection),
		zap.String("operation", event.Operation),
		zap.String("actor", event.Actor),
		zap.String("rkey", event.RKey),
		zap.Error(err))
}
