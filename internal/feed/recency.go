package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/driftlab/skyfeed/internal/db"
	"github.com/driftlab/skyfeed/internal/models"
)

// RecencyStore is the store scan a recency feed paginates over.
type RecencyStore interface {
	ScanRecent(ctx context.Context, filter db.PostFilter, beforeTime time.Time, beforeID int64, limit int) ([]models.Post, error)
}

// Recency serves posts matching a static predicate in reverse
// chronological order with keyset pagination over (indexed_at, id).
type Recency struct {
	store  RecencyStore
	filter db.PostFilter
}

// NewRecency creates a recency filter feed
func NewRecency(store RecencyStore, filter db.PostFilter) *Recency {
	return &Recency{store: store, filter: filter}
}

// RequiresAuth reports that recency feeds are public.
func (f *Recency) RequiresAuth() bool {
	return false
}

// Handle returns one page of the feed.
func (f *Recency) Handle(ctx context.Context, req Request) (Page, error) {
	var beforeTime time.Time
	var beforeID int64
	if t, id, ok := decodeTimeCursor(req.Cursor); ok {
		beforeTime = t
		beforeID = id
	}

	posts, err := f.store.ScanRecent(ctx, f.filter, beforeTime, beforeID, req.Limit)
	if err != nil {
		return Page{}, fmt.Errorf("scan recent posts: %w", err)
	}

	page := Page{Items: make([]string, len(posts))}
	for i, p := range posts {
		page.Items[i] = p.URI
	}
	if len(posts) == req.Limit {
		last := posts[len(posts)-1]
		page.Cursor = encodeTimeCursor(last.IndexedAt, last.ID)
	}
	return page, nil
}
