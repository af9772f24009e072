package feed

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/driftlab/skyfeed/internal/db"
	"github.com/driftlab/skyfeed/internal/models"
)

// snapshotPageCap bounds a single page served from a snapshot.
const snapshotPageCap = 30

// SnapshotStore loads the matching posts for a snapshot refresh.
type SnapshotStore interface {
	ScanForSnapshot(ctx context.Context, filter db.PostFilter, limit int) ([]models.Post, error)
}

type snapshotItem struct {
	id  int64
	uri string
}

// Snapshot serves pages from an in-memory copy of the feed rebuilt on a
// timer. The snapshot is replaced by an atomic pointer swap, never
// cleared in place, so concurrent readers always see a complete list.
// Writes between refreshes are invisible until the next refresh.
type Snapshot struct {
	store  SnapshotStore
	filter db.PostFilter
	size   int
	items  atomic.Pointer[[]snapshotItem]
}

// NewSnapshot creates a snapshot-cache feed. The snapshot is empty until
// the first Refresh.
func NewSnapshot(store SnapshotStore, filter db.PostFilter, size int) *Snapshot {
	return &Snapshot{store: store, filter: filter, size: size}
}

// RequiresAuth reports that snapshot feeds are public.
func (f *Snapshot) RequiresAuth() bool {
	return false
}

// Refresh rebuilds the snapshot off to the side and swaps it in.
func (f *Snapshot) Refresh(ctx context.Context) error {
	posts, err := f.store.ScanForSnapshot(ctx, f.filter, f.size)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	items := make([]snapshotItem, len(posts))
	for i, p := range posts {
		items[i] = snapshotItem{id: p.ID, uri: p.URI}
	}
	f.items.Store(&items)
	return nil
}

// Handle paginates against the current snapshot. The cursor is the id of
// the last returned item; a linear scan locates it, which is acceptable
// for the bounded snapshot size.
func (f *Snapshot) Handle(ctx context.Context, req Request) (Page, error) {
	ptr := f.items.Load()
	if ptr == nil {
		return Page{Items: []string{}}, nil
	}
	items := *ptr

	start := 0
	if lastID, ok := decodeIDCursor(req.Cursor); ok {
		for i, item := range items {
			if item.id == lastID {
				start = i + 1
				break
			}
		}
	}

	limit := req.Limit
	if limit > snapshotPageCap {
		limit = snapshotPageCap
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	page := Page{Items: make([]string, 0, end-start)}
	for _, item := range items[start:end] {
		page.Items = append(page.Items, item.uri)
	}
	if end > start && end < len(items) {
		page.Cursor = encodeIDCursor(items[end-1].id)
	}
	return page, nil
}
