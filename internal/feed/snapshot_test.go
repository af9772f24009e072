package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftlab/skyfeed/internal/db"
	"github.com/driftlab/skyfeed/internal/models"
)

type fakeSnapshotStore struct {
	posts []models.Post
	err   error
}

func (s *fakeSnapshotStore) ScanForSnapshot(ctx context.Context, filter db.PostFilter, limit int) ([]models.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.posts) {
		return s.posts[:limit], nil
	}
	return s.posts, nil
}

func snapshotPosts(n int) []models.Post {
	posts := make([]models.Post, n)
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := range posts {
		posts[i] = models.Post{
			ID:        int64(n - i),
			URI:       "at://did:example:a/app.bsky.feed.post/" + string(rune('a'+i)),
			IndexedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return posts
}

func TestSnapshot_EmptyBeforeFirstRefresh(t *testing.T) {
	f := NewSnapshot(&fakeSnapshotStore{posts: snapshotPosts(5)}, db.PostFilter{}, 100)

	page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 10})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != 0 || page.Cursor != "" {
		t.Errorf("unrefreshed snapshot should serve an empty page, got %v", page)
	}
}

func TestSnapshot_ServesRefreshedContent(t *testing.T) {
	posts := snapshotPosts(5)
	f := NewSnapshot(&fakeSnapshotStore{posts: posts}, db.PostFilter{}, 100)

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 10})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("Handle() returned %d items, want 5", len(page.Items))
	}
	if page.Items[0] != posts[0].URI {
		t.Errorf("Handle() first item = %s, want %s", page.Items[0], posts[0].URI)
	}
	if page.Cursor != "" {
		t.Errorf("full snapshot in one page should carry no cursor, got %q", page.Cursor)
	}
}

func TestSnapshot_PageCap(t *testing.T) {
	f := NewSnapshot(&fakeSnapshotStore{posts: snapshotPosts(40)}, db.PostFilter{}, 100)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 100})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != snapshotPageCap {
		t.Errorf("page should be capped at %d items, got %d", snapshotPageCap, len(page.Items))
	}
	if page.Cursor == "" {
		t.Error("capped page with remaining items should carry a cursor")
	}
}

func TestSnapshot_CursorPagination(t *testing.T) {
	posts := snapshotPosts(7)
	f := NewSnapshot(&fakeSnapshotStore{posts: posts}, db.PostFilter{}, 100)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var got []string
	cursor := ""
	for {
		page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		got = append(got, page.Items...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
		if len(got) > len(posts) {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(got) != len(posts) {
		t.Fatalf("pagination returned %d items, want %d", len(got), len(posts))
	}
	for i, uri := range got {
		if uri != posts[i].URI {
			t.Errorf("item %d = %s, want %s", i, uri, posts[i].URI)
		}
	}
}

func TestSnapshot_StaleCursorAfterSwapRestartsFromTop(t *testing.T) {
	store := &fakeSnapshotStore{posts: snapshotPosts(6)}
	f := NewSnapshot(store, db.PostFilter{}, 100)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 3})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Replace the snapshot with content that no longer contains the
	// cursor position.
	store.posts = []models.Post{
		{ID: 100, URI: "at://did:example:b/app.bsky.feed.post/z"},
	}
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	next, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 3, Cursor: page.Cursor})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(next.Items) != 1 || next.Items[0] != "at://did:example:b/app.bsky.feed.post/z" {
		t.Errorf("stale cursor should restart from the new snapshot top, got %v", next.Items)
	}
}

func TestSnapshot_RefreshErrorKeepsPreviousState(t *testing.T) {
	store := &fakeSnapshotStore{posts: snapshotPosts(3)}
	f := NewSnapshot(store, db.PostFilter{}, 100)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	store.err = errors.New("connection refused")
	if err := f.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should report store errors")
	}

	page, err := f.Handle(context.Background(), Request{Feed: "spotlight", Limit: 10})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != 3 {
		t.Errorf("failed refresh should leave the previous snapshot serving, got %d items", len(page.Items))
	}
}
