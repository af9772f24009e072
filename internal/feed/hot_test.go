package feed

import (
	"context"
	"testing"
	"time"

	"github.com/driftlab/skyfeed/internal/models"
)

type fakeHotStore struct {
	posts []models.Post
	err   error
}

func (s *fakeHotStore) TopByLikes(ctx context.Context, n int) ([]models.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	if n < len(s.posts) {
		return s.posts[:n], nil
	}
	return s.posts, nil
}

func newTestHot(store HotStore, now time.Time, bannedTerms ...string) *Hot {
	h := NewHot(store, 1.8, 1000, bannedTerms)
	h.now = func() time.Time { return now }
	return h
}

func TestHotScore_DecayBeatsRawLikes(t *testing.T) {
	now := time.Now().UTC()

	// A well-liked post from hours ago still outranks a fresh post with a
	// handful of likes at this gravity.
	older := models.Post{ID: 1, URI: "at://a/app.bsky.feed.post/1", Text: "older", Likes: 100, IndexedAt: now.Add(-5 * time.Hour)}
	fresh := models.Post{ID: 2, URI: "at://b/app.bsky.feed.post/2", Text: "fresh", Likes: 5, IndexedAt: now.Add(-5 * time.Minute)}

	hot := newTestHot(&fakeHotStore{posts: []models.Post{fresh, older}}, now)

	page, err := hot.Handle(context.Background(), Request{Feed: "hot", Limit: 10})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("Handle() returned %d items, want 2", len(page.Items))
	}
	if page.Items[0] != older.URI {
		t.Errorf("Handle() first item = %s, want %s", page.Items[0], older.URI)
	}
}

func TestHotScore_ZeroingRules(t *testing.T) {
	now := time.Now().UTC()
	hot := newTestHot(&fakeHotStore{}, now, "spamword")

	base := models.Post{ID: 1, Text: "a perfectly fine post", Likes: 10, IndexedAt: now.Add(-time.Hour)}

	tests := []struct {
		name   string
		mutate func(p *models.Post)
		zeroed bool
	}{
		{
			name:   "clean post scores",
			mutate: func(p *models.Post) {},
			zeroed: false,
		},
		{
			name:   "empty text",
			mutate: func(p *models.Post) { p.Text = "" },
			zeroed: true,
		},
		{
			name:   "image without alt text",
			mutate: func(p *models.Post) { p.HasImage = true },
			zeroed: true,
		},
		{
			name:   "image with alt text",
			mutate: func(p *models.Post) { p.HasImage = true; p.AltText = `["a dog"]` },
			zeroed: false,
		},
		{
			name:   "banned term case-insensitive",
			mutate: func(p *models.Post) { p.Text = "contains SpamWord here" },
			zeroed: true,
		},
		{
			name:   "adult self-label",
			mutate: func(p *models.Post) { p.Labels = "porn" },
			zeroed: true,
		},
		{
			name:   "adult label among others",
			mutate: func(p *models.Post) { p.Labels = "something,graphic-media" },
			zeroed: true,
		},
		{
			name:   "benign label",
			mutate: func(p *models.Post) { p.Labels = "spoiler" },
			zeroed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := base
			tt.mutate(&post)
			score := hot.Score(&post, now)
			if tt.zeroed && score != 0 {
				t.Errorf("Score() = %v, want 0", score)
			}
			if !tt.zeroed && score <= 0 {
				t.Errorf("Score() = %v, want > 0", score)
			}
		})
	}
}

func TestHotScore_FutureTimestampClamped(t *testing.T) {
	now := time.Now().UTC()
	hot := newTestHot(&fakeHotStore{}, now)

	post := models.Post{ID: 1, Text: "from the future", Likes: 10, IndexedAt: now.Add(time.Hour)}
	clamped := hot.Score(&post, now)

	post.IndexedAt = now
	atNow := hot.Score(&post, now)
	if clamped != atNow {
		t.Errorf("future timestamps should score as age zero, got %v want %v", clamped, atNow)
	}
}

func TestHot_CursorPagination(t *testing.T) {
	now := time.Now().UTC()

	posts := make([]models.Post, 10)
	for i := range posts {
		posts[i] = models.Post{
			ID:        int64(i + 1),
			URI:       "at://did:example:a/app.bsky.feed.post/" + string(rune('a'+i)),
			Text:      "post",
			Likes:     int64(100 - i*10),
			IndexedAt: now.Add(-time.Hour),
		}
	}
	hot := newTestHot(&fakeHotStore{posts: posts}, now)

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, err := hot.Handle(context.Background(), Request{Feed: "hot", Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		for _, uri := range page.Items {
			if seen[uri] {
				t.Fatalf("item %s returned twice across pages", uri)
			}
			seen[uri] = true
		}
		pages++
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(seen) != len(posts) {
		t.Errorf("pagination returned %d distinct items, want %d", len(seen), len(posts))
	}
}

func TestHot_MalformedCursorRestartsFromTop(t *testing.T) {
	now := time.Now().UTC()
	posts := []models.Post{
		{ID: 1, URI: "at://a/app.bsky.feed.post/1", Text: "top", Likes: 50, IndexedAt: now.Add(-time.Hour)},
		{ID: 2, URI: "at://a/app.bsky.feed.post/2", Text: "second", Likes: 10, IndexedAt: now.Add(-time.Hour)},
	}
	hot := newTestHot(&fakeHotStore{posts: posts}, now)

	page, err := hot.Handle(context.Background(), Request{Feed: "hot", Limit: 10, Cursor: "garbage!!"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(page.Items) != 2 || page.Items[0] != posts[0].URI {
		t.Errorf("malformed cursor should serve the first page, got %v", page.Items)
	}
}
