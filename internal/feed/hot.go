package feed

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/driftlab/skyfeed/internal/models"
)

// adultLabels are the self-label values that exclude a post from
// decayed-score ranking.
var adultLabels = map[string]struct{}{
	"porn":          {},
	"nudity":        {},
	"sexual":        {},
	"graphic-media": {},
}

// HotStore supplies the bounded candidate set for decayed-score ranking.
type HotStore interface {
	TopByLikes(ctx context.Context, n int) ([]models.Post, error)
}

// Hot ranks a bounded candidate set by a time-decayed engagement score.
// Scores are derived, not persisted, so every request re-scores and
// re-sorts the candidates; the candidate bound caps the cost.
type Hot struct {
	store       HotStore
	gravity     float64
	candidates  int
	bannedTerms []string
	now         func() time.Time
}

// NewHot creates a decayed-score feed. bannedTerms are matched as
// case-insensitive substrings of post text.
func NewHot(store HotStore, gravity float64, candidates int, bannedTerms []string) *Hot {
	lowered := make([]string, 0, len(bannedTerms))
	for _, term := range bannedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			lowered = append(lowered, term)
		}
	}
	return &Hot{
		store:       store,
		gravity:     gravity,
		candidates:  candidates,
		bannedTerms: lowered,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequiresAuth reports that the hot feed is public.
func (f *Hot) RequiresAuth() bool {
	return false
}

type scored struct {
	uri   string
	id    int64
	score float64
}

// Handle re-scores the candidate set and returns the page below the
// cursor position.
func (f *Hot) Handle(ctx context.Context, req Request) (Page, error) {
	posts, err := f.store.TopByLikes(ctx, f.candidates)
	if err != nil {
		return Page{}, fmt.Errorf("fetch hot candidates: %w", err)
	}

	now := f.now()
	ranked := make([]scored, 0, len(posts))
	for i := range posts {
		score := f.Score(&posts[i], now)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{uri: posts[i].URI, id: posts[i].ID, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id > ranked[j].id
	})

	if cursorScore, cursorID, ok := decodeScoreCursor(req.Cursor); ok {
		cut := sort.Search(len(ranked), func(i int) bool {
			if ranked[i].score != cursorScore {
				return ranked[i].score < cursorScore
			}
			return ranked[i].id < cursorID
		})
		ranked = ranked[cut:]
	}

	n := req.Limit
	if n > len(ranked) {
		n = len(ranked)
	}
	page := Page{Items: make([]string, n)}
	for i := 0; i < n; i++ {
		page.Items[i] = ranked[i].uri
	}
	if n > 0 && n < len(ranked) {
		last := ranked[n-1]
		page.Cursor = encodeScoreCursor(last.score, last.id)
	}
	return page, nil
}

// Score computes the decayed engagement score of a post at the given
// time. A zero score excludes the post from the feed; each zeroing rule
// is independently sufficient.
func (f *Hot) Score(post *models.Post, now time.Time) float64 {
	if post.Text == "" {
		return 0
	}
	if post.HasImage && post.AltText == "" {
		return 0
	}
	text := strings.ToLower(post.Text)
	for _, term := range f.bannedTerms {
		if strings.Contains(text, term) {
			return 0
		}
	}
	for _, label := range strings.Split(post.Labels, ",") {
		if _, ok := adultLabels[label]; ok {
			return 0
		}
	}

	ageHours := now.Sub(post.IndexedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	score := float64(post.Likes+1) / math.Pow(ageHours+2, f.gravity)

	replies := post.Replies
	if replies < 1 {
		replies = 1
	}
	controversy := math.Log(float64(replies)) / 100

	return score + controversy
}
