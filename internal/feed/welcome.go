package feed

import (
	"context"
	"sync"
	"time"
)

// Welcome serves fixed content that differs between a requester's first
// visit and repeat visits. It requires a verified requester identity and
// keeps per-identity last-seen state in memory with TTL eviction.
type Welcome struct {
	firstItems  []string
	repeatItems []string
	ttl         time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	now func() time.Time
}

// NewWelcome creates a per-identity stateful feed
func NewWelcome(firstItems, repeatItems []string, ttl time.Duration) *Welcome {
	return &Welcome{
		firstItems:  firstItems,
		repeatItems: repeatItems,
		ttl:         ttl,
		seen:        make(map[string]time.Time),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequiresAuth reports that this feed needs a verified requester.
func (f *Welcome) RequiresAuth() bool {
	return true
}

// Handle returns the first-visit content for identities not seen within
// the TTL window, and the repeat content otherwise. The feed is a single
// fixed page; no cursor is issued.
func (f *Welcome) Handle(ctx context.Context, req Request) (Page, error) {
	if req.Viewer == "" {
		return Page{}, ErrAuthRequired
	}

	now := f.now()

	f.mu.Lock()
	_, returning := f.seen[req.Viewer]
	f.seen[req.Viewer] = now
	f.mu.Unlock()

	items := f.firstItems
	if returning {
		items = f.repeatItems
	}
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}

	page := Page{Items: make([]string, len(items))}
	copy(page.Items, items)
	return page, nil
}

// Sweep evicts identities not seen within the TTL. Evicted requesters
// are treated as first-time visitors again.
func (f *Welcome) Sweep() int {
	cutoff := f.now().Add(-f.ttl)

	f.mu.Lock()
	defer f.mu.Unlock()
	evicted := 0
	for did, last := range f.seen {
		if last.Before(cutoff) {
			delete(f.seen, did)
			evicted++
		}
	}
	return evicted
}

// RunSweeper evicts expired identities on every tick until the context
// is cancelled.
func (f *Welcome) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Sweep()
		}
	}
}
