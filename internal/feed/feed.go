package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/pkg/logging"
)

// Pagination bounds applied to every algorithm.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Validation errors surfaced to the caller. Everything else degrades to
// an empty page at the serving boundary.
var (
	ErrUnknownFeed  = errors.New("unknown feed")
	ErrAuthRequired = errors.New("auth required")
)

// Request carries the parameters of a single feed skeleton query.
type Request struct {
	// Feed is the at-uri of the feed generator record.
	Feed string
	// Limit is the page size; the engine normalizes it into
	// [1, MaxLimit] with DefaultLimit when unset.
	Limit int
	// Cursor is the opaque continuation token, empty for the first page.
	Cursor string
	// Viewer is the verified requester DID, empty for guests.
	Viewer string
}

// Page is one page of ranked post uris. An empty cursor signals
// end-of-feed.
type Page struct {
	Items  []string
	Cursor string
}

// Algorithm is a single ranking policy.
type Algorithm interface {
	Handle(ctx context.Context, req Request) (Page, error)
	RequiresAuth() bool
}

// Refresher is implemented by cache-backed algorithms whose state is
// rebuilt on a timer independent of request handling.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// GeneratorURI builds the at-uri of a feed generator record published
// under the given DID.
func GeneratorURI(publisherDID, rkey string) string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", publisherDID, rkey)
}

// Registry maps feed uris to their algorithms.
type Registry struct {
	algorithms map[string]Algorithm
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{algorithms: make(map[string]Algorithm)}
}

// Register binds a feed uri to an algorithm.
func (r *Registry) Register(uri string, algo Algorithm) {
	r.algorithms[uri] = algo
}

// Get returns the algorithm registered for a feed uri.
func (r *Registry) Get(uri string) (Algorithm, bool) {
	algo, ok := r.algorithms[uri]
	return algo, ok
}

// URIs returns all registered feed uris in stable order.
func (r *Registry) URIs() []string {
	uris := make([]string, 0, len(r.algorithms))
	for uri := range r.algorithms {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Refreshers returns the registered algorithms that maintain refreshable
// state, keyed by feed uri.
func (r *Registry) Refreshers() map[string]Refresher {
	out := make(map[string]Refresher)
	for uri, algo := range r.algorithms {
		if ref, ok := algo.(Refresher); ok {
			out[uri] = ref
		}
	}
	return out
}

// RunRefreshLoop refreshes once immediately and then on every tick until
// the context is cancelled. Refresh failures are logged and retried on
// the next tick; the previous state stays visible to readers.
func RunRefreshLoop(ctx context.Context, name string, r Refresher, interval time.Duration) {
	logger := logging.WithComponent("feed-refresh").With(zap.String("feed", name))

	refresh := func() {
		if err := r.Refresh(ctx); err != nil {
			logger.Error("Refresh failed", zap.Error(err))
		}
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
