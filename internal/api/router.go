package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/internal/feed"
	"github.com/driftlab/skyfeed/internal/models"
	"github.com/driftlab/skyfeed/internal/stats"
	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
	"github.com/driftlab/skyfeed/pkg/telemetry"
)

// Router sets up the feed generator XRPC routes
type Router struct {
	cfg      *config.ServerConfig
	engine   *feed.Engine
	recorder *stats.Recorder
	verifier Verifier
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(cfg *config.ServerConfig, engine *feed.Engine, recorder *stats.Recorder, verifier Verifier) *Router {
	return &Router{
		cfg:      cfg,
		engine:   engine,
		recorder: recorder,
		verifier: verifier,
		logger:   logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/did.json", r.didDocumentHandler)
	engine.GET("/xrpc/app.bsky.feed.describeFeedGenerator", r.describeFeedGenerator)
	engine.GET("/xrpc/app.bsky.feed.getFeedSkeleton", r.getFeedSkeleton)
}

func (r *Router) serviceDID() string {
	return "did:web:" + r.cfg.Hostname
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "skyfeed-api",
	})
}

// didDocumentHandler serves the did:web document for this generator
func (r *Router) didDocumentHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       r.serviceDID(),
		"service": []gin.H{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": fmt.Sprintf("https://%s", r.cfg.Hostname),
			},
		},
	})
}

// describeFeedGenerator lists the feeds served by this generator
func (r *Router) describeFeedGenerator(c *gin.Context) {
	uris := r.engine.URIs()
	feeds := make([]gin.H, 0, len(uris))
	for _, uri := range uris {
		feeds = append(feeds, gin.H{"uri": uri})
	}

	c.JSON(http.StatusOK, gin.H{
		"did":   r.serviceDID(),
		"feeds": feeds,
	})
}

// getFeedSkeleton serves one page of a ranked feed
func (r *Router) getFeedSkeleton(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "api.getFeedSkeleton")
	defer span.End()

	feedURI := c.Query("feed")
	if feedURI == "" {
		r.sendError(c, http.StatusBadRequest, "InvalidRequest", "feed parameter is required")
		return
	}

	// Out-of-range limits are clamped into [1, MaxLimit] by the engine;
	// only a non-numeric value is a validation error.
	limit := feed.DefaultLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			r.sendError(c, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return
		}
		limit = parsed
	}

	viewer := r.resolveViewer(c)

	page, err := r.engine.GetFeedSkeleton(ctx, feed.Request{
		Feed:   feedURI,
		Limit:  limit,
		Cursor: c.Query("cursor"),
		Viewer: viewer,
	})
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrUnknownFeed):
			r.sendError(c, http.StatusBadRequest, "UnknownFeed", "feed is not served by this generator")
		case errors.Is(err, feed.ErrAuthRequired):
			r.sendError(c, http.StatusUnauthorized, "AuthRequired", "this feed requires a verified requester")
		default:
			// The engine degrades internal failures itself; anything
			// else still becomes an empty feed for the client.
			r.logger.Error("Unexpected feed engine error",
				zap.String("feed", feedURI),
				zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"feed": []gin.H{}})
		}
		return
	}

	items := make([]gin.H, len(page.Items))
	for i, uri := range page.Items {
		items[i] = gin.H{"post": uri}
	}
	resp := gin.H{"feed": items}
	if page.Cursor != "" {
		resp["cursor"] = page.Cursor
	}
	c.JSON(http.StatusOK, resp)

	requester := viewer
	if requester == "" {
		requester = models.GuestRequester
	}
	r.recorder.Record(feedURI, requester)
}

// resolveViewer extracts and verifies the bearer credential, returning
// an empty string for guests and unverifiable tokens.
func (r *Router) resolveViewer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return ""
	}

	viewer, err := r.verifier.Verify(c.Request.Context(), token, "app.bsky.feed.getFeedSkeleton")
	if err != nil {
		r.logger.Debug("Requester verification failed", zap.Error(err))
		return ""
	}
	return viewer
}

func (r *Router) sendError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error":   errType,
		"message": message,
	})
}
