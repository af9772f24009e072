package firehose

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/driftlab/skyfeed/pkg/config"
	"github.com/driftlab/skyfeed/pkg/logging"
)

const serviceName = "jetstream"

// Consecutive handler failures treated as a store outage. The connection
// is dropped so the reconnect/backoff cycle retries from the last
// persisted cursor; idempotent writes tolerate the replay.
const maxConsecutiveFailures = 10

// wantedCollections is the set of collection NSIDs requested from
// Jetstream.
var wantedCollections = []string{
	CollectionPost,
	CollectionLike,
	CollectionRepost,
	CollectionBlock,
	CollectionFollow,
}

// Handler consumes decoded commit events in stream order.
type Handler interface {
	HandleEvent(ctx context.Context, event *CommitEvent) error
}

// CursorStore persists the resume cursor between connections.
type CursorStore interface {
	GetCursor(ctx context.Context, service string) (int64, error)
	SaveCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber connects to the Jetstream firehose and feeds commit events
// to a handler, one connection at a time, preserving stream order.
type Subscriber struct {
	cfg     *config.FirehoseConfig
	handler Handler
	cursors CursorStore
	logger  *zap.Logger
}

// NewSubscriber creates a new firehose subscriber
func NewSubscriber(cfg *config.FirehoseConfig, handler Handler, cursors CursorStore) *Subscriber {
	return &Subscriber{
		cfg:     cfg,
		handler: handler,
		cursors: cursors,
		logger:  logging.WithComponent("firehose"),
	}
}

// Run connects to the firehose and processes events until the context is
// cancelled, reconnecting with a fixed delay on transient errors.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("Firehose connection error, reconnecting", zap.Error(err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.ReconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse firehose url: %w", err)
	}
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.cursors.GetCursor(ctx, serviceName)
	if err != nil {
		s.logger.Warn("Failed to load cursor, starting from live", zap.Error(err))
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}

	s.logger.Info("Connecting to firehose", zap.Int64("cursor", cursor))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	s.logger.Info("Connected to firehose")

	var (
		latestCursor        int64
		eventsReceived      int64
		commitsHandled      int64
		consecutiveFailures int
	)
	lastCursorSave := time.Now()
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, timeUS, err := parseEvent(message)
		if err != nil {
			s.logger.Error("Failed to parse event", zap.Error(err))
			continue
		}

		eventsReceived++
		if timeUS > 0 {
			latestCursor = timeUS
		}

		if event != nil {
			if err := s.handler.HandleEvent(ctx, event); err != nil {
				consecutiveFailures++
				s.logger.Error("Failed to handle event",
					zap.String("collection", event.Collection),
					zap.String("operation", event.Operation),
					zap.String("actor", event.Actor),
					zap.Error(err))
				if consecutiveFailures >= maxConsecutiveFailures {
					return fmt.Errorf("store unavailable after %d consecutive failures: %w", consecutiveFailures, err)
				}
			} else {
				consecutiveFailures = 0
				commitsHandled++
			}
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= 30*time.Second {
			s.logger.Info("Firehose stats",
				zap.Int64("events_received", eventsReceived),
				zap.Int64("commits_handled", commitsHandled))
			lastStatsLog = time.Now()
		}

		// Periodically persist the resume cursor. Events applied after
		// the last save are replayed on reconnect; writes are idempotent.
		if time.Since(lastCursorSave) >= s.cfg.CursorSaveInterval && latestCursor > 0 {
			if err := s.cursors.SaveCursor(ctx, serviceName, latestCursor); err != nil {
				s.logger.Error("Failed to save cursor", zap.Error(err))
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}
