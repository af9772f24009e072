package firehose

import (
	"encoding/json"
	"fmt"
)

// Collection NSIDs consumed from the firehose.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
	CollectionBlock  = "app.bsky.graph.block"
	CollectionFollow = "app.bsky.graph.follow"
)

// Operations carried by commit events.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// CommitEvent is a single decoded commit from the event stream. The
// record payload is left raw; the ingest layer decodes it per collection.
type CommitEvent struct {
	// Actor is the DID of the repository the commit belongs to.
	Actor string
	// TimeUS is the stream sequence cursor of the event.
	TimeUS int64

	Collection string
	Operation  string
	RKey       string
	CID        string
	Record     json.RawMessage
}

// URI derives the global at-uri of the record the event targets.
func (e *CommitEvent) URI() string {
	return fmt.Sprintf("at://%s/%s/%s", e.Actor, e.Collection, e.RKey)
}

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream.
type jetstreamCommit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid"`
}

// parseEvent decodes a raw Jetstream message. Non-commit events (identity,
// account) decode to a nil CommitEvent with the cursor still populated.
func parseEvent(data []byte) (*CommitEvent, int64, error) {
	var raw jetstreamEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("unmarshal event: %w", err)
	}

	if raw.Kind != "commit" || raw.Commit == nil {
		return nil, raw.TimeUS, nil
	}

	return &CommitEvent{
		Actor:      raw.DID,
		TimeUS:     raw.TimeUS,
		Collection: raw.Commit.Collection,
		Operation:  raw.Commit.Operation,
		RKey:       raw.Commit.RKey,
		CID:        raw.Commit.CID,
		Record:     raw.Commit.Record,
	}, raw.TimeUS, nil
}
