package feed

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Cursors are text-safe encodings of the composite sort key of the last
// returned item. Decoding never fails outward: any malformed cursor is
// treated as "no cursor" so clients restart from the top of the feed.

const cursorSep = "::"

func encodeCursor(parts ...string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, cursorSep)))
}

func decodeCursor(cursor string, want int) ([]string, bool) {
	if cursor == "" {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, false
	}
	parts := strings.Split(string(raw), cursorSep)
	if len(parts) != want {
		return nil, false
	}
	return parts, true
}

// encodeTimeCursor encodes the (indexed-at, id) keyset of a recency feed.
// Both keys are always encoded so rows sharing a timestamp paginate
// without skips or repeats.
func encodeTimeCursor(t time.Time, id int64) string {
	return encodeCursor(
		strconv.FormatInt(t.UnixMicro(), 10),
		strconv.FormatInt(id, 10),
	)
}

func decodeTimeCursor(cursor string) (time.Time, int64, bool) {
	parts, ok := decodeCursor(cursor, 2)
	if !ok {
		return time.Time{}, 0, false
	}
	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, false
	}
	return time.UnixMicro(micros).UTC(), id, true
}

// encodeScoreCursor encodes the (score, id) position within a decayed-
// score ranking.
func encodeScoreCursor(score float64, id int64) string {
	return encodeCursor(
		strconv.FormatFloat(score, 'g', -1, 64),
		strconv.FormatInt(id, 10),
	)
}

func decodeScoreCursor(cursor string) (float64, int64, bool) {
	parts, ok := decodeCursor(cursor, 2)
	if !ok {
		return 0, 0, false
	}
	score, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return score, id, true
}

// encodeIDCursor encodes the last-seen row id of a snapshot feed.
func encodeIDCursor(id int64) string {
	return encodeCursor(strconv.FormatInt(id, 10))
}

func decodeIDCursor(cursor string) (int64, bool) {
	parts, ok := decodeCursor(cursor, 1)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
