package feed

import (
	"testing"
	"time"
)

func TestTimeCursorRoundTrip(t *testing.T) {
	indexed := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	cursor := encodeTimeCursor(indexed, 42)

	gotTime, gotID, ok := decodeTimeCursor(cursor)
	if !ok {
		t.Fatal("decodeTimeCursor() should accept its own encoding")
	}
	if !gotTime.Equal(indexed) {
		t.Errorf("decodeTimeCursor() time = %v, want %v", gotTime, indexed)
	}
	if gotID != 42 {
		t.Errorf("decodeTimeCursor() id = %d, want 42", gotID)
	}
}

func TestScoreCursorRoundTrip(t *testing.T) {
	cursor := encodeScoreCursor(0.12345678901234567, 99)

	score, id, ok := decodeScoreCursor(cursor)
	if !ok {
		t.Fatal("decodeScoreCursor() should accept its own encoding")
	}
	if score != 0.12345678901234567 {
		t.Errorf("decodeScoreCursor() score = %v, want exact round-trip", score)
	}
	if id != 99 {
		t.Errorf("decodeScoreCursor() id = %d, want 99", id)
	}
}

func TestIDCursorRoundTrip(t *testing.T) {
	id, ok := decodeIDCursor(encodeIDCursor(7))
	if !ok || id != 7 {
		t.Errorf("decodeIDCursor() = (%d, %v), want (7, true)", id, ok)
	}
}

func TestMalformedCursorsTreatedAsAbsent(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "empty", cursor: ""},
		{name: "not base64", cursor: "not/base64!!"},
		{name: "plain text", cursor: "hello world"},
		{name: "wrong part count", cursor: encodeCursor("123")},
		{name: "too many parts", cursor: encodeCursor("1", "2", "3")},
		{name: "non-numeric time", cursor: encodeCursor("abc", "1")},
		{name: "non-numeric id", cursor: encodeCursor("123", "xyz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := decodeTimeCursor(tt.cursor); ok {
				t.Errorf("decodeTimeCursor(%q) should reject malformed cursor", tt.cursor)
			}
			if _, _, ok := decodeScoreCursor(tt.cursor); ok {
				t.Errorf("decodeScoreCursor(%q) should reject malformed cursor", tt.cursor)
			}
		})
	}
}

func TestTimeCursorPreservesMicrosecondOrder(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Microsecond)
	earlier := encodeTimeCursor(base, 1)
	later := encodeTimeCursor(base.Add(time.Microsecond), 1)

	t1, _, _ := decodeTimeCursor(earlier)
	t2, _, _ := decodeTimeCursor(later)
	if !t1.Before(t2) {
		t.Errorf("cursor encoding should preserve microsecond ordering, got %v >= %v", t1, t2)
	}
}
