package models

// GuestRequester is the requester key recorded for unauthenticated
// fetches.
const GuestRequester = "guest"

// FeedStats counts skeleton fetches per (feed, requester) pair.
type FeedStats struct {
	Feed       string `gorm:"primaryKey;type:varchar(255);column:feed"`
	Requester  string `gorm:"primaryKey;type:varchar(255);column:requester"`
	FetchCount int64  `gorm:"not null;default:0;column:fetch_count"`
}

// TableName specifies the table name for FeedStats
func (FeedStats) TableName() string {
	return "feed_stats"
}
