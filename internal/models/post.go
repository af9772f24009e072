package models

import (
	"time"
)

// Post represents an indexed Bluesky post
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	URI       string    `gorm:"type:varchar(255);not null;uniqueIndex;column:uri"`
	CID       string    `gorm:"type:varchar(255);not null;column:cid"`
	Author    string    `gorm:"type:varchar(255);not null;index;column:author"`
	IndexedAt time.Time `gorm:"not null;index;column:indexed_at"`
	Text      string    `gorm:"type:text;column:text"`
	Langs     string    `gorm:"type:varchar(255);column:langs"`
	Likes     int64     `gorm:"not null;default:0;column:likes"`
	Replies   int64     `gorm:"not null;default:0;column:replies"`
	Labels    string    `gorm:"type:text;column:labels"`
	HasImage  bool      `gorm:"not null;default:false;column:has_image"`
	AltText   string    `gorm:"type:text;column:alt_text"`
	EmbedURL  string    `gorm:"type:text;column:embed_url"`
	Tags      string    `gorm:"type:text;column:tags"`
	Links     string    `gorm:"type:text;column:links"`
	RootURI   string    `gorm:"type:varchar(255);column:root_uri"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}
