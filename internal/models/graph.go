package models

import "time"

// Block represents a block edge from an actor to a subject account.
type Block struct {
	RKey      string    `gorm:"primaryKey;type:varchar(255);column:rkey"`
	Actor     string    `gorm:"type:varchar(255);not null;index;column:actor"`
	Subject   string    `gorm:"type:varchar(255);not null;index;column:subject"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at"`
}

// TableName specifies the table name for Block
func (Block) TableName() string {
	return "blocks"
}

// Follow represents a follow edge from an actor to a subject account.
type Follow struct {
	RKey      string    `gorm:"primaryKey;type:varchar(255);column:rkey"`
	Actor     string    `gorm:"type:varchar(255);not null;index;column:actor"`
	Subject   string    `gorm:"type:varchar(255);not null;index;column:subject"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "follows"
}
