package models

// SubscriptionState holds the last-applied event stream cursor for an
// upstream source, read on reconnect to resume without reprocessing.
type SubscriptionState struct {
	Service string `gorm:"primaryKey;type:varchar(255);column:service"`
	Cursor  int64  `gorm:"not null;default:0;column:cursor"`
}

// TableName specifies the table name for SubscriptionState
func (SubscriptionState) TableName() string {
	return "subscription_state"
}
