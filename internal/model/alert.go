package model

import "time"

// Ledger notification types.
const (
	NotificationTypeLocation = "location"
)

// LedgerEntry gates repeat alerts for one (task, type) pair.
type LedgerEntry struct {
	TaskID            string    `json:"task_id" db:"task_id"`
	NotificationType  string    `json:"notification_type" db:"notification_type"`
	LastSentTime      time.Time `json:"last_sent_time" db:"last_sent_time"`
	NotificationCount int       `json:"notification_count" db:"notification_count"`
}

// Alert is a proximity alert waiting in the outbox for the client to poll.
type Alert struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	DistanceMeters int       `json:"distance"`
	LocationName   string    `json:"location_name"`
	Timestamp      time.Time `json:"timestamp"`
}
