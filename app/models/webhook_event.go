package models

import "time"

const (
	WebhookStatusProcessing = "processing"
	WebhookStatusProcessed  = "processed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent is the dedup ledger: one row per provider event, created in
// "processing" state by whichever delivery wins the unique-insert race.
// Rows are never deleted; they form the append-only audit trail.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EventID     string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType   string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadHash string     `gorm:"type:char(64);not null" json:"payload_hash"`
	Status      string     `gorm:"type:varchar(16);not null;default:'processing';index" json:"status"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	ReceivedAt  time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
}
