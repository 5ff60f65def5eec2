package models

import "time"

// IdempotencyKeyRecord catalogs keys attached to outbound provider calls.
// Correctness comes from the key being deterministic, not from this table;
// it exists for observability and cleanup.
type IdempotencyKeyRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:char(64);not null;uniqueIndex:ux_idempotency_keys_key" json:"key"`
	Purpose   string    `gorm:"type:varchar(100);not null;index" json:"purpose"`
	Scope     string    `gorm:"type:varchar(191);not null" json:"scope"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}
