package models

import "time"

const (
	PaymentStatusSucceeded = "succeeded"
)

// Payment is created once per completed checkout session. SessionID is the
// provider-assigned identifier; the unique index makes replayed inserts a
// no-op so stale redeliveries can never clobber financial fields.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_session_id" json:"session_id"`
	CustomerEmail string    `gorm:"type:varchar(255)" json:"customer_email"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status        string    `gorm:"type:varchar(32);not null;default:'succeeded'" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
