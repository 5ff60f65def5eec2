package models

import "time"

// PaymentIntent records a succeeded payment intent, keyed by the provider
// intent id. Same insert-if-absent semantics as Payment.
type PaymentIntent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PiID      string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_intents_pi_id" json:"pi_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"type:varchar(8);not null" json:"currency"`
	Status    string    `gorm:"type:varchar(32);not null;default:'succeeded'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
