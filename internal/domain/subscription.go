package domain

import "time"

// Subscription is a browser/device push registration owned by a recipient.
// Endpoint is unique across all subscriptions.
type Subscription struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"username"`
	Endpoint   string    `json:"endpoint"`
	PublicKey  string    `json:"p256dh"`
	AuthSecret string    `json:"auth"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
