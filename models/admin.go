package models

import "time"

// Admin is the signed-in operator. Any authenticated session is an administrator.
type Admin struct {
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
