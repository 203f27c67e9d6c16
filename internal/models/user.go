package models

import "time"

// User is an account able to own sessions.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	SessionCount int       `json:"session_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
