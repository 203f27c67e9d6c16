package models

import "time"

// DefaultSessionTitle is stored until the first user message produces a title.
const DefaultSessionTitle = "New Chat"

// Session groups a conversation. Inactive sessions are soft-deleted.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Title     string    `json:"title"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
