package models

import "time"

// Role is the sender of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps stored sender values, including legacy ones, onto a Role.
func ParseRole(sender string) Role {
	switch sender {
	case "user":
		return RoleUser
	case "assistant", "bot", "chatbot", "model":
		return RoleAssistant
	default:
		return Role(sender)
	}
}

// Message is one append-only conversation entry. Mode names the persona active
// when the row was written; it is empty for legacy rows.
type Message struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	Role      Role      `json:"sender"`
	Content   string    `json:"content"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}
