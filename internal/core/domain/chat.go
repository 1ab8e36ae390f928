package domain

import "time"

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ValidRole reports whether role is one of the three recognized values.
func ValidRole(role ChatRole) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// ChatSession groups an ordered sequence of messages.
type ChatSession struct {
	// ID is the session identifier (UUID).
	ID string

	// Title is a short human-readable label, usually derived from the
	// first question.
	Title string

	// CreatedAt is when the session was created.
	CreatedAt time.Time
}

// ChatMessage is one turn in a chat session. Messages are ordered by
// (CreatedAt, Seq); Seq is unique within a session and strictly increases.
type ChatMessage struct {
	// ID is the storage-assigned row identifier.
	ID int64

	// SessionID links to the owning ChatSession.
	SessionID string

	// Role is user, assistant or system.
	Role ChatRole

	// Content is the message text.
	Content string

	// Seq is the monotonic per-session sequence number.
	Seq int

	// CreatedAt is when the message was written.
	CreatedAt time.Time
}
