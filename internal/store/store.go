// Package store persists user credentials and per-user chat history.
package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// Turn is one message in a user's ordered history.
type Turn struct {
	ID        string    `json:"id"` // UUID
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence backend: credentials plus append-only, ordered
// turn history. Implementations are interchangeable and chosen by
// configuration, never by branching in the engine.
type Store interface {
	CreateUser(username, passwordHash string) (*User, error)
	GetUserByUsername(username string) (*User, error)

	AppendTurn(userID int64, role, content string) (*Turn, error)
	TurnsByUser(userID int64, limit int) ([]Turn, error)
	DeleteTurnsByUser(userID int64) error

	Close() error
}
