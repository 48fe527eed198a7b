package memory

import (
	"context"
	"errors"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one persisted utterance. Sequence orders turns by insertion and is
// assigned by the index; Score is only set on search results (higher is more similar).
type Turn struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score,omitempty"`
}

var (
	// ErrDimensionMismatch is returned when an embedding does not have the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrStoreFailure wraps any embedding or index failure surfaced by Store.
	ErrStoreFailure = errors.New("memory store failure")
)

// Index is a vector backend for turns. Search must restrict candidates to
// sessionID, but callers treat the result as a ranking hint and re-check it.
type Index interface {
	Insert(ctx context.Context, turn Turn) (Turn, error)
	Search(ctx context.Context, sessionID string, query []float32, k int) ([]Turn, error)
	Close(ctx context.Context) error
}
