package ai

import "context"

// Role identifies the speaker of a single turn.
type Role string

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn authored by the model.
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation, tagged with its speaker role.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// HistoryStore manages the ordered, append-only history of each session.
//
// Implementations must serialize Append calls for a single session id so
// that a user/assistant pair is stored as one unit: a concurrent reader
// never observes a half-written pair, and no pair is ever lost or
// reordered relative to append completion order.
type HistoryStore interface {
	// History returns the full turn sequence for a session in
	// chronological order. An unknown id yields an empty slice, not an
	// error: an allocated session is valid before its first turn exists.
	History(ctx context.Context, sessionID string) ([]Turn, error)

	// Append atomically adds the given turns to the end of the session
	// history.
	Append(ctx context.Context, sessionID string, turns ...Turn) error

	// Clear removes the session history. Eviction policy lives with the
	// store, never with the orchestrator.
	Clear(ctx context.Context, sessionID string) error
}
