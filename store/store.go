// ABOUTME: Store is the persistence contract every dialogue component reads and writes through.
// ABOUTME: Implementations (SQLStore, MemoryFallback) normalize ids to strings and never return nil slices.

package store

import (
	"context"
	"time"
)

// Store owns the sessions and turns tables exclusively. No other component
// writes to them directly.
type Store interface {
	CreateSession(ctx context.Context, userID, title string, dialogueType DialogueType, metadata map[string]any) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessionsByUser(ctx context.Context, userID string, limit, offset int) ([]*Session, error)
	UpdateSessionActivity(ctx context.Context, sessionID string, ts time.Time) error
	CreateTurn(ctx context.Context, sessionID string, role Role, content string, metadata map[string]any) (*Turn, error)
	GetTurns(ctx context.Context, sessionID string, limit int, beforeID string) ([]*Turn, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Health(ctx context.Context) error
	Close() error
}
