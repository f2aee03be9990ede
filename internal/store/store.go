// Package store persists tasks, long-term memories and conversation history.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jdmmit/agente/internal/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator. Implementations serialize
// concurrent access themselves.
type Store interface {
	// RecentConversations returns up to limit exchanges, oldest first
	RecentConversations(ctx context.Context, limit int) ([]types.Conversation, error)
	SaveConversation(ctx context.Context, userInput, agentOutput, sessionID string) error

	// SaveTask stores a pending task and returns its assigned id
	SaveTask(ctx context.Context, name, description, priority string, when time.Time) (int64, error)
	GetTask(ctx context.Context, id int64) (*types.Task, error)
	// PendingTasks returns pending tasks ordered by scheduled time
	PendingTasks(ctx context.Context) ([]types.Task, error)
	// CompleteTask marks a pending task completed and reports rows changed.
	// Absent or already completed tasks yield 0.
	CompleteTask(ctx context.Context, id int64) (int64, error)

	// SaveMemory inserts or overwrites the memory stored under key
	SaveMemory(ctx context.Context, category, key, details string) error
	GetMemory(ctx context.Context, key string) (*types.Memory, error)
	// ListMemories returns memories by importance then recency; empty
	// category means all
	ListMemories(ctx context.Context, category string, limit int) ([]types.Memory, error)

	Close() error
}

// Backend names
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Driver names registered with database/sql
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// Options selects and configures a backend
type Options struct {
	Backend   string // sqlite or json
	Driver    string // sqlite3 or sqlite, sqlite backend only
	Path      string // database file, or JSON file for the json backend
	StatePath string // used to derive Path when empty
}

// Open creates the configured store. Failure here is fatal for the caller.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		path := opts.Path
		if path == "" {
			path = filepath.Join(opts.StatePath, "jdmmit.db")
		}
		return OpenSQLite(opts.Driver, path)
	case BackendJSON:
		path := opts.Path
		if path == "" {
			path = filepath.Join(opts.StatePath, "agent.json")
		}
		s := NewJSONStore(path)
		if err := s.Load(); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.Backend)
	}
}
