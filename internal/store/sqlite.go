package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/types"
)

const currentSchemaVersion = 3

// SQLiteStore keeps everything in one SQLite database
type SQLiteStore struct {
	db     *sql.DB
	path   string
	driver string
	now    func() time.Time
}

// OpenSQLite opens or creates the database at path and migrates it.
// driver is DriverCGO (default) or DriverPureGo.
func OpenSQLite(driver, path string) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverCGO
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var dsn string
	switch driver {
	case DriverCGO:
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	case DriverPureGo:
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return nil, fmt.Errorf("unknown sqlite driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; WAL lets readers proceed
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, driver: driver, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	logging.For("store").Infow("sqlite store ready", "path", path, "driver", driver)
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}

	version, err := readSchemaVersion(tx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("db schema version %d is newer than runtime version %d", version, currentSchemaVersion)
	}

	for version < currentSchemaVersion {
		next := version + 1
		if err := migrations[next](tx); err != nil {
			return fmt.Errorf("migrate schema %d -> %d: %w", version, next, err)
		}
		if _, err := tx.Exec(`
INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(next)); err != nil {
			return err
		}
		version = next
	}

	return tx.Commit()
}

func readSchemaVersion(tx *sql.Tx) (int, error) {
	var text string
	err := tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", text, err)
	}
	return version, nil
}

// migrations[n] upgrades a database from version n-1 to n
var migrations = map[int]func(*sql.Tx) error{
	1: func(tx *sql.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS conversations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_message TEXT NOT NULL,
				assistant_message TEXT NOT NULL,
				session_id TEXT NOT NULL,
				timestamp INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS scheduled_tasks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				task_name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				scheduled_time INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at INTEGER NOT NULL,
				completed_at INTEGER
			)`,
			`CREATE TABLE IF NOT EXISTS long_term_memory (
				key_info TEXT PRIMARY KEY,
				category TEXT NOT NULL,
				details TEXT NOT NULL DEFAULT '',
				importance_level INTEGER NOT NULL DEFAULT 1,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_status_time ON scheduled_tasks(status, scheduled_time)`,
			`CREATE INDEX IF NOT EXISTS idx_memory_category ON long_term_memory(category, importance_level DESC, updated_at DESC)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	},
	2: func(tx *sql.Tx) error {
		_, err := tx.Exec(`ALTER TABLE scheduled_tasks ADD COLUMN priority TEXT NOT NULL DEFAULT 'media'`)
		return err
	},
	// memory timestamps move from unix seconds to unix nanoseconds
	3: func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE long_term_memory SET created_at = created_at * 1000000000, updated_at = updated_at * 1000000000`)
		return err
	},
}

// RecentConversations returns the last limit exchanges, oldest first
func (s *SQLiteStore) RecentConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_message, assistant_message, session_id, timestamp
		FROM conversations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []types.Conversation
	for rows.Next() {
		var c types.Conversation
		var ts int64
		if err := rows.Scan(&c.ID, &c.UserInput, &c.AgentOutput, &c.SessionID, &ts); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Timestamp = time.Unix(ts, 0)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to chronological order
	for i, j := 0, len(convs)-1; i < j; i, j = i+1, j-1 {
		convs[i], convs[j] = convs[j], convs[i]
	}
	return convs, nil
}

// SaveConversation appends one exchange
func (s *SQLiteStore) SaveConversation(ctx context.Context, userInput, agentOutput, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (user_message, assistant_message, session_id, timestamp)
		VALUES (?, ?, ?, ?)`, userInput, agentOutput, sessionID, s.now().Unix())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// SaveTask inserts a pending task
func (s *SQLiteStore) SaveTask(ctx context.Context, name, description, priority string, when time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (task_name, description, priority, scheduled_time, status, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)`, name, description, priority, when.Unix(), s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task id: %w", err)
	}
	return id, nil
}

const taskColumns = `id, task_name, description, priority, scheduled_time, status, created_at, completed_at`

func scanTask(sc interface{ Scan(...any) error }) (types.Task, error) {
	var (
		t                  types.Task
		status             string
		scheduled, created int64
		completed          sql.NullInt64
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Description, &t.Priority, &scheduled, &status, &created, &completed); err != nil {
		return types.Task{}, err
	}
	t.Status = types.TaskStatus(status)
	t.ScheduledAt = time.Unix(scheduled, 0)
	t.CreatedAt = time.Unix(created, 0)
	if completed.Valid {
		at := time.Unix(completed.Int64, 0)
		t.CompletedAt = &at
	}
	return t, nil
}

// GetTask returns a task by id
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

// PendingTasks returns pending tasks by scheduled time
func (s *SQLiteStore) PendingTasks(ctx context.Context) ([]types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM scheduled_tasks
		WHERE status = 'pending'
		ORDER BY scheduled_time, id`)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a pending task completed
func (s *SQLiteStore) CompleteTask(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'pending'`, s.now().Unix(), id)
	if err != nil {
		return 0, fmt.Errorf("complete task %d: %w", id, err)
	}
	return res.RowsAffected()
}

// SaveMemory upserts by key; a repeated key overwrites details and category.
// Memory timestamps are unix nanoseconds.
func (s *SQLiteStore) SaveMemory(ctx context.Context, category, key, details string) error {
	now := s.now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO long_term_memory (key_info, category, details, importance_level, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(key_info) DO UPDATE SET
			category = excluded.category,
			details = excluded.details,
			updated_at = excluded.updated_at`, key, category, details, now, now)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

const memoryColumns = `key_info, category, details, importance_level, created_at, updated_at`

func scanMemory(sc interface{ Scan(...any) error }) (types.Memory, error) {
	var (
		m                types.Memory
		created, updated int64
	)
	if err := sc.Scan(&m.Key, &m.Category, &m.Details, &m.Importance, &created, &updated); err != nil {
		return types.Memory{}, err
	}
	m.CreatedAt = time.Unix(0, created)
	m.UpdatedAt = time.Unix(0, updated)
	return m, nil
}

// GetMemory returns the memory stored under key
func (s *SQLiteStore) GetMemory(ctx context.Context, key string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM long_term_memory WHERE key_info = ?`, key)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

// ListMemories returns memories by importance then recency
func (s *SQLiteStore) ListMemories(ctx context.Context, category string, limit int) ([]types.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + memoryColumns + ` FROM long_term_memory`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY importance_level DESC, updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var mems []types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		mems = append(mems, m)
	}
	return mems, rows.Err()
}
