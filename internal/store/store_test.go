package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdmmit/agente/internal/types"
)

// clock is a settable time source shared by a store under test
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type storeFactory func(t *testing.T, c *clock) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"sqlite-purego": func(t *testing.T, c *clock) Store {
			s, err := OpenSQLite(DriverPureGo, filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			s.now = c.Now
			t.Cleanup(func() { s.Close() })
			return s
		},
		"json": func(t *testing.T, c *clock) Store {
			s := NewJSONStore(filepath.Join(t.TempDir(), "agent.json"))
			require.NoError(t, s.Load())
			s.now = c.Now
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store, c *clock)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			c := &clock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
			fn(t, factory(t, c), c)
		})
	}
}

func TestStore_ConversationsWindow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		convs, err := s.RecentConversations(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, convs)

		for i := 1; i <= 7; i++ {
			require.NoError(t, s.SaveConversation(ctx, fmt.Sprintf("in-%d", i), fmt.Sprintf("out-%d", i), "sess"))
			c.Advance(time.Second)
		}

		convs, err = s.RecentConversations(ctx, 5)
		require.NoError(t, err)
		require.Len(t, convs, 5)
		// oldest first, most recent five
		for i, conv := range convs {
			assert.Equal(t, fmt.Sprintf("in-%d", i+3), conv.UserInput)
			assert.Equal(t, fmt.Sprintf("out-%d", i+3), conv.AgentOutput)
			assert.Equal(t, "sess", conv.SessionID)
		}

		convs, err = s.RecentConversations(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, convs)
	})
}

func TestStore_TaskLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		later := time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)
		sooner := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

		id1, err := s.SaveTask(ctx, "Llamar al dentista", "revisión", "alta", later)
		require.NoError(t, err)
		id2, err := s.SaveTask(ctx, "Comprar pan", "", "media", sooner)
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		pending, err := s.PendingTasks(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "Comprar pan", pending[0].Name, "ordered by scheduled time")
		assert.Equal(t, "Llamar al dentista", pending[1].Name)
		assert.True(t, later.Equal(pending[1].ScheduledAt))
		assert.Equal(t, "alta", pending[1].Priority)
		assert.Equal(t, types.TaskPending, pending[1].Status)

		n, err := s.CompleteTask(ctx, id1)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		task, err := s.GetTask(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, types.TaskCompleted, task.Status)
		require.NotNil(t, task.CompletedAt)

		// completing again is a no-op
		n, err = s.CompleteTask(ctx, id1)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		pending, err = s.PendingTasks(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, id2, pending[0].ID)
	})
}

func TestStore_CompleteMissingTaskChangesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		id, err := s.SaveTask(ctx, "Pagar luz", "", "media", c.Now())
		require.NoError(t, err)

		n, err := s.CompleteTask(ctx, id+100)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		task, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.TaskPending, task.Status)
		assert.Nil(t, task.CompletedAt)

		_, err = s.GetTask(ctx, id+100)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_MemoryUpsert(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		require.NoError(t, s.SaveMemory(ctx, "personal", "color favorito", "azul"))
		first, err := s.GetMemory(ctx, "color favorito")
		require.NoError(t, err)
		assert.Equal(t, "azul", first.Details)
		assert.Equal(t, 1, first.Importance)

		c.Advance(time.Hour)
		require.NoError(t, s.SaveMemory(ctx, "gustos", "color favorito", "verde"))

		second, err := s.GetMemory(ctx, "color favorito")
		require.NoError(t, err)
		assert.Equal(t, "verde", second.Details)
		assert.Equal(t, "gustos", second.Category)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

		all, err := s.ListMemories(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 1, "same key must not duplicate")

		_, err = s.GetMemory(ctx, "nada")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_MemoryUpsertWithinOneSecond(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()

		require.NoError(t, s.SaveMemory(ctx, "personal", "café", "solo"))
		first, err := s.GetMemory(ctx, "café")
		require.NoError(t, err)

		c.Advance(time.Millisecond)
		require.NoError(t, s.SaveMemory(ctx, "personal", "café", "con leche"))
		second, err := s.GetMemory(ctx, "café")
		require.NoError(t, err)

		assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "first %v, second %v", first.UpdatedAt, second.UpdatedAt)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
		assert.True(t, first.CreatedAt.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
	})
}

func TestStore_ListMemoriesByCategory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		require.NoError(t, s.SaveMemory(ctx, "trabajo", "reunión lunes", ""))
		c.Advance(time.Second)
		require.NoError(t, s.SaveMemory(ctx, "personal", "cumple Ana", "12 mayo"))
		c.Advance(time.Second)
		require.NoError(t, s.SaveMemory(ctx, "trabajo", "jefe Luis", ""))

		work, err := s.ListMemories(ctx, "trabajo", 10)
		require.NoError(t, err)
		require.Len(t, work, 2)
		assert.Equal(t, "jefe Luis", work[0].Key, "most recent first")

		limited, err := s.ListMemories(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Backend: BackendJSON, StatePath: dir})
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(context.Background(), "a", "b", "c"))
	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Join(dir, "agent.json"))
	assert.NoError(t, err)

	s, err = Open(Options{Backend: BackendSQLite, Driver: DriverPureGo, StatePath: dir})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Join(dir, "jdmmit.db"))
	assert.NoError(t, err)

	_, err = Open(Options{Backend: "mysql"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: BackendSQLite, Driver: "postgres", StatePath: dir})
	assert.Error(t, err)
}

func TestJSONStore_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.json")
	ctx := context.Background()

	s := NewJSONStore(path)
	require.NoError(t, s.Load())
	id, err := s.SaveTask(ctx, "Regar plantas", "", "baja", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.SaveMemory(ctx, "casa", "wifi", "clave123"))

	reloaded := NewJSONStore(path)
	require.NoError(t, reloaded.Load())

	task, err := reloaded.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Regar plantas", task.Name)

	// ids keep increasing after reload
	next, err := reloaded.SaveTask(ctx, "Otra", "", "media", time.Now())
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := OpenSQLite(DriverPureGo, path)
	require.NoError(t, err)
	_, err = s.SaveTask(ctx, "Persistente", "", "media", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(DriverPureGo, path)
	require.NoError(t, err)
	defer s.Close()

	pending, err := s.PendingTasks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Persistente", pending[0].Name)
}

func TestSQLiteStore_MigratesMemorySecondsToNanos(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2.db")
	saved := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	db, err := sql.Open(DriverPureGo, path)
	require.NoError(t, err)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, migrations[1](tx))
	require.NoError(t, migrations[2](tx))
	_, err = tx.Exec(`CREATE TABLE schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', '2')`)
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO long_term_memory (key_info, category, details, importance_level, created_at, updated_at)
		VALUES ('cumple Ana', 'personal', '12 mayo', 1, ?, ?)`, saved.Unix(), saved.Unix())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	s, err := OpenSQLite(DriverPureGo, path)
	require.NoError(t, err)
	defer s.Close()

	m, err := s.GetMemory(context.Background(), "cumple Ana")
	require.NoError(t, err)
	assert.True(t, saved.Equal(m.CreatedAt), "created %v", m.CreatedAt)
	assert.True(t, saved.Equal(m.UpdatedAt), "updated %v", m.UpdatedAt)
}
