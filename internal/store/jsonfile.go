package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jdmmit/agente/internal/types"
)

// jsonData is the on-disk document
type jsonData struct {
	NextTaskID         int64                   `json:"next_task_id"`
	NextConversationID int64                   `json:"next_conversation_id"`
	Tasks              []types.Task            `json:"tasks"`
	Memories           map[string]types.Memory `json:"memories"`
	Conversations      []types.Conversation    `json:"conversations"`
}

// JSONStore keeps everything in one JSON file, rewritten on every change.
// Suited to single-user installs without SQLite.
type JSONStore struct {
	path string
	data jsonData
	mu   sync.RWMutex
	now  func() time.Time
}

// NewJSONStore creates a store backed by the file at path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{
		path: path,
		data: emptyData(),
		now:  time.Now,
	}
}

func emptyData() jsonData {
	return jsonData{
		NextTaskID:         1,
		NextConversationID: 1,
		Tasks:              []types.Task{},
		Memories:           map[string]types.Memory{},
		Conversations:      []types.Conversation{},
	}
}

// Load reads the document from disk; a missing file is an empty store
func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = emptyData()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}

	data := emptyData()
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse store: %w", err)
	}

	// Ensure collections are not nil
	if data.Tasks == nil {
		data.Tasks = []types.Task{}
	}
	if data.Memories == nil {
		data.Memories = map[string]types.Memory{}
	}
	if data.Conversations == nil {
		data.Conversations = []types.Conversation{}
	}
	s.data = data
	return nil
}

// save writes the document; callers hold the write lock
func (s *JSONStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// Close is a no-op; every change is already on disk
func (s *JSONStore) Close() error {
	return nil
}

// RecentConversations returns the last limit exchanges, oldest first
func (s *JSONStore) RecentConversations(ctx context.Context, limit int) ([]types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}
	convs := s.data.Conversations
	if len(convs) > limit {
		convs = convs[len(convs)-limit:]
	}
	result := make([]types.Conversation, len(convs))
	copy(result, convs)
	return result, nil
}

// SaveConversation appends one exchange
func (s *JSONStore) SaveConversation(ctx context.Context, userInput, agentOutput, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Conversations = append(s.data.Conversations, types.Conversation{
		ID:          s.data.NextConversationID,
		UserInput:   userInput,
		AgentOutput: agentOutput,
		SessionID:   sessionID,
		Timestamp:   s.now(),
	})
	s.data.NextConversationID++
	if err := s.save(); err != nil {
		s.data.Conversations = s.data.Conversations[:len(s.data.Conversations)-1]
		s.data.NextConversationID--
		return err
	}
	return nil
}

// SaveTask inserts a pending task
func (s *JSONStore) SaveTask(ctx context.Context, name, description, priority string, when time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.data.NextTaskID
	s.data.Tasks = append(s.data.Tasks, types.Task{
		ID:          id,
		Name:        name,
		Description: description,
		Priority:    priority,
		ScheduledAt: when,
		Status:      types.TaskPending,
		CreatedAt:   s.now(),
	})
	s.data.NextTaskID++
	if err := s.save(); err != nil {
		// keep memory consistent with disk
		s.data.Tasks = s.data.Tasks[:len(s.data.Tasks)-1]
		s.data.NextTaskID--
		return 0, err
	}
	return id, nil
}

// GetTask returns a task by id
func (s *JSONStore) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Tasks {
		if s.data.Tasks[i].ID == id {
			t := s.data.Tasks[i]
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// PendingTasks returns pending tasks by scheduled time
func (s *JSONStore) PendingTasks(ctx context.Context) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.Task
	for _, t := range s.data.Tasks {
		if t.Pending() {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

// CompleteTask marks a pending task completed
func (s *JSONStore) CompleteTask(ctx context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tasks {
		t := &s.data.Tasks[i]
		if t.ID != id || !t.Pending() {
			continue
		}
		prev := *t
		now := s.now()
		t.Status = types.TaskCompleted
		t.CompletedAt = &now
		if err := s.save(); err != nil {
			*t = prev
			return 0, err
		}
		return 1, nil
	}
	return 0, nil
}

// SaveMemory upserts by key
func (s *JSONStore) SaveMemory(ctx context.Context, category, key, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, existed := s.data.Memories[key]
	m := prev
	if !existed {
		m = types.Memory{Key: key, Importance: 1, CreatedAt: now}
	}
	m.Category = category
	m.Details = details
	m.UpdatedAt = now
	s.data.Memories[key] = m

	if err := s.save(); err != nil {
		if existed {
			s.data.Memories[key] = prev
		} else {
			delete(s.data.Memories, key)
		}
		return err
	}
	return nil
}

// GetMemory returns the memory stored under key
func (s *JSONStore) GetMemory(ctx context.Context, key string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data.Memories[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// ListMemories returns memories by importance then recency
func (s *JSONStore) ListMemories(ctx context.Context, category string, limit int) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	var result []types.Memory
	for _, m := range s.data.Memories {
		if category != "" && m.Category != category {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Importance != result[j].Importance {
			return result[i].Importance > result[j].Importance
		}
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
