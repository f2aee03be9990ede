package types

import "time"

// TaskStatus is the lifecycle state of a scheduled task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task is a scheduled reminder owned by the user
type Task struct {
	ID          int64      `json:"id"`
	Name        string     `json:"task_name"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"` // baja, media, alta
	ScheduledAt time.Time  `json:"scheduled_time"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Pending reports whether the task can still be completed
func (t *Task) Pending() bool {
	return t.Status == TaskPending
}

// Memory is a long-term fact, unique by Key
type Memory struct {
	Category   string    `json:"category"`
	Key        string    `json:"key_info"`
	Details    string    `json:"details,omitempty"`
	Importance int       `json:"importance_level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Conversation is one persisted exchange (append-only)
type Conversation struct {
	ID          int64     `json:"id"`
	UserInput   string    `json:"user_message"`
	AgentOutput string    `json:"assistant_message"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
}
