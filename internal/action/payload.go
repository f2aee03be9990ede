// Package action turns raw model output into one of a closed set of intents.
package action

import "strings"

// Kind identifies which payload variant is active
type Kind string

const (
	KindTask          Kind = "task"
	KindListTasks     Kind = "list_tasks"
	KindCompleteTask  Kind = "complete_task"
	KindMemory        Kind = "memory"
	KindPlainResponse Kind = "plain_response"
)

// DefaultMemoryCategory is used when a memory payload names no category
const DefaultMemoryCategory = "general"

// DefaultTaskTitle is used when a task payload carries no title
const DefaultTaskTitle = "Tarea sin título"

// DefaultPriority is used when a task payload carries no priority
const DefaultPriority = "media"

// Payload is the structured intent extracted from model text. The set of
// implementations is closed: Task, ListTasks, CompleteTask, Memory and
// PlainResponse.
type Payload interface {
	Kind() Kind
	sealed()
}

// Task asks for a new scheduled reminder
type Task struct {
	Title       string
	Description string
	DueAt       string // raw date text, normalized at dispatch
	Priority    string
}

// ListTasks asks for the pending tasks
type ListTasks struct{}

// CompleteTask asks to mark a task as done. TaskID is empty when the model
// omitted it.
type CompleteTask struct {
	TaskID string
}

// Memory asks to remember a fact under Info
type Memory struct {
	Category string
	Info     string
	Details  string
}

// PlainResponse is natural language to show the user as-is
type PlainResponse struct {
	Content string
}

func (Task) Kind() Kind { return KindTask }
func (ListTasks) Kind() Kind { return KindListTasks }
func (CompleteTask) Kind() Kind { return KindCompleteTask }
func (Memory) Kind() Kind { return KindMemory }
func (PlainResponse) Kind() Kind { return KindPlainResponse }

func (Task) sealed() {}
func (ListTasks) sealed() {}
func (CompleteTask) sealed() {}
func (Memory) sealed() {}
func (PlainResponse) sealed() {}

// discriminants maps every accepted wire tag to its variant. The model is
// prompted in Spanish but English tags are accepted too.
var discriminants = map[string]Kind{
	"tarea":           KindTask,
	"task":            KindTask,
	"listar_tareas":   KindListTasks,
	"listar":          KindListTasks,
	"list_tasks":      KindListTasks,
	"completar_tarea": KindCompleteTask,
	"completar":       KindCompleteTask,
	"complete_task":   KindCompleteTask,
	"memoria":         KindMemory,
	"memory":          KindMemory,
	"respuesta":       KindPlainResponse,
	"response":        KindPlainResponse,
}

// fromObject builds a payload from a decoded JSON object. Unknown or missing
// discriminants fall back to the original text.
func fromObject(obj map[string]any, original string) Payload {
	tag := field(obj, "tipo", "type")
	kind, ok := discriminants[strings.ToLower(tag)]
	if !ok {
		return PlainResponse{Content: original}
	}

	switch kind {
	case KindTask:
		t := Task{
			Title:       field(obj, "titulo", "title"),
			Description: field(obj, "descripcion", "description"),
			DueAt:       field(obj, "fecha", "due_at"),
			Priority:    field(obj, "prioridad", "priority"),
		}
		if t.Title == "" {
			t.Title = DefaultTaskTitle
		}
		if t.Priority == "" {
			t.Priority = DefaultPriority
		}
		return t
	case KindListTasks:
		return ListTasks{}
	case KindCompleteTask:
		return CompleteTask{TaskID: field(obj, "id", "task_id")}
	case KindMemory:
		m := Memory{
			Category: field(obj, "categoria", "category"),
			Info:     field(obj, "info"),
			Details:  field(obj, "detalles", "details"),
		}
		if m.Category == "" {
			m.Category = DefaultMemoryCategory
		}
		return m
	default:
		content := field(obj, "contenido", "content")
		if content == "" {
			content = original
		}
		return PlainResponse{Content: content}
	}
}
