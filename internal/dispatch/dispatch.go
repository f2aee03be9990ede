// Package dispatch executes extracted payloads against the store and
// notifier and renders the user-facing reply.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jdmmit/agente/internal/action"
	"github.com/jdmmit/agente/internal/effectors"
	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/types"
)

// Outcome classifies how an action ended
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeValidation  Outcome = "validation"
	OutcomePersistence Outcome = "persistence"
	OutcomeUpstream    Outcome = "upstream"
)

// Result is the reply for one payload
type Result struct {
	Message string
	Outcome Outcome
}

// User-facing messages
const (
	MsgTaskSaveFailed      = "❌ Lo siento, no pude guardar la tarea."
	MsgNoPendingTasks      = "📋 No tienes ninguna tarea pendiente."
	MsgListTasksFailed     = "❌ No pude consultar tus tareas pendientes."
	MsgMissingTaskID       = "🤔 Necesito el ID de la tarea a completar."
	MsgMissingMemoryInfo   = "🤔 No me diste la información clave para guardar."
	MsgMemorySaveFailed    = "❌ No pude guardar la información."
	TaskNotificationTitle  = "Nueva tarea guardada"
	pendingTasksHeader     = "📋 Aquí están tus tareas pendientes:\n\n"
	notifyTimeout          = 10 * time.Second
	messageTimeLayout      = "2006-01-02 a las 15:04"
	notificationTimeLayout = "15:04"
)

// TaskStore is the task side of the persistence collaborator
type TaskStore interface {
	SaveTask(ctx context.Context, name, description, priority string, when time.Time) (int64, error)
	PendingTasks(ctx context.Context) ([]types.Task, error)
	CompleteTask(ctx context.Context, id int64) (int64, error)
}

// MemoryStore is the long-term memory side of the persistence collaborator
type MemoryStore interface {
	SaveMemory(ctx context.Context, category, key, details string) error
}

// Dispatcher maps each payload variant to its handler. It holds no state
// across calls.
type Dispatcher struct {
	tasks    TaskStore
	memories MemoryStore
	notifier effectors.Notifier
	dates    *action.DateNormalizer
}

// New creates a dispatcher. A nil notifier becomes effectors.Nop and a nil
// normalizer uses the default offset in local time.
func New(tasks TaskStore, memories MemoryStore, notifier effectors.Notifier, dates *action.DateNormalizer) *Dispatcher {
	if notifier == nil {
		notifier = effectors.Nop{}
	}
	if dates == nil {
		dates = action.NewDateNormalizer(action.DefaultTaskOffset, nil)
	}
	return &Dispatcher{tasks: tasks, memories: memories, notifier: notifier, dates: dates}
}

// Dispatch performs at most one side effect and never fails; every error
// path is turned into a short message.
func (d *Dispatcher) Dispatch(ctx context.Context, p action.Payload) Result {
	switch p := p.(type) {
	case action.Task:
		return d.saveTask(ctx, p)
	case action.ListTasks:
		return d.listTasks(ctx)
	case action.CompleteTask:
		return d.completeTask(ctx, p)
	case action.Memory:
		return d.saveMemory(ctx, p)
	case action.PlainResponse:
		return Result{Message: p.Content, Outcome: OutcomeOK}
	default:
		if p == nil {
			return Result{Outcome: OutcomeOK}
		}
		return Result{Message: fmt.Sprint(p), Outcome: OutcomeOK}
	}
}

func (d *Dispatcher) saveTask(ctx context.Context, p action.Task) Result {
	log := logging.For("dispatch")
	when := d.dates.Normalize(p.DueAt)

	id, err := d.tasks.SaveTask(ctx, p.Title, p.Description, p.Priority, when)
	if err != nil {
		log.Errorw("save task failed", "title", p.Title, "error", err)
		return Result{Message: MsgTaskSaveFailed, Outcome: OutcomePersistence}
	}
	log.Infow("task saved", "id", id, "title", p.Title, "scheduled_at", d.dates.Format(when))

	local := when.In(d.dates.Location())
	d.notify(ctx, TaskNotificationTitle, fmt.Sprintf("%s a las %s", p.Title, local.Format(notificationTimeLayout)))

	return Result{
		Message: fmt.Sprintf("✅ Tarea guardada: '%s' para el %s.", p.Title, local.Format(messageTimeLayout)),
		Outcome: OutcomeOK,
	}
}

func (d *Dispatcher) listTasks(ctx context.Context) Result {
	tasks, err := d.tasks.PendingTasks(ctx)
	if err != nil {
		logging.For("dispatch").Errorw("list pending tasks failed", "error", err)
		return Result{Message: MsgListTasksFailed, Outcome: OutcomePersistence}
	}
	if len(tasks) == 0 {
		return Result{Message: MsgNoPendingTasks, Outcome: OutcomeOK}
	}
	return Result{Message: d.FormatTasks(tasks), Outcome: OutcomeOK}
}

// FormatTasks renders pending tasks as a bulleted list
func (d *Dispatcher) FormatTasks(tasks []types.Task) string {
	var b strings.Builder
	b.WriteString(pendingTasksHeader)
	for i, t := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- **ID %d**: %s (Para: %s)", t.ID, t.Name, t.ScheduledAt.In(d.dates.Location()).Format(messageTimeLayout))
		if t.Description != "" {
			fmt.Fprintf(&b, "\n  %s", t.Description)
		}
	}
	return b.String()
}

func (d *Dispatcher) completeTask(ctx context.Context, p action.CompleteTask) Result {
	raw := strings.TrimSpace(p.TaskID)
	if raw == "" {
		logging.For("dispatch").Debug("complete task without id")
		return Result{Message: MsgMissingTaskID, Outcome: OutcomeValidation}
	}

	failed := Result{
		Message: fmt.Sprintf("❌ No pude marcar la tarea %s como completada.", raw),
		Outcome: OutcomePersistence,
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.For("dispatch").Debugw("non-numeric task id", "id", raw)
		failed.Outcome = OutcomeValidation
		return failed
	}

	rows, err := d.tasks.CompleteTask(ctx, id)
	if err != nil {
		logging.For("dispatch").Errorw("complete task failed", "id", id, "error", err)
		return failed
	}
	if rows == 0 {
		return failed
	}
	return Result{Message: fmt.Sprintf("✅ ¡Perfecto! Tarea %d completada.", id), Outcome: OutcomeOK}
}

func (d *Dispatcher) saveMemory(ctx context.Context, p action.Memory) Result {
	if strings.TrimSpace(p.Info) == "" {
		logging.For("dispatch").Debug("memory without info")
		return Result{Message: MsgMissingMemoryInfo, Outcome: OutcomeValidation}
	}
	category := p.Category
	if category == "" {
		category = action.DefaultMemoryCategory
	}
	if err := d.memories.SaveMemory(ctx, category, p.Info, p.Details); err != nil {
		logging.For("dispatch").Errorw("save memory failed", "category", category, "error", err)
		return Result{Message: MsgMemorySaveFailed, Outcome: OutcomePersistence}
	}
	return Result{Message: fmt.Sprintf("🧠 He guardado en '%s': '%s'", category, p.Info), Outcome: OutcomeOK}
}

// notify is best-effort and never changes the reply
func (d *Dispatcher) notify(ctx context.Context, title, message string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, title, message); err != nil {
		logging.For("dispatch").Warnw("notification failed", "title", title, "error", err)
	}
}
