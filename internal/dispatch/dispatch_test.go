package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdmmit/agente/internal/action"
	"github.com/jdmmit/agente/internal/types"
)

type fakeStore struct {
	tasks    []types.Task
	memories map[string]types.Memory
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: map[string]types.Memory{}}
}

func (f *fakeStore) SaveTask(ctx context.Context, name, description, priority string, when time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	id := int64(len(f.tasks) + 1)
	f.tasks = append(f.tasks, types.Task{ID: id, Name: name, Description: description, Priority: priority, ScheduledAt: when, Status: types.TaskPending})
	return id, nil
}

func (f *fakeStore) PendingTasks(ctx context.Context) ([]types.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Task
	for _, t := range f.tasks {
		if t.Pending() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CompleteTask(ctx context.Context, id int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id && f.tasks[i].Pending() {
			f.tasks[i].Status = types.TaskCompleted
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) SaveMemory(ctx context.Context, category, key, details string) error {
	if f.err != nil {
		return f.err
	}
	f.memories[key] = types.Memory{Category: category, Key: key, Details: details}
	return nil
}

type fakeNotifier struct {
	titles   []string
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(ctx context.Context, title, message string) error {
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
	return n.err
}

var utc = action.NewDateNormalizer(action.DefaultTaskOffset, time.UTC)

func TestDispatch_Task(t *testing.T) {
	st := newFakeStore()
	n := &fakeNotifier{}
	d := New(st, st, n, utc)

	res := d.Dispatch(context.Background(), action.Task{Title: "Llamar al dentista", DueAt: "2025-01-02 10:00", Priority: "alta"})

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "✅ Tarea guardada: 'Llamar al dentista' para el 2025-01-02 a las 10:00.", res.Message)
	require.Len(t, st.tasks, 1)
	assert.Equal(t, "Llamar al dentista", st.tasks[0].Name)
	assert.Equal(t, "alta", st.tasks[0].Priority)
	assert.True(t, st.tasks[0].ScheduledAt.Equal(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{TaskNotificationTitle}, n.titles)
	assert.Equal(t, []string{"Llamar al dentista a las 10:00"}, n.messages)
}

func TestDispatch_TaskNotificationFailureKeepsSuccess(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, &fakeNotifier{err: errors.New("no display")}, utc)

	res := d.Dispatch(context.Background(), action.Task{Title: "Comprar pan", DueAt: "2025-03-01 08:30"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Message, "Comprar pan")
	assert.Len(t, st.tasks, 1)
}

func TestDispatch_TaskWithoutDateGetsSchedule(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, nil, utc)

	before := time.Now()
	res := d.Dispatch(context.Background(), action.Task{Title: "Algo"})
	assert.Equal(t, OutcomeOK, res.Outcome)
	require.Len(t, st.tasks, 1)
	assert.True(t, st.tasks[0].ScheduledAt.After(before))
}

func TestDispatch_TaskPersistenceFailure(t *testing.T) {
	st := newFakeStore()
	st.err = errors.New("disk full")
	n := &fakeNotifier{}
	d := New(st, st, n, utc)

	res := d.Dispatch(context.Background(), action.Task{Title: "X"})
	assert.Equal(t, Result{Message: MsgTaskSaveFailed, Outcome: OutcomePersistence}, res)
	assert.Empty(t, n.titles)
}

func TestDispatch_ListTasks(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, nil, utc)
	ctx := context.Background()

	assert.Equal(t, MsgNoPendingTasks, d.Dispatch(ctx, action.ListTasks{}).Message)

	st.SaveTask(ctx, "Dentista", "revisión anual", "media", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC))
	st.SaveTask(ctx, "Pan", "", "baja", time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC))

	res := d.Dispatch(ctx, action.ListTasks{})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "📋 Aquí están tus tareas pendientes:\n\n"+
		"- **ID 1**: Dentista (Para: 2025-01-02 a las 10:00)\n  revisión anual\n"+
		"- **ID 2**: Pan (Para: 2025-01-03 a las 08:00)", res.Message)

	st.err = errors.New("locked")
	assert.Equal(t, Result{Message: MsgListTasksFailed, Outcome: OutcomePersistence}, d.Dispatch(ctx, action.ListTasks{}))
}

func TestDispatch_CompleteTask(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, nil, utc)
	ctx := context.Background()
	st.SaveTask(ctx, "Dentista", "", "media", time.Now())

	tests := []struct {
		name    string
		id      string
		want    string
		outcome Outcome
	}{
		{"missing id", "", MsgMissingTaskID, OutcomeValidation},
		{"blank id", "  ", MsgMissingTaskID, OutcomeValidation},
		{"non numeric", "abc", "❌ No pude marcar la tarea abc como completada.", OutcomeValidation},
		{"absent task", "99", "❌ No pude marcar la tarea 99 como completada.", OutcomePersistence},
		{"pending task", "1", "✅ ¡Perfecto! Tarea 1 completada.", OutcomeOK},
		{"already completed", "1", "❌ No pude marcar la tarea 1 como completada.", OutcomePersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Dispatch(ctx, action.CompleteTask{TaskID: tt.id})
			assert.Equal(t, tt.want, res.Message)
			assert.Equal(t, tt.outcome, res.Outcome)
		})
	}
	assert.Equal(t, types.TaskCompleted, st.tasks[0].Status)
}

func TestDispatch_CompleteTaskMissingIDMutatesNothing(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, nil, utc)
	ctx := context.Background()
	st.SaveTask(ctx, "Dentista", "", "media", time.Now())

	d.Dispatch(ctx, action.CompleteTask{})
	pending, _ := st.PendingTasks(ctx)
	assert.Len(t, pending, 1)
}

func TestDispatch_Memory(t *testing.T) {
	st := newFakeStore()
	d := New(st, st, nil, utc)
	ctx := context.Background()

	res := d.Dispatch(ctx, action.Memory{Info: "cumpleaños de Ana el 3 de mayo", Details: "le gustan las flores"})
	assert.Equal(t, "🧠 He guardado en 'general': 'cumpleaños de Ana el 3 de mayo'", res.Message)
	assert.Equal(t, "general", st.memories["cumpleaños de Ana el 3 de mayo"].Category)

	res = d.Dispatch(ctx, action.Memory{Category: "trabajo"})
	assert.Equal(t, Result{Message: MsgMissingMemoryInfo, Outcome: OutcomeValidation}, res)

	st.err = errors.New("readonly")
	res = d.Dispatch(ctx, action.Memory{Category: "trabajo", Info: "x"})
	assert.Equal(t, Result{Message: MsgMemorySaveFailed, Outcome: OutcomePersistence}, res)
}

func TestDispatch_PlainResponse(t *testing.T) {
	d := New(newFakeStore(), newFakeStore(), nil, utc)
	res := d.Dispatch(context.Background(), action.PlainResponse{Content: "¡Hola! ¿En qué te ayudo?"})
	assert.Equal(t, Result{Message: "¡Hola! ¿En qué te ayudo?", Outcome: OutcomeOK}, res)

	assert.Equal(t, Result{Outcome: OutcomeOK}, d.Dispatch(context.Background(), nil))
}
