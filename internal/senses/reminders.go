package senses

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jdmmit/agente/internal/effectors"
	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/types"
)

// DefaultReminderPollInterval is how often pending tasks are checked
const DefaultReminderPollInterval = time.Minute

// ReminderTitle heads every due-task notification
const ReminderTitle = "⏰ Recordatorio"

// PendingLister is satisfied by the store
type PendingLister interface {
	PendingTasks(ctx context.Context) ([]types.Task, error)
}

// ReminderConfig holds configuration for the reminder sense
type ReminderConfig struct {
	PollInterval time.Duration
	// Lead sends the reminder this long before the scheduled time
	Lead     time.Duration
	Timezone *time.Location
}

// ReminderSense notifies once for each pending task whose time has come
type ReminderSense struct {
	tasks        PendingLister
	notifier     effectors.Notifier
	pollInterval time.Duration
	lead         time.Duration
	timezone     *time.Location
	now          func() time.Time

	mu       sync.Mutex
	notified map[int64]time.Time // task id -> when we notified
}

// NewReminderSense creates a reminder sense
func NewReminderSense(cfg ReminderConfig, tasks PendingLister, notifier effectors.Notifier) *ReminderSense {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReminderPollInterval
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.Local
	}
	if notifier == nil {
		notifier = effectors.Nop{}
	}
	return &ReminderSense{
		tasks:        tasks,
		notifier:     notifier,
		pollInterval: cfg.PollInterval,
		lead:         cfg.Lead,
		timezone:     cfg.Timezone,
		now:          time.Now,
		notified:     make(map[int64]time.Time),
	}
}

// Run polls until ctx is cancelled
func (r *ReminderSense) Run(ctx context.Context) error {
	logging.For("reminders").Infow("started", "interval", r.pollInterval, "lead", r.lead)

	r.poll(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *ReminderSense) poll(ctx context.Context) {
	log := logging.For("reminders")
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tasks, err := r.tasks.PendingTasks(ctx)
	if err != nil {
		log.Errorw("list pending tasks failed", "error", err)
		return
	}

	now := r.now()
	for _, t := range tasks {
		if t.ScheduledAt.After(now.Add(r.lead)) || r.alreadyNotified(t.ID) {
			continue
		}
		msg := fmt.Sprintf("%s (%s)", t.Name, t.ScheduledAt.In(r.timezone).Format("2006-01-02 15:04"))
		if err := r.notifier.Notify(ctx, ReminderTitle, msg); err != nil {
			// retried on the next poll
			log.Warnw("reminder failed", "task", t.ID, "error", err)
			continue
		}
		r.mu.Lock()
		r.notified[t.ID] = now
		r.mu.Unlock()
	}

	r.cleanup(now)
}

func (r *ReminderSense) alreadyNotified(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.notified[id]
	return ok
}

// cleanup forgets reminders older than a day
func (r *ReminderSense) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range r.notified {
		if now.Sub(at) > 24*time.Hour {
			delete(r.notified, id)
		}
	}
}
