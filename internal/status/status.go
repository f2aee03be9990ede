// Package status reports process health for the status command and the
// HTTP status endpoint.
package status

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/jdmmit/agente/internal/types"
)

// PendingLister is satisfied by the store
type PendingLister interface {
	PendingTasks(ctx context.Context) ([]types.Task, error)
}

// Snapshot is a point-in-time view of the running assistant
type Snapshot struct {
	Assistant    string  `json:"assistant"`
	Version      string  `json:"version"`
	Model        string  `json:"model,omitempty"`
	PID          int32   `json:"pid"`
	RSSBytes     uint64  `json:"rss_bytes"`
	CPUPercent   float64 `json:"cpu_percent"`
	Uptime       string  `json:"uptime"`
	PendingTasks int     `json:"pending_tasks"`
	Error        string  `json:"error,omitempty"`
}

// Reporter builds snapshots
type Reporter struct {
	Assistant string
	Version   string
	Model     string
	Tasks     PendingLister

	started time.Time
	pid     int32
}

// NewReporter creates a reporter for the current process
func NewReporter(assistant, version, model string, tasks PendingLister) *Reporter {
	return &Reporter{
		Assistant: assistant,
		Version:   version,
		Model:     model,
		Tasks:     tasks,
		started:   time.Now(),
		pid:       int32(os.Getpid()),
	}
}

// Snapshot collects process stats and the pending task count. Partial
// failures are reported in Error rather than aborting.
func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		Assistant: r.Assistant,
		Version:   r.Version,
		Model:     r.Model,
		PID:       r.pid,
		Uptime:    time.Since(r.started).Truncate(time.Second).String(),
	}

	var problems []string
	if p, err := process.NewProcessWithContext(ctx, r.pid); err != nil {
		problems = append(problems, fmt.Sprintf("process: %v", err))
	} else {
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			s.RSSBytes = mem.RSS
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			s.CPUPercent = cpu
		}
	}

	if r.Tasks != nil {
		tasks, err := r.Tasks.PendingTasks(ctx)
		if err != nil {
			problems = append(problems, fmt.Sprintf("tasks: %v", err))
		} else {
			s.PendingTasks = len(tasks)
		}
	}

	if len(problems) > 0 {
		s.Error = fmt.Sprint(problems)
	}
	return s
}

// String renders the snapshot for the terminal
func (s Snapshot) String() string {
	out := fmt.Sprintf("%s v%s\n  pid: %d\n  rss: %.1f MiB\n  cpu: %.1f%%\n  uptime: %s\n  pending tasks: %d",
		s.Assistant, s.Version, s.PID, float64(s.RSSBytes)/(1<<20), s.CPUPercent, s.Uptime, s.PendingTasks)
	if s.Model != "" {
		out += "\n  model: " + s.Model
	}
	if s.Error != "" {
		out += "\n  error: " + s.Error
	}
	return out
}
