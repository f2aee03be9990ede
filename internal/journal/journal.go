// Package journal keeps an append-only audit of exchanges in
// state/journal.jsonl.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jdmmit/agente/internal/logging"
)

// inputLimit caps how much of the user text is stored per entry
const inputLimit = 200

// Entry is one exchange
type Entry struct {
	Timestamp time.Time `json:"ts"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`    // payload kind, or "upstream" when the model failed
	Outcome   string    `json:"outcome"` // ok, validation, persistence, upstream
	Input     string    `json:"input,omitempty"`
	Duration  float64   `json:"duration_ms,omitempty"`
}

// Journal writes entries to a JSONL file
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a journal writer under statePath
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "journal.jsonl"),
		now:  time.Now,
	}
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.path
}

// Log appends an entry
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = j.now()
	}
	entry.Input = logging.Truncate(entry.Input, inputLimit)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// Record logs an entry and only reports failures to the log
func (j *Journal) Record(entry Entry) {
	if err := j.Log(entry); err != nil {
		logging.For("journal").Warnw("journal write failed", "path", j.path, "error", err)
	}
}

// Recent returns the last n entries. Malformed lines are skipped.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if n <= 0 || n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// Today returns entries logged since local midnight
func (j *Journal) Today() ([]Entry, error) {
	entries, err := j.Recent(0)
	if err != nil {
		return nil, err
	}

	now := j.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var today []Entry
	for _, e := range entries {
		if !e.Timestamp.Before(midnight) {
			today = append(today, e)
		}
	}
	return today, nil
}
