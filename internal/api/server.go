// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/status"
	"github.com/jdmmit/agente/internal/types"
)

const maxBodyBytes = 64 << 10

// Executor runs one exchange
type Executor interface {
	Execute(ctx context.Context, userText, sessionID string) string
}

// TaskLister lists pending tasks
type TaskLister interface {
	PendingTasks(ctx context.Context) ([]types.Task, error)
}

// StatusReporter produces status snapshots
type StatusReporter interface {
	Snapshot(ctx context.Context) status.Snapshot
}

// Server holds the HTTP handlers
type Server struct {
	exec   Executor
	tasks  TaskLister
	status StatusReporter
}

// NewServer builds the router
func NewServer(exec Executor, tasks TaskLister, st StatusReporter) http.Handler {
	s := &Server{exec: exec, tasks: tasks, status: st}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return mux
}

type messageRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type messageResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type taskResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply := s.exec.Execute(r.Context(), req.Text, req.SessionID)
	writeJSON(w, http.StatusOK, messageResponse{Response: reply, SessionID: req.SessionID})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.PendingTasks(r.Context())
	if err != nil {
		logging.For("api").Errorw("list tasks failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list tasks"})
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Priority:    t.Priority,
			ScheduledAt: t.ScheduledAt,
			Status:      string(t.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it
// down gracefully
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	log := logging.For("api")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
