// Package mcptools exposes the assistant as MCP tools over stdio.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/store"
	"github.com/jdmmit/agente/internal/types"
)

// Executor runs one exchange
type Executor interface {
	Execute(ctx context.Context, userText, sessionID string) string
}

// Memories reads long-term memory
type Memories interface {
	GetMemory(ctx context.Context, key string) (*types.Memory, error)
	ListMemories(ctx context.Context, category string, limit int) ([]types.Memory, error)
}

// Dependencies holds what the tool handlers need
type Dependencies struct {
	Exec     Executor
	Tasks    interface{ PendingTasks(ctx context.Context) ([]types.Task, error) }
	Memories Memories
	// FormatTasks renders a pending list the same way the chat does
	FormatTasks func([]types.Task) string
	// SessionID is used for execute calls that carry none
	SessionID string
}

// NewServer creates the MCP server with every tool registered
func NewServer(name, version string, deps *Dependencies) *server.MCPServer {
	if deps.SessionID == "" {
		deps.SessionID = "mcp-" + uuid.NewString()
	}
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	s.AddTool(executeTool(), deps.handleExecute)
	s.AddTool(listTasksTool(), deps.handleListTasks)
	s.AddTool(recallMemoryTool(), deps.handleRecallMemory)
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("execute",
		mcp.WithDescription("Send a message to the assistant. It may create or complete tasks, remember facts, or just answer. Returns the assistant's reply."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What the user says, in natural language"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation session. Default: one id per server process"),
		),
	)
}

func (d *Dependencies) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	text, _ := args["text"].(string)
	sessionID, _ := args["session_id"].(string)

	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	if sessionID == "" {
		sessionID = d.SessionID
	}
	return mcp.NewToolResultText(d.Exec.Execute(ctx, text, sessionID)), nil
}

func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List pending tasks ordered by scheduled time."),
	)
}

func (d *Dependencies) handleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := d.Tasks.PendingTasks(ctx)
	if err != nil {
		logging.For("mcp").Errorw("list tasks failed", "error", err)
		return mcp.NewToolResultError("could not list tasks"), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No pending tasks."), nil
	}
	if d.FormatTasks != nil {
		return mcp.NewToolResultText(d.FormatTasks(tasks)), nil
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %d: %s (%s)\n", t.ID, t.Name, t.ScheduledAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func recallMemoryTool() mcp.Tool {
	return mcp.NewTool("recall_memory",
		mcp.WithDescription("Look up long-term memory. With key, returns that fact; otherwise lists facts, optionally filtered by category."),
		mcp.WithString("key",
			mcp.Description("Exact fact to look up"),
		),
		mcp.WithString("category",
			mcp.Description("Category filter when listing (personal, trabajo, ...)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum facts to list. Default: 10"),
		),
	)
}

func (d *Dependencies) handleRecallMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	key, _ := args["key"].(string)
	category, _ := args["category"].(string)
	limit := 10
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	if key != "" {
		m, err := d.Memories.GetMemory(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("Nothing remembered for %q.", key)), nil
		}
		if err != nil {
			logging.For("mcp").Errorw("get memory failed", "key", key, "error", err)
			return mcp.NewToolResultError("could not read memory"), nil
		}
		return mcp.NewToolResultText(formatMemory(*m)), nil
	}

	mems, err := d.Memories.ListMemories(ctx, category, limit)
	if err != nil {
		logging.For("mcp").Errorw("list memories failed", "category", category, "error", err)
		return mcp.NewToolResultError("could not read memory"), nil
	}
	if len(mems) == 0 {
		return mcp.NewToolResultText("No memories stored."), nil
	}
	lines := make([]string, len(mems))
	for i, m := range mems {
		lines[i] = formatMemory(m)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func formatMemory(m types.Memory) string {
	s := fmt.Sprintf("[%s] %s", m.Category, m.Key)
	if m.Details != "" {
		s += ": " + m.Details
	}
	return s
}
