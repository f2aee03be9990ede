package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdmmit/agente/internal/types"
)

func TestChat_SendsSystemPromptAndUserText(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: `{"tipo":"listar_tareas"}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "llama3.2", AssistantName: "Memorae"})
	history := []types.Conversation{
		{UserInput: "hola", AgentOutput: "¡Hola!"},
		{UserInput: "¿qué tal?", AgentOutput: "Bien"},
	}

	reply, err := c.Chat(context.Background(), "mis tareas", history)
	require.NoError(t, err)
	assert.Equal(t, `{"tipo":"listar_tareas"}`, reply)

	assert.Equal(t, "llama3.2", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Eres Memorae")
	assert.Contains(t, got.Messages[0].Content, "Usuario: hola\nAsistente: ¡Hola!\nUsuario: ¿qué tal?\nAsistente: Bien")
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "mis tareas", got.Messages[1].Content)
}

func TestChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), "hola", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model crashed")
}

func TestChat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.Chat(context.Background(), "hola", nil)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	pulled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"mistral"}]}`))
		case "/api/pull":
			pulled = true
			w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("model present", func(t *testing.T) {
		c := NewClient(Config{BaseURL: srv.URL, Model: "llama3.2"})
		assert.NoError(t, c.Ping(ctx, false))
		assert.False(t, pulled)
	})

	t.Run("model missing without pull", func(t *testing.T) {
		c := NewClient(Config{BaseURL: srv.URL, Model: "qwen2.5:7b"})
		err := c.Ping(ctx, false)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "qwen2.5:7b"))
	})

	t.Run("model missing with pull", func(t *testing.T) {
		c := NewClient(Config{BaseURL: srv.URL, Model: "qwen2.5:7b"})
		assert.NoError(t, c.Ping(ctx, true))
		assert.True(t, pulled)
	})
}

func TestSystemPrompt_NoHistory(t *testing.T) {
	p := SystemPrompt("JDMMitAgente", nil)
	assert.Contains(t, p, "Eres JDMMitAgente")
	assert.Contains(t, p, `"tipo": "completar_tarea"`)
	assert.Contains(t, p, "```json")
	assert.NotContains(t, p, "Usuario:")
}
