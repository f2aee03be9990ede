// Package executive drives one exchange: context, model call, extraction,
// dispatch and persistence.
package executive

import (
	"context"
	"time"

	"github.com/jdmmit/agente/internal/action"
	"github.com/jdmmit/agente/internal/dispatch"
	"github.com/jdmmit/agente/internal/journal"
	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/types"
)

// DefaultHistoryLimit is how many past exchanges are sent as context
const DefaultHistoryLimit = 5

// ApologyMessage is returned whenever the model cannot be reached
const ApologyMessage = "Disculpa, he encontrado un problema técnico al procesar tu solicitud. Por favor, inténtalo de nuevo."

// LLM produces the raw reply for a user message
type LLM interface {
	Chat(ctx context.Context, userText string, history []types.Conversation) (string, error)
}

// ConversationStore is the history side of the persistence collaborator
type ConversationStore interface {
	RecentConversations(ctx context.Context, limit int) ([]types.Conversation, error)
	SaveConversation(ctx context.Context, userInput, agentOutput, sessionID string) error
}

// Dispatcher executes a payload
type Dispatcher interface {
	Dispatch(ctx context.Context, p action.Payload) dispatch.Result
}

// Config tunes the executive
type Config struct {
	HistoryLimit int
	// Journal receives one entry per exchange when set
	Journal *journal.Journal
	// OnExchange is called after the exchange is persisted
	OnExchange func(sessionID string, kind action.Kind, outcome dispatch.Outcome)
}

// Executive is safe for concurrent use; it keeps no state between calls
type Executive struct {
	llm          LLM
	conversation ConversationStore
	dispatcher   Dispatcher
	config       Config
}

// New creates an executive
func New(llm LLM, conversation ConversationStore, dispatcher Dispatcher, cfg Config) *Executive {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Executive{
		llm:          llm,
		conversation: conversation,
		dispatcher:   dispatcher,
		config:       cfg,
	}
}

// Execute turns userText into a reply. It never fails: model errors become
// ApologyMessage and the exchange is always saved.
func (e *Executive) Execute(ctx context.Context, userText, sessionID string) string {
	log := logging.For("executive")
	start := time.Now()

	history, err := e.conversation.RecentConversations(ctx, e.config.HistoryLimit)
	if err != nil {
		log.Errorw("load context window failed", "session", sessionID, "error", err)
		history = nil
	}

	var (
		reply   string
		kind    action.Kind
		outcome dispatch.Outcome
	)

	raw, err := e.llm.Chat(ctx, userText, history)
	if err != nil {
		log.Errorw("model call failed", "session", sessionID, "input", logging.Truncate(userText, 80), "error", err)
		reply = ApologyMessage
		outcome = dispatch.OutcomeUpstream
	} else {
		payload := action.Extract(raw)
		kind = payload.Kind()
		log.Debugw("payload extracted", "session", sessionID, "kind", kind)

		res := e.dispatcher.Dispatch(ctx, payload)
		reply, outcome = res.Message, res.Outcome
	}

	// persisted even when the model failed so the history stays complete
	if err := e.conversation.SaveConversation(ctx, userText, reply, sessionID); err != nil {
		log.Errorw("save conversation failed", "session", sessionID, "error", err)
	}

	if e.config.Journal != nil {
		journalKind := string(kind)
		if kind == "" {
			journalKind = string(dispatch.OutcomeUpstream)
		}
		e.config.Journal.Record(journal.Entry{
			SessionID: sessionID,
			Kind:      journalKind,
			Outcome:   string(outcome),
			Input:     userText,
			Duration:  float64(time.Since(start).Microseconds()) / 1000,
		})
	}
	if e.config.OnExchange != nil {
		e.config.OnExchange(sessionID, kind, outcome)
	}

	return reply
}
