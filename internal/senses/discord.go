// Package senses connects outside channels to the assistant: Discord chat
// and the due-task reminder poller.
package senses

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/jdmmit/agente/internal/logging"
)

// discordMaxMessage is Discord's limit on message length
const discordMaxMessage = 2000

// Executor runs one exchange
type Executor interface {
	Execute(ctx context.Context, userText, sessionID string) string
}

// chatSession is the part of *discordgo.Session used for replies
type chatSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// DiscordConfig holds Discord connection settings
type DiscordConfig struct {
	Token     string
	ChannelID string // only this channel is served when set
	OwnerID   string // only this author is served when set
}

// DiscordSense answers Discord messages through the executive. The channel
// id is used as the session id.
type DiscordSense struct {
	session   *discordgo.Session
	replies   chatSession
	channelID string
	ownerID   string
	botID     string
	exec      Executor

	// ctx bounds in-flight exchanges; set by Start
	ctx context.Context
}

// NewDiscordSense creates a new Discord sense
func NewDiscordSense(cfg DiscordConfig, exec Executor) (*DiscordSense, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	sense := &DiscordSense{
		session:   session,
		replies:   session,
		channelID: cfg.ChannelID,
		ownerID:   cfg.OwnerID,
		exec:      exec,
		ctx:       context.Background(),
	}

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		sense.onMessage(m)
	})
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return sense, nil
}

// Start connects to Discord and begins listening. Exchanges started by
// incoming messages use ctx, so cancelling it aborts them.
func (d *DiscordSense) Start(ctx context.Context) error {
	d.ctx = ctx
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	d.botID = d.session.State.User.ID
	logging.For("discord").Infow("connected", "user", d.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord
func (d *DiscordSense) Stop() error {
	return d.session.Close()
}

// SetExecutor sets the executive after construction, when the executive
// itself depends on this sense's session
func (d *DiscordSense) SetExecutor(exec Executor) {
	d.exec = exec
}

// Session returns the underlying Discord session, shared with the notifier
func (d *DiscordSense) Session() *discordgo.Session {
	return d.session
}

// accepts reports whether m should be answered
func (d *DiscordSense) accepts(m *discordgo.MessageCreate) bool {
	if m.Author == nil || m.Author.Bot || m.Author.ID == d.botID {
		return false
	}
	if d.channelID != "" && m.ChannelID != d.channelID {
		return false
	}
	if d.ownerID != "" && m.Author.ID != d.ownerID {
		return false
	}
	return strings.TrimSpace(m.Content) != ""
}

func (d *DiscordSense) onMessage(m *discordgo.MessageCreate) {
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	d.handleMessage(ctx, m)
}

func (d *DiscordSense) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if !d.accepts(m) {
		return
	}
	log := logging.For("discord")
	log.Debugw("message", "channel", m.ChannelID, "content", logging.Truncate(m.Content, 50))

	if err := d.replies.ChannelTyping(m.ChannelID); err != nil {
		log.Debugw("typing indicator failed", "error", err)
	}

	reply := d.exec.Execute(ctx, m.Content, m.ChannelID)
	for _, part := range splitMessage(reply, discordMaxMessage) {
		if _, err := d.replies.ChannelMessageSend(m.ChannelID, part); err != nil {
			log.Warnw("reply failed", "channel", m.ChannelID, "error", err)
			return
		}
	}
}

// splitMessage breaks s into chunks of at most limit bytes, preferring
// line boundaries
func splitMessage(s string, limit int) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for len(s) > limit {
		cut := strings.LastIndex(s[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		parts = append(parts, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
