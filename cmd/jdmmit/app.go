package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jdmmit/agente/internal/action"
	"github.com/jdmmit/agente/internal/config"
	"github.com/jdmmit/agente/internal/dispatch"
	"github.com/jdmmit/agente/internal/effectors"
	"github.com/jdmmit/agente/internal/executive"
	"github.com/jdmmit/agente/internal/journal"
	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/ollama"
	"github.com/jdmmit/agente/internal/senses"
	"github.com/jdmmit/agente/internal/status"
	"github.com/jdmmit/agente/internal/store"
)

// app wires the collaborators every command shares
type app struct {
	cfg        *config.Config
	store      store.Store
	llm        *ollama.Client
	notifier   effectors.Notifier
	dispatcher *dispatch.Dispatcher
	exec       *executive.Executive
	status     *status.Reporter
	discord    *senses.DiscordSense
	location   *time.Location
}

type appOptions struct {
	// discordChat creates the Discord chat sense; the notifier then shares
	// its session
	discordChat bool
}

// newApp opens storage and builds the executive. A store that cannot be
// opened is fatal; an unreachable model is only logged.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	log := logging.For("main")

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, store: st, location: loc}

	a.llm = ollama.NewClient(ollama.Config{
		BaseURL:       cfg.LLM.Host,
		Model:         cfg.LLM.Model,
		AssistantName: cfg.Assistant.Name,
		Timeout:       cfg.LLM.Timeout,
	})

	var discordSession *discordgo.Session
	if cfg.Discord.Enabled {
		if opts.discordChat {
			a.discord, err = senses.NewDiscordSense(senses.DiscordConfig{
				Token:     cfg.Discord.Token,
				ChannelID: cfg.Discord.ChannelID,
				OwnerID:   cfg.Discord.OwnerID,
			}, nil)
			if err != nil {
				st.Close()
				return nil, err
			}
			discordSession = a.discord.Session()
		} else if discordSession, err = discordgo.New("Bot " + cfg.Discord.Token); err != nil {
			st.Close()
			return nil, fmt.Errorf("discord session: %w", err)
		}
	}

	a.notifier, err = buildNotifier(cfg, discordSession)
	if err != nil {
		st.Close()
		return nil, err
	}

	dates := action.NewDateNormalizer(cfg.Executive.DefaultOffset, loc)
	a.dispatcher = dispatch.New(st, st, a.notifier, dates)
	a.exec = executive.New(a.llm, st, a.dispatcher, executive.Config{
		HistoryLimit: cfg.Executive.HistoryLimit,
		Journal:      journal.New(cfg.StatePath),
	})
	if a.discord != nil {
		a.discord.SetExecutor(a.exec)
	}
	a.status = status.NewReporter(cfg.Assistant.Name, cfg.Assistant.Version, cfg.LLM.Model, st)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.llm.Ping(pingCtx, cfg.LLM.PullMissing); err != nil {
		log.Warnw("model not available, replies will apologise until it is", "host", cfg.LLM.Host, "model", cfg.LLM.Model, "error", err)
	}

	return a, nil
}

// buildNotifier picks notification channels from the capability flags
func buildNotifier(cfg *config.Config, session *discordgo.Session) (effectors.Notifier, error) {
	var ns []effectors.Notifier
	if cfg.EnableDesktopLog {
		ns = append(ns, effectors.LogNotifier{})
	}
	if session != nil {
		channel := cfg.Discord.NotifyChannelID
		if channel == "" {
			channel = cfg.Discord.ChannelID
		}
		if channel != "" {
			ns = append(ns, effectors.NewDiscordNotifier(session, channel))
		}
	}
	if cfg.Email.Enabled {
		email, err := effectors.NewEmailNotifier(effectors.EmailConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.Port,
			User:     cfg.Email.User,
			Password: cfg.Email.Password,
			To:       cfg.Email.To,
		})
		if err != nil {
			return nil, err
		}
		ns = append(ns, email)
	}
	return effectors.Combine(ns...), nil
}

func (a *app) reminders() *senses.ReminderSense {
	return senses.NewReminderSense(senses.ReminderConfig{Timezone: a.location}, a.store, a.notifier)
}

func (a *app) Close() error {
	return a.store.Close()
}
