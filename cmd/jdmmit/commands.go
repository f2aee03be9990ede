package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jdmmit/agente/internal/api"
	"github.com/jdmmit/agente/internal/dispatch"
	"github.com/jdmmit/agente/internal/logging"
	"github.com/jdmmit/agente/internal/mcptools"
)

// exitWords end the interactive chat
var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send a single message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.exec.Execute(ctx, strings.Join(args, " "), sessionID))
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List pending tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.store.PendingTasks(ctx)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dispatch.MsgNoPendingTasks)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.dispatcher.FormatTasks(tasks))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show process and model status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, a.status.Snapshot(ctx))
		if err := a.llm.Ping(ctx, false); err != nil {
			fmt.Fprintf(out, "  ollama: unavailable (%v)\n", err)
		} else {
			fmt.Fprintf(out, "  ollama: ok (%s)\n", cfg.LLM.Host)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, reminders and, when enabled, the Discord chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{discordChat: cfg.Discord.Enabled})
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)
		if cfg.HTTP.Enabled {
			g.Go(func() error {
				return api.ListenAndServe(ctx, cfg.HTTP.Addr, api.NewServer(a.exec, a.store, a.status))
			})
		}
		g.Go(func() error { return a.reminders().Run(ctx) })
		if a.discord != nil {
			g.Go(func() error { return runDiscord(ctx, a) })
		}
		return g.Wait()
	},
}

var discordCmd = &cobra.Command{
	Use:   "discord",
	Short: "Chat through Discord",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Discord.Enabled {
			cfg.Discord.Enabled = true
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{discordChat: true})
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.reminders().Run(ctx) })
		g.Go(func() error { return runDiscord(ctx, a) })
		return g.Wait()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		s := mcptools.NewServer(cfg.Assistant.Name, cfg.Assistant.Version, &mcptools.Dependencies{
			Exec:        a.exec,
			Tasks:       a.store,
			Memories:    a.store,
			FormatTasks: a.dispatcher.FormatTasks,
		})
		return mcptools.Serve(s)
	},
}

func init() {
	runCmd.Flags().String("session", "", "session id (default: a new one)")
}

// runDiscord keeps the Discord sense connected until ctx ends
func runDiscord(ctx context.Context, a *app) error {
	if err := a.discord.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.discord.Stop()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "%s v%s. Escribe 'salir' para terminar.\n", cfg.Assistant.Name, cfg.Assistant.Version)
	return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.exec, cfg.Assistant.Name, uuid.NewString())
}

type executor interface {
	Execute(ctx context.Context, userText, sessionID string) string
}

// chatLoop reads one message per line until an exit word or EOF
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, exec executor, name, sessionID string) error {
	logging.For("chat").Debugw("session started", "session", sessionID)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Tú: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			fmt.Fprintln(out, "¡Hasta luego!")
			return nil
		}
		fmt.Fprintf(out, "%s: %s\n", name, exec.Execute(ctx, line, sessionID))
	}
}
