// jdmmit is a personal assistant that turns what you say into tasks,
// memories or plain answers, backed by a local Ollama model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdmmit/agente/internal/config"
	"github.com/jdmmit/agente/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jdmmit",
	Short: "Personal assistant with tasks, reminders and long-term memory",
	Long: `jdmmit talks to a local Ollama model. Each message becomes either a
plain answer or an action: create a task, list or complete pending tasks,
or remember a fact.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if verbose {
			cfg.Debug = true
		}
		return logging.Init(logging.Options{Debug: cfg.Debug, JSON: cfg.LogJSON})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(chatCmd, runCmd, tasksCmd, statusCmd, serveCmd, discordCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
