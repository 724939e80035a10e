package main

import (
	"fmt"
	"os"
	"os/user"

	"dirigent/internal/config"
	"dirigent/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dirigent",
	Short: "dirigent - directive-driven chat agent",
	Long: `dirigent connects chat channels (Discord, Telegram, the local console)
to a model backend and a catalog of commands the model can invoke:
URL fetching, web search, issue tracking, task files, schedules,
sandboxed code execution, and MCP tools.

Run without arguments to start the interactive console.`,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd, args)
	},
}

func init() {
	// Assigned here rather than in the composite literal: the closure
	// references rootCmd, which would otherwise be an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Skip logger init for the interactive console (it owns the terminal)
		if cmd.Name() == rootCmd.Name() || cmd.Name() == "console" {
			return nil
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Init(logging.Options{
			Level:  level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// currentUserName names the local operator for the console session.
func currentUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "console"
}
