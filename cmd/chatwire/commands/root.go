// Package commands provides the CLI commands for chatwire.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "chatwire",
	Short: "chatwire - streaming chat client and reference server",
	Long: `chatwire streams chat conversations over a tagged line protocol and
reconstructs them into messages on the client side.

Run 'chatwire run "your message"' for a one-shot request, 'chatwire chat'
for an interactive session, or 'chatwire serve' to start the reference
server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
	// If no subcommand, show help
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("chatwire %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(debugCmd)
}

// initLogging routes logs to a file under the state directory so stdout
// stays clean for streamed text. --print-logs mirrors them to stderr.
func initLogging() {
	paths := config.GetPaths()
	_ = paths.EnsurePaths()

	var out io.Writer = io.Discard
	if printLogs {
		out = os.Stderr
	}
	logging.Init(logging.Config{
		Level:     logging.ParseLevel(logLevel),
		Output:    out,
		Pretty:    printLogs,
		LogToFile: true,
		LogDir:    paths.State,
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
