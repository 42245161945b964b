package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/taskpilot/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking TASKPILOT_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("TASKPILOT_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the taskpilot CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskpilot",
		Short: "taskpilot — task prioritization and scheduling engine",
		Long:  "taskpilot recomputes task priorities and builds per-worker schedules on a fixed cycle.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "taskpilot server URL (or TASKPILOT_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRecalculateCmd(),
		newScheduleCmd(),
		newListCmd(),
		newBoostCmd(),
		newStatusCmd(),
	)

	return root
}
