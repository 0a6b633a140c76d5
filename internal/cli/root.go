package cli

import (
	"log/slog"
	"os"

	"github.com/me/ppsched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking PPSCHED_SERVER first.
func defaultServer() string {
	if s := os.Getenv("PPSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the ppsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ppsched",
		Short: "ppsched - render-slot job scheduler",
		Long:  "ppsched inspects and controls a ppsched server and runs workloads against simulated hardware.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "ppsched server URL (or PPSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newStatusCmd(),
		newStateCmd(),
		newSuspendCmd(),
		newResumeCmd(),
		newSubmitCmd(),
		newResultsCmd(),
		newSimulateCmd(),
	)

	return root
}
