// Package commands defines the Cobra CLI commands for the docrecall binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/docrecall/internal/config"
	"github.com/dshills/docrecall/internal/logging"
)

// state is shared by all subcommands of one root command.
type state struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "docrecall",
		Short: "Hybrid vector and keyword retrieval over users' documents",
		Long: `docrecall stores users' documents as embedded chunks and answers
questions with the most relevant passages, combining vector similarity with
keyword matching and recency.

Configuration is read from a YAML file (~/.docrecall/config.yaml or
./docrecall.yaml) and overridden by DOCRECALL_* environment variables.
See 'docrecall --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&st.configPath, "config", "", "Path to YAML config file (default: ~/.docrecall/config.yaml)")
	flags.StringVar(&st.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&st.logFormat, "log-format", "", "Log format: json, text (overrides config)")

	root.AddCommand(
		newServeCmd(st),
		newQueryCmd(st),
		newIngestCmd(st),
		newDeleteDocumentCmd(st),
		newDeleteOwnerCmd(st),
		newConfirmCmd(st),
		newStatsCmd(st),
		newVersionCmd(),
	)

	return root
}

// load resolves configuration and builds the logger
func (st *state) load(cmd *cobra.Command) error {
	bootstrap := logging.NewWithOptions(logging.Options{Level: st.logLevel, Format: st.logFormat})

	cfg, path, err := config.Load(st.configPath, bootstrap)
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		cfg.Logging.Level = st.logLevel
	}
	if st.logFormat != "" {
		cfg.Logging.Format = st.logFormat
	}

	st.cfg = cfg
	st.logger = logging.NewWithOptions(cfg.LoggingOptions())
	st.logger.Debug("command starting",
		slog.String("command", cmd.Name()),
		slog.String("config", path),
		slog.String("storage", cfg.Storage.Driver))
	cmd.SetContext(logging.WithLogger(cmd.Context(), st.logger))
	return nil
}
