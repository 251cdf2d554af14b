// Package cmd implements the command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imwonpark/RAG-based-SE/config"
)

// rootOptions carries the persistent flags and the loaded config to the
// subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
	output     string
	cfg        *config.AppConfig
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command and all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ragse",
		Short: "Question answering over engineering documentation",
		Long: `ragse indexes markdown, text and PDF documentation into a vector index
and answers questions by retrieving the most relevant chunks.

Answers are extractive by default. Enable the llm section of the config
(or set RAG_LLM_ENABLED=true) to have an LLM compose them from the
retrieved context.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	defaultConfig := os.Getenv("RAG_CONFIG")
	if defaultConfig == "" {
		defaultConfig = config.DefaultPath
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfig, "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.output, "format", "o", "text", "Output format (text, json)")

	cmd.AddCommand(
		NewInitCmd(opts),
		NewServeCmd(opts),
		NewIndexCmd(opts),
		NewQueryCmd(opts),
		NewBatchCmd(opts),
		NewStatsCmd(opts),
		NewClearCmd(opts),
		NewDeleteCmd(opts),
		NewMCPCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() error {
	if o.output != "text" && o.output != "json" {
		return fmt.Errorf("invalid --format %q: must be text or json", o.output)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	slog.SetDefault(newLogger(cfg.Log))
	o.cfg = cfg
	return nil
}

// newLogger builds the process logger. Logs go to stderr so that stdout stays
// free for command output and the MCP transport.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}
