package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"codebuddy/internal/config"
)

// app carries the resolved configuration and logger to subcommands.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	cfg config.Config
	log zerolog.Logger
	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:           "codebuddyd",
		Short:         "Local CodeLlama code assistant for Python and PowerShell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("CODEBUDDY_CONFIG"), "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: console|json (default console)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		a.out = cmd.OutOrStdout()
		return a.init(cmd)
	}

	root.AddCommand(newServeCmd(a), newProfileCmd(a), newDetectCmd(a), newGenerateCmd(a))
	return root
}

// init resolves settings: file, then environment, then root flags.
// Subcommands apply their own flags on top.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadOptional(a.cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger(), nil
}

// splitCSV splits a comma separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
