package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glimte/protoreg"
	"github.com/glimte/protoreg/internal/config"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgCyan, color.Bold)
)

// errInvalidDocument signals a completed validation that found errors.
// The errors have already been printed.
var errInvalidDocument = errors.New("document is invalid")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errInvalidDocument) {
			errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand
type app struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "protoreg",
		Short: "Protocol schema registry and validator",
		Long: `protoreg compiles schema documents describing network protocols and
validates configuration documents against them by protocol name.
Schemas are loaded from JSON, YAML or TOML files.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default ./protoreg.yaml)")
	flags.StringP("schemas", "s", "", "schema directory")
	flags.Bool("strict", true, "reject fields the schema does not declare")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	_ = a.v.BindPFlag("schemas.dir", flags.Lookup("schemas"))
	_ = a.v.BindPFlag("validation.strict", flags.Lookup("strict"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(newGenerateCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))
	rootCmd.AddCommand(newListCommand(a))
	rootCmd.AddCommand(newDescribeCommand(a))
	rootCmd.AddCommand(newExportCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

func (a *app) init(logOut io.Writer) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(logOut, cfg.Log)
	if err != nil {
		return err
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// loadRegistry loads the schema directory and freezes the registry. Files
// and protocols that fail are reported as warnings; the rest stay usable.
func (a *app) loadRegistry(warnings io.Writer) (*protoreg.Registry, error) {
	reg := protoreg.NewRegistry(
		protoreg.WithLogger(a.logger),
		protoreg.WithStrictMode(a.cfg.Validation.Strict),
	)

	failed, err := reg.LoadDir(a.cfg.Schemas.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		warnColor.Fprintf(warnings, "warning: %s: %v\n", k, failed[k])
	}

	reg.Freeze()
	return reg, nil
}
