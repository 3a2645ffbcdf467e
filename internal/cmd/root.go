package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/widget-specsheets/internal/config"
	"github.com/tomasbasham/widget-specsheets/internal/logger"
)

var (
	rootLong = templates.LongDesc(`
		Manage widgets and their specsheets.

		Specsheets are uploaded into a directory (a storage bucket) that is
		created on first use. Configuration is read from an optional YAML
		file and WIDGETS_* environment variables; flags take precedence.`)

	rootExamples = templates.Examples(`
		# Apply pending database migrations
		widgets migrate up

		# Upload a specsheet into the configured directory
		widgets upload ./sprocket.pdf widgets/sprocket.pdf

		# Serve the HTTP API
		widgets serve --config widgets.yaml`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// WidgetsOptions defines the options for the `widgets` command.
type WidgetsOptions struct {
	ConfigPath string
	LogLevel   string

	iooption.IOStreams
}

// NewWidgetsOptions provides an initialised WidgetsOptions instance.
func NewWidgetsOptions(streams iooption.IOStreams) *WidgetsOptions {
	return &WidgetsOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `widgets` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewWidgetsOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `widgets` command and its nested
// children.
func NewRootCommandWithArgs(o *WidgetsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "widgets [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Widget specsheet storage tool",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&o.ConfigPath, "config", "c", "", "Path to a YAML configuration file")
	pflags.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error (default from config)")

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.AddCommand(NewMigrateCommand(NewMigrateOptions(o)))
	cmd.AddCommand(NewUploadCommand(NewUploadOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))

	// The globlal normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

// load reads the configuration and installs the logger every subcommand
// shares. Logs go to ErrOut so that Out stays machine readable.
func (o *WidgetsOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Init(o.ErrOut, level), nil
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
