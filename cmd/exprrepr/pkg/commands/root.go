// Package commands implements the exprrepr subcommands. Each command reads
// the shared App for configuration, logging and the sample environment.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/cli"
	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/config"
	"github.com/orizon-lang/exprrepr/internal/descriptor"
	"github.com/orizon-lang/exprrepr/internal/sample"
)

// App is the state shared by every subcommand.
type App struct {
	Out io.Writer
	Err io.Writer

	Config *config.Config
	Log    *slog.Logger

	configPath string
	debug      bool
	maxDepth   int
	output     string
}

// Logr returns the application logger for library packages.
func (a *App) Logr() logr.Logger {
	if a.Log == nil {
		return logr.Discard()
	}
	return cli.Logr(a.Log)
}

// MaxDepth is the configured tree depth limit.
func (a *App) MaxDepth() int {
	if a.Config == nil {
		return astbridge.DefaultMaxDepth
	}
	return a.Config.Limits.MaxDepth
}

// Environment returns the sample catalog and a codec that knows the sample
// value types.
func (a *App) Environment() (descriptor.Catalog, *codec.Codec, error) {
	cat, err := sample.Catalog()
	if err != nil {
		return nil, nil, err
	}
	values := codec.NewRegistry()
	for _, t := range sample.ValueTypes() {
		if err := values.RegisterType(t, codec.ReflectValue(t)); err != nil {
			return nil, nil, err
		}
	}
	return cat, codec.New(values.Freeze(), codec.WithMaxDepth(a.MaxDepth())), nil
}

func (a *App) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.maxDepth > 0 {
		cfg.Limits.MaxDepth = a.maxDepth
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	colored := cli.ColorEnabled(cfg.Log.Color)
	color.NoColor = !colored
	a.Config = cfg
	a.Log = cli.NewLogger(a.Err, level, colored)
	return nil
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exprrepr",
		Short: "Convert expression trees to and from their serializable representation",
		Long: cli.Highlight("exprrepr [global options] <command> [args]") + "\n\n" +
			"exprrepr converts executable expression trees into a serializable\n" +
			"representation and rebuilds them against a descriptor catalog.\n",
		Version:       cli.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "configuration file (default "+config.DefaultFile+" when present)")
	flags.BoolVar(&app.debug, "debug", false, "set log level to debug")
	flags.IntVar(&app.maxDepth, "max-depth", 0, "override limits.max_depth")
	flags.StringVarP(&app.output, "output", "o", "json", "representation format. One of: (json | yaml)")

	cmd.AddCommand(
		NewVersionCommand(app),
		NewDemoCommand(app),
		NewDumpCommand(app),
		NewCheckCommand(app),
		NewEvalCommand(app),
		NewServeCommand(app),
		NewWatchCommand(app),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	app := &App{Out: out, Err: errOut}
	root := NewRootCommand(app)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, color.RedString("Error:"), err)
		return 1
	}
	return 0
}

// NewVersionCommand prints build and format version information.
func NewVersionCommand(app *App) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.PrintVersion(app.Out, "exprrepr", cli.GetVersionInfo(codec.FormatVersion), jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}
