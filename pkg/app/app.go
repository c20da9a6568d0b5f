package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chowspace/pkg/config"
	"chowspace/pkg/version"
)

// Run executes the chowspace command line so every entry point shares one code path.
// A nil logger is built from configuration once flags are parsed.
func Run(ctx context.Context, args []string, logger *zap.Logger) error {
	root := newRootCommand(logger, os.Stdout)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// env is the state shared by every subcommand once the root has loaded configuration.
type env struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	owned  bool
}

func newRootCommand(logger *zap.Logger, out io.Writer) *cobra.Command {
	e := &env{logger: logger}

	root := &cobra.Command{
		Use:           "chowspace",
		Short:         "Food-ordering storefront with multi-pack carts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.owned {
				_ = e.logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "Path to a YAML config file (defaults to $CHOWSPACE_CONFIG)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCommand(e),
		newOrdersCommand(e),
		newMenuCommand(e),
		&cobra.Command{
			Use:   "version",
			Short: "Show the application version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "chowspace version %s\n", version.Version())
			},
		},
	)
	return root
}

// load reads configuration and prepares the logger.
func (e *env) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.verbose {
		cfg.Log.Verbose = true
	}
	e.cfg = cfg

	if e.logger == nil {
		logger, err := newLogger(cfg.Log.Verbose)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		e.logger = logger
		e.owned = true
	}
	return nil
}

// newLogger uses zap's production configuration, lowered to debug when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
