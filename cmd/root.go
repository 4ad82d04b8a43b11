// Package cmd defines and implements the CLI commands for the jdkdb executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/jdkdb-crawler/internal/app"
	"github.com/JakeFAU/jdkdb-crawler/internal/config"
	"github.com/JakeFAU/jdkdb-crawler/internal/id/uuid"
	"github.com/JakeFAU/jdkdb-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap in
// collaborators that never touch the network.
var newApp = func(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, runID, logger, app.Options{})
}

// exitError carries a process exit status without an error message.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type rootOptions struct {
	cfgFile string
	envFile string
}

// newRootCmd creates and configures the root command. Every flag is bound to
// a key on v so config files, JDKDB_* variables and flags share one view.
func newRootCmd(v *viper.Viper) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "jdkdb",
		Short: "Crawl JDK vendors and fingerprint their release artifacts.",
		Long: `jdkdb discovers JDK release artifacts published by each vendor, downloads
and hashes them, and maintains one metadata record per artifact plus merged
per-vendor and global indexes.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.Load(v, config.Options{File: opts.cfgFile, EnvFile: opts.envFile})
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, uuid.NewRunID(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, err := resolveApp(cmd.Context()); err == nil {
				appInstance.Close()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.String("metadata-dir", "", "metadata root (default docs/metadata)")
	flags.String("checksum-dir", "", "checksum root (default docs/checksums)")
	flags.Bool("dev", true, "human-readable development logging")
	cobra.CheckErr(v.BindPFlag("paths.metadata_dir", flags.Lookup("metadata-dir")))
	cobra.CheckErr(v.BindPFlag("paths.checksum_dir", flags.Lookup("checksum-dir")))
	cobra.CheckErr(v.BindPFlag("logging.development", flags.Lookup("dev")))

	cmd.AddCommand(
		newUpdateCmd(),
		newListCmd(),
		newIndexCmd(),
		newDownloadCmd(),
	)
	return cmd
}

// bindFlags binds the executing command's flags listed in its Annotations
// (flag name to config key). Binding happens per invocation since several
// subcommands share config keys.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range cmd.Annotations {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newRootCmd(config.New()).ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "jdkdb:", err)
	return 1
}
