// Package cmd implements the gonuke command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/gonuke/internal/observability"
)

// versionInfo holds build-time version metadata, set via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "gonuke",
	Short: "Bulk deletion for versioned object-storage buckets",
	Long: `gonuke recursively deletes every object version under a path in a
versioned bucket, using parallel enumeration and parallel batched deletion
so that purges of millions of keys complete in bounded time.

Deletion is destructive and best-effort by design: failed batches are
dropped, not retried. Use --dry-run first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := observability.InitLogging(
			viper.GetString("logging.level"),
			viper.GetBool("quiet"),
		); err != nil {
			return err
		}
		if configErr != nil {
			observability.CLILogger.Warn("Ignoring unreadable config file", zap.Error(configErr))
		}
		return nil
	},
}

var (
	rootLogLevel string
	rootQuiet    bool

	// configErr holds a config file read failure until logging is up.
	configErr error
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress informational logs")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// initConfig wires viper: defaults, optional config file, environment.
// Every setting is reachable as a GONUKE_* environment variable, e.g.
// GONUKE_PURGE_BATCH_SIZE=500.
func initConfig() {
	setDefaults()

	viper.SetConfigName("gonuke")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home + "/.config/gonuke")
	}

	viper.SetEnvPrefix("GONUKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional; only a parse failure is worth surfacing,
	// and logging is not up yet, so stash it for PersistentPreRunE.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = err
		}
	}
}

// setDefaults registers the default configuration values.
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("quiet", false)

	viper.SetDefault("purge.batch_size", 100)
	viper.SetDefault("purge.max_queue", 10000)
	viper.SetDefault("purge.max_threads", 100)
}

// Execute runs the root command with an interrupt-cancelled context.
//
// SIGINT/SIGTERM cancel the context; workers observe the cancellation and
// exit without draining in-flight work. There is no graceful drain.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = versionInfo.Version

	defer observability.SyncLogging()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// The logger is a no-op until PersistentPreRunE runs, so flag
		// parsing errors still need a plain stderr line.
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
