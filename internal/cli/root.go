// Package cli wires the nodeprep commands together: argument parsing, config
// resolution, and delegation to the internal packages that do the work.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/internal/config"
	"github.com/nodeprep/nodeprep/internal/logger"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
)

var configFlag string

// rootCmd is the base command all subcommands hang off.
var rootCmd = &cobra.Command{
	Use:   "nodeprep",
	Short: "Prepare and maintain a set of hosts over SSH",
	Long: `nodeprep runs idempotent maintenance transactions on a set of remote
machines over SSH: establishing pairwise passwordless trust, flushing page
caches, repairing model-cache ownership, installing scoped sudoers rules,
and fetching model weights.

Every operation is safe to rerun: partial failures are recovered by running
the same command again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file")
}

// Execute runs the root command. Interrupts cancel the command context so
// multi-host runs stop at the next host boundary.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer sshutil.CloseAgent()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves and loads the config file, falling back to defaults
// when none exists.
func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(configFlag)
}

// runLogger builds the process logger, debug-gated on NODEPREP_DEBUG.
func runLogger() logger.Logger {
	return logger.Default()
}

// resolveUserHosts reads "<user> <host...>" from args, falling back to the
// config file's user and hosts when args are absent.
func resolveUserHosts(args []string, cfg *config.Config) (string, []string) {
	if len(args) > 0 {
		return args[0], args[1:]
	}
	return cfg.User, cfg.Hosts
}
