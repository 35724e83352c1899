package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/internal/config"
	"github.com/nodeprep/nodeprep/internal/mesh"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
)

var meshKeyTypeFlag string

// meshCmd establishes full pairwise SSH trust across the host set.
var meshCmd = &cobra.Command{
	Use:   "mesh <user> <host1> <host2> <host3> [host...]",
	Short: "Establish pairwise passwordless SSH trust across hosts",
	Long: `Give every listed host passwordless SSH access to every other one,
for the given user, in four strictly ordered phases:

  1. Connectivity check   - every host must be reachable before anything runs
  2. Key bootstrap        - generate a key pair where none exists
  3. Public key collection
  4. Pairwise installation - each key into every other host's authorized_keys

All mutations are idempotent: rerun the same command to recover from a
partial failure. Requires at least three hosts.

Examples:
  nodeprep mesh ops node-a node-b node-c
  nodeprep mesh ops 10.0.0.1 10.0.0.2 10.0.0.3 --key-type rsa`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return meshCommand(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(meshCmd)
	meshCmd.Flags().StringVar(&meshKeyTypeFlag, "key-type", "", "key algorithm: ed25519, rsa, or ecdsa")
}

func meshCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keyType, err := mesh.ParseKeyType(flagOrConfig(meshKeyTypeFlag, cfg.KeyType))
	if err != nil {
		return err
	}

	user, hosts := resolveUserHosts(args, cfg)

	pool := newSessionPool(user, cfg)
	defer pool.Close()

	installer, err := mesh.NewInstaller(mesh.Options{
		User:    user,
		Hosts:   hosts,
		KeyType: keyType,
	}, pool, os.Stdout, runLogger())
	if err != nil {
		return err
	}

	return installer.Run(cmd.Context())
}

// flagOrConfig prefers an explicitly set flag over the config value.
func flagOrConfig(flag, fromConfig string) string {
	if flag != "" {
		return flag
	}
	return fromConfig
}

// newSessionPool builds the shared per-host session pool with the config's
// dial timeout and keepalive policy.
func newSessionPool(user string, cfg *config.Config) *mesh.Pool {
	dial := func(user, host string) (sshutil.SSHClient, error) {
		return sshutil.Dial(user, host, sshutil.Options{
			Timeout:        cfg.ConnectTimeout,
			PasswordPrompt: sshutil.TerminalPasswordPrompt,
		})
	}
	return mesh.NewPool(user, dial, mesh.PoolOptions{
		KeepAliveEvery:  cfg.Keepalive.Interval,
		KeepAliveMisses: cfg.Keepalive.Misses,
	}, runLogger())
}
