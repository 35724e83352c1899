package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nodeprep/nodeprep/internal/errors"
	"github.com/nodeprep/nodeprep/internal/maintain"
)

var (
	fixPermsCacheDirFlag string
	sudoersYesFlag       bool
)

// dropCachesCmd flushes the Linux page cache on every host.
var dropCachesCmd = &cobra.Command{
	Use:   "drop-caches <user> <host1> [host...]",
	Short: "Flush the Linux page cache on every host",
	Long: `Run sync and drop the page cache (vm.drop_caches=3) on every listed host.

Uses non-interactive sudo; hosts that refuse fall back to a password prompt
(asked once, reused for the rest of the run).

Examples:
  nodeprep drop-caches ops node-a node-b node-c`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMaintainRunner(cmd, args, func(r *maintain.Runner) error {
			return r.DropCaches(cmd.Context())
		})
	},
}

// fixPermsCmd repairs model-cache ownership on every host.
var fixPermsCmd = &cobra.Command{
	Use:   "fix-perms <user> <host1> [host...]",
	Short: "Repair model cache ownership on every host",
	Long: `Chown the HuggingFace cache directory back to the SSH user on hosts
where containers left root-owned files behind. Hosts whose cache is already
owned by the user are skipped.

Examples:
  nodeprep fix-perms ops node-a node-b
  nodeprep fix-perms ops node-a --cache-dir /srv/models`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cacheDir := flagOrConfig(fixPermsCacheDirFlag, cfg.CacheDir)
		return withMaintainRunner(cmd, args, func(r *maintain.Runner) error {
			return r.FixPerms(cmd.Context(), cacheDir)
		})
	},
}

// sudoersCmd installs the scoped sudoers rule file.
var sudoersCmd = &cobra.Command{
	Use:   "sudoers <user> <host1> [host...]",
	Short: "Install a scoped passwordless-sudo rule on every host",
	Long: `Write /etc/sudoers.d/nodeprep on every listed host, granting the user
passwordless sudo for exactly the commands the other maintenance operations
need. The file is validated with visudo and removed again if validation
fails.

Examples:
  nodeprep sudoers ops node-a node-b node-c
  nodeprep sudoers ops node-a --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		user, _ := resolveUserHosts(args, cfg)
		if !sudoersYesFlag {
			ok, err := confirmSudoers(user, cfg.Sudoers.Commands)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		return withMaintainRunner(cmd, args, func(r *maintain.Runner) error {
			return r.InstallSudoers(cmd.Context(), cfg.Sudoers.Commands)
		})
	},
}

func init() {
	rootCmd.AddCommand(dropCachesCmd)
	rootCmd.AddCommand(fixPermsCmd)
	rootCmd.AddCommand(sudoersCmd)
	fixPermsCmd.Flags().StringVar(&fixPermsCacheDirFlag, "cache-dir", "", "cache directory to repair")
	sudoersCmd.Flags().BoolVar(&sudoersYesFlag, "yes", false, "skip the confirmation prompt")
}

// withMaintainRunner builds the shared runner and pool for a maintenance
// command, then invokes fn with it.
func withMaintainRunner(cmd *cobra.Command, args []string, fn func(*maintain.Runner) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	user, hosts := resolveUserHosts(args, cfg)

	pool := newSessionPool(user, cfg)
	defer pool.Close()

	runner, err := maintain.NewRunner(maintain.Options{
		User:           user,
		Hosts:          hosts,
		PromptPassword: sudoPasswordPrompt,
	}, pool, os.Stdout, runLogger())
	if err != nil {
		return err
	}

	return fn(runner)
}

// sudoPasswordPrompt reads the sudo password without echo.
func sudoPasswordPrompt() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New(errors.ErrExec,
			"Cannot prompt for a sudo password without a terminal",
			"Run 'nodeprep sudoers' first, or run interactively")
	}

	fmt.Fprint(os.Stderr, "sudo password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec, "Could not read sudo password", "")
	}
	return string(password), nil
}

// confirmSudoers shows what will be granted and asks before touching any
// host's /etc/sudoers.d.
func confirmSudoers(user string, commands []string) (bool, error) {
	if len(commands) == 0 {
		commands = maintain.DefaultSudoersCommands
	}

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Grant %s passwordless sudo for: %s?",
					user, strings.Join(commands, ", "))).
				Description("Writes " + maintain.SudoersFilePath + " on every listed host.").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Rerun with --yes to skip the confirmation prompt")
	}
	return confirmed, nil
}
