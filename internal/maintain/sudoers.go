package maintain

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/nodeprep/nodeprep/internal/errors"
)

// SudoersFilePath is where the rule file lands on each host.
const SudoersFilePath = "/etc/sudoers.d/nodeprep"

// DefaultSudoersCommands are the exact command lines the other maintenance
// operations invoke through sudo -n. Anything broader defeats the point of a
// scoped rule file.
var DefaultSudoersCommands = []string{
	"/usr/bin/chown",
	"/usr/bin/tee /proc/sys/vm/drop_caches",
}

// RenderSudoers produces the rule file contents for user. Commands must be
// absolute paths; a relative entry would let the user pick the binary.
func RenderSudoers(user string, commands []string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", errors.New(errors.ErrUsage, "Username must not be empty", "")
	}
	if len(commands) == 0 {
		commands = DefaultSudoersCommands
	}
	for _, cmd := range commands {
		if !strings.HasPrefix(cmd, "/") {
			return "", errors.New(errors.ErrConfig,
				fmt.Sprintf("Sudoers command must be an absolute path: %s", cmd),
				"Use full paths like /usr/bin/chown in the sudoers command list")
		}
		if strings.ContainsAny(cmd, "\n,") {
			return "", errors.New(errors.ErrConfig,
				fmt.Sprintf("Sudoers command contains invalid characters: %q", cmd), "")
		}
	}

	var b strings.Builder
	b.WriteString("# Managed by nodeprep. Grants only the listed maintenance commands.\n")
	fmt.Fprintf(&b, "%s ALL=(root) NOPASSWD: %s\n", user, strings.Join(commands, ", "))
	return b.String(), nil
}

// installSudoersScript writes the rule file from stdin, validates it with
// visudo, and removes it again when validation fails. The password is the
// first stdin line (consumed by sudo -S); the file contents follow.
const installSudoersScript = `sudo -S -p '' sh -c 'f=/etc/sudoers.d/nodeprep
cat > "$f" || exit 1
chmod 440 "$f" || exit 1
if visudo -cq -f "$f"; then
  echo installed
else
  rm -f "$f"
  echo "sudoers rule failed validation, removed" >&2
  exit 1
fi'`

// probeSudoersScript is the non-interactive variant for hosts where sudo is
// already passwordless.
const probeSudoersScript = `sudo -n sh -c 'f=/etc/sudoers.d/nodeprep
cat > "$f" || exit 1
chmod 440 "$f" || exit 1
if visudo -cq -f "$f"; then
  echo installed
else
  rm -f "$f"
  echo "sudoers rule failed validation, removed" >&2
  exit 1
fi'`

// InstallSudoers writes the scoped rule file on every host. Unlike the other
// maintenance operations the rule contents travel over stdin, so this does
// not go through forEachHost: the fallback stdin carries the password line
// followed by the file body.
func (r *Runner) InstallSudoers(ctx context.Context, commands []string) error {
	content, err := RenderSudoers(r.user, commands)
	if err != nil {
		return err
	}

	r.out.Phase(1, "Install sudoers rule")

	var failed *multierror.Error
	for _, host := range r.hosts {
		if err := ctx.Err(); err != nil {
			failed = multierror.Append(failed, errors.WrapWithCode(err, errors.ErrExec,
				"Run interrupted before "+host, ""))
			break
		}

		if err := r.installSudoersOn(host, content); err != nil {
			r.out.HostNote(host, "failed")
			failed = multierror.Append(failed, err)
			continue
		}
		r.out.Host(host, "sudoers rule installed")
	}

	if err := failed.ErrorOrNil(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to install the sudoers rule on %d host(s)", failed.Len()),
			"")
	}

	r.out.Summary("Done", []string{
		fmt.Sprintf("Installed %s for %s", SudoersFilePath, r.user),
		"Commands granted: " + strings.Join(nonEmptyOrDefault(commands), ", "),
	})
	return nil
}

func (r *Runner) installSudoersOn(host, content string) error {
	client, err := r.pool.Get(host)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Cannot connect to %s", host), "")
	}

	_, _, code, err := client.ExecInput(probeSudoersScript, strings.NewReader(content))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Remote execution failed on %s", host), "")
	}
	if code == 0 {
		return nil
	}

	r.log.Debug("non-interactive sudo refused on %s, falling back", host)

	password, err := r.sudoPassword()
	if err != nil {
		return err
	}

	_, stderr, code, err := client.ExecInput(installSudoersScript,
		strings.NewReader(password+"\n"+content))
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Remote execution failed on %s", host), "")
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Could not install the sudoers rule on %s", host),
			strings.TrimSpace(string(stderr)))
	}
	return nil
}

func nonEmptyOrDefault(commands []string) []string {
	if len(commands) == 0 {
		return DefaultSudoersCommands
	}
	return commands
}

