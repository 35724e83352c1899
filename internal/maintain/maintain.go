// Package maintain implements privileged host maintenance: flushing the page
// cache, repairing model-cache ownership, and installing the scoped sudoers
// rule that lets both run without a password.
//
// Every operation first tries non-interactive sudo. When a host refuses, the
// operator is prompted for the sudo password once and it is reused for every
// remaining host in the run. Operations are best-effort across hosts: one
// refusing host does not stop the others, and the run exits nonzero listing
// the hosts that still failed.
package maintain

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/nodeprep/nodeprep/internal/errors"
	"github.com/nodeprep/nodeprep/internal/logger"
	"github.com/nodeprep/nodeprep/internal/ui"
	"github.com/nodeprep/nodeprep/internal/util"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
)

// DefaultCacheDir is the model cache repaired by fix-perms when no override
// is configured. Expanded remotely, so the literal tilde is intentional.
const DefaultCacheDir = "~/.cache/huggingface"

// SessionPool hands out one reusable SSH session per host.
type SessionPool interface {
	Get(host string) (sshutil.SSHClient, error)
}

// PasswordPrompter asks the operator for the sudo password.
type PasswordPrompter func() (string, error)

// Options configures a maintenance run.
type Options struct {
	User  string
	Hosts []string

	// PromptPassword is invoked at most once per run, the first time a
	// host refuses non-interactive sudo. Nil disables the fallback.
	PromptPassword PasswordPrompter
}

// Runner executes maintenance operations over a session pool.
type Runner struct {
	user  string
	hosts []string
	pool  SessionPool
	out   *ui.Transcript
	log   logger.Logger

	prompt   PasswordPrompter
	password string
	prompted bool
}

// NewRunner validates options and builds a runner.
func NewRunner(opts Options, pool SessionPool, out io.Writer, log logger.Logger) (*Runner, error) {
	if strings.TrimSpace(opts.User) == "" {
		return nil, errors.New(errors.ErrUsage,
			"Username must not be empty",
			"Usage: nodeprep <command> <user> <host1> [...]")
	}
	if len(opts.Hosts) == 0 {
		return nil, errors.New(errors.ErrUsage,
			"Need at least one host",
			"Usage: nodeprep <command> <user> <host1> [...]")
	}
	if deduped := util.Dedupe(opts.Hosts); len(deduped) != len(opts.Hosts) {
		return nil, errors.New(errors.ErrUsage,
			"Host list contains duplicates",
			"Each host may appear only once")
	}
	if log == nil {
		log = logger.Noop()
	}

	return &Runner{
		user:   opts.User,
		hosts:  opts.Hosts,
		pool:   pool,
		out:    ui.NewTranscript(out),
		log:    log,
		prompt: opts.PromptPassword,
	}, nil
}

// dropCachesProbe flushes dirty pages and drops the page cache through
// non-interactive sudo. The tee path must match the sudoers rule exactly.
const dropCachesProbe = `sync && echo 3 | sudo -n /usr/bin/tee /proc/sys/vm/drop_caches >/dev/null`

// dropCachesFallback is the password-fed variant. The password arrives as the
// first stdin line; sudo -S consumes it, nothing else reads stdin.
const dropCachesFallback = `sync && sudo -S -p '' sh -c 'echo 3 > /proc/sys/vm/drop_caches'`

// DropCaches flushes the Linux page cache on every host.
func (r *Runner) DropCaches(ctx context.Context) error {
	r.out.Phase(1, "Drop page caches")
	return r.forEachHost(ctx, "drop caches", dropCachesProbe, dropCachesFallback, "caches dropped")
}

// fixPermsScript repairs ownership of the model cache so rsync and downloads
// run as the SSH user again after containers left root-owned files behind.
// A missing directory and an already-owned directory are both clean no-ops.
func fixPermsScript(cacheDir, sudo string) string {
	return fmt.Sprintf(`CACHE_DIR=%s
if [ ! -d "$CACHE_DIR" ]; then echo missing; exit 0; fi
OWNER=$(stat -c %%U "$CACHE_DIR" 2>/dev/null || echo "")
ME=$(id -un)
if [ "$OWNER" = "$ME" ]; then echo owned; exit 0; fi
%s /usr/bin/chown -R "$ME" "$CACHE_DIR" || exit 1
echo fixed`, util.ShellQuotePreserveTilde(cacheDir), sudo)
}

// FixPerms chowns cacheDir back to the SSH user on every host where a
// container left it root-owned. Hosts that already own their cache are
// skipped.
func (r *Runner) FixPerms(ctx context.Context, cacheDir string) error {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	r.out.Phase(1, "Fix cache ownership")
	return r.forEachHost(ctx, "fix permissions",
		fixPermsScript(cacheDir, "sudo -n"),
		fixPermsScript(cacheDir, "sudo -S -p ''"),
		"ownership fixed")
}

// forEachHost runs probe on every host in order, falling back to the
// password-fed script on hosts that refuse. Failures are collected, not
// short-circuited.
func (r *Runner) forEachHost(ctx context.Context, action, probe, fallback, okMsg string) error {
	var failed *multierror.Error

	for _, host := range r.hosts {
		if err := ctx.Err(); err != nil {
			failed = multierror.Append(failed, errors.WrapWithCode(err, errors.ErrExec,
				"Run interrupted before "+host, ""))
			break
		}

		note, err := r.runPrivileged(host, action, probe, fallback)
		if err != nil {
			r.out.HostNote(host, "failed")
			failed = multierror.Append(failed, err)
			continue
		}
		if note != "" {
			r.out.HostNote(host, note)
		} else {
			r.out.Host(host, okMsg)
		}
	}

	if err := failed.ErrorOrNil(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to %s on %d host(s)", action, failed.Len()),
			"Run 'nodeprep sudoers' to set up passwordless sudo for these commands")
	}

	r.out.Summary("Done", []string{
		fmt.Sprintf("%s on %d %s", okMsg, len(r.hosts),
			util.Pluralize(len(r.hosts), "host", "hosts")),
	})
	return nil
}

// runPrivileged tries the non-interactive script, then the password fallback.
// Returns an informational note for skip markers ("missing", "owned").
func (r *Runner) runPrivileged(host, action, probe, fallback string) (string, error) {
	client, err := r.pool.Get(host)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Cannot connect to %s", host), "")
	}

	stdout, _, code, err := client.Exec(probe)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Remote execution failed on %s", host), "")
	}
	if code == 0 {
		return skipNote(stdout), nil
	}

	r.log.Debug("non-interactive sudo refused on %s, falling back", host)

	password, err := r.sudoPassword()
	if err != nil {
		return "", err
	}

	stdout, stderr, code, err := client.ExecInput(fallback, strings.NewReader(password+"\n"))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Remote execution failed on %s", host), "")
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Could not %s on %s", action, host),
			strings.TrimSpace(string(stderr)))
	}
	return skipNote(stdout), nil
}

// sudoPassword prompts once and reuses the answer for the rest of the run.
func (r *Runner) sudoPassword() (string, error) {
	if r.prompted {
		return r.password, nil
	}
	if r.prompt == nil {
		return "", errors.New(errors.ErrExec,
			"Non-interactive sudo refused and no password prompt is available",
			"Run 'nodeprep sudoers' to set up passwordless sudo, or run interactively")
	}
	password, err := r.prompt()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrExec, "Could not read sudo password", "")
	}
	r.password = password
	r.prompted = true
	return password, nil
}

// skipNote maps remote skip markers to operator-facing notes.
func skipNote(stdout []byte) string {
	out := strings.TrimSpace(string(stdout))
	switch {
	case strings.Contains(out, "missing"):
		return "cache directory absent, nothing to do"
	case strings.Contains(out, "owned"):
		return "already owned, skipped"
	}
	return ""
}
