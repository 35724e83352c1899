// Package mesh establishes full pairwise passwordless SSH trust among a set
// of hosts. For every unordered pair of distinct hosts it ensures each one's
// public key is present in the other's authorized_keys, in four strictly
// ordered phases over one multiplexed session per host.
package mesh

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nodeprep/nodeprep/internal/errors"
	"github.com/nodeprep/nodeprep/internal/logger"
	"github.com/nodeprep/nodeprep/internal/ui"
	"github.com/nodeprep/nodeprep/internal/util"
)

// MinHosts is the smallest host set worth meshing. With fewer than three
// hosts, plain ssh-copy-id in each direction is the simpler tool.
const MinHosts = 3

// Options configures a mesh run.
type Options struct {
	User    string
	Hosts   []string
	KeyType KeyType
}

// Installer drives the four-phase mesh protocol.
type Installer struct {
	user    string
	hosts   []string
	keyType KeyType
	pool    *Pool
	out     *ui.Transcript
	log     logger.Logger

	// keys caches each host's public key after phase 3; read-only afterwards.
	keys map[string]string
}

// NewInstaller validates options and builds an installer around the pool.
// Validation happens before any network activity: a bad invocation must
// never touch a host.
func NewInstaller(opts Options, pool *Pool, out io.Writer, log logger.Logger) (*Installer, error) {
	if strings.TrimSpace(opts.User) == "" {
		return nil, errors.New(errors.ErrUsage,
			"Username must not be empty",
			"Usage: nodeprep mesh <user> <host1> <host2> <host3> [...]")
	}
	if len(opts.Hosts) < MinHosts {
		return nil, errors.New(errors.ErrUsage,
			fmt.Sprintf("Need at least %d hosts, got %d", MinHosts, len(opts.Hosts)),
			"Usage: nodeprep mesh <user> <host1> <host2> <host3> [...]")
	}
	if deduped := util.Dedupe(opts.Hosts); len(deduped) != len(opts.Hosts) {
		return nil, errors.New(errors.ErrUsage,
			"Host list contains duplicates",
			"Each host may appear only once")
	}
	keyType := opts.KeyType
	if keyType == "" {
		keyType = KeyEd25519
	}
	if log == nil {
		log = logger.Noop()
	}

	return &Installer{
		user:    opts.User,
		hosts:   opts.Hosts,
		keyType: keyType,
		pool:    pool,
		out:     ui.NewTranscript(out),
		log:     log,
		keys:    make(map[string]string, len(opts.Hosts)),
	}, nil
}

// Run executes the four phases in order, each completed for all hosts before
// the next begins. The first failure aborts the whole run; every mutation is
// idempotent, so rerunning after a partial failure is the supported recovery.
func (in *Installer) Run(ctx context.Context) error {
	if err := in.checkConnectivity(ctx); err != nil {
		return err
	}
	if err := in.bootstrapKeys(ctx); err != nil {
		return err
	}
	if err := in.collectKeys(ctx); err != nil {
		return err
	}
	if err := in.installPairs(ctx); err != nil {
		return err
	}

	in.printSummary()
	return nil
}

// checkConnectivity is phase 1: one no-op command per host, in input order.
// Fails fast so an unreachable host never leaves the mesh half-built.
func (in *Installer) checkConnectivity(ctx context.Context) error {
	in.out.Phase(1, "Connectivity check")

	for _, host := range in.hosts {
		if err := ctx.Err(); err != nil {
			return interrupted(err, "phase 1")
		}

		client, err := in.pool.Get(host)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Cannot connect to %s (phase 1)", host),
				fmt.Sprintf("Verify the host is up and accepts SSH for user %s", in.user))
		}

		_, stderr, code, err := client.Exec(connectivityCommand)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Remote execution failed on %s (phase 1)", host), "")
		}
		if code != 0 {
			return errors.NewHostError(errors.ErrSSH, host, "phase 1",
				"Connectivity check returned "+fmt.Sprint(code),
				strings.TrimSpace(string(stderr)))
		}

		in.out.Host(host, "reachable")
	}
	return nil
}

// bootstrapKeys is phase 2: ensure each host has a key pair of the configured
// algorithm. Existing key material is never regenerated or overwritten;
// permissions are normalized either way.
func (in *Installer) bootstrapKeys(ctx context.Context) error {
	in.out.Phase(2, "Key bootstrap")

	for _, host := range in.hosts {
		if err := ctx.Err(); err != nil {
			return interrupted(err, "phase 2")
		}

		client, err := in.pool.Get(host)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Lost session to %s (phase 2)", host), "")
		}

		stdout, stderr, code, err := client.Exec(bootstrapCommand(in.keyType))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrBootstrap,
				fmt.Sprintf("Key bootstrap failed on %s (phase 2)", host), "")
		}
		if code != 0 {
			return errors.NewHostError(errors.ErrBootstrap, host, "phase 2",
				"Key pair creation failed",
				strings.TrimSpace(string(stderr)))
		}

		if strings.Contains(string(stdout), "exists") {
			in.out.HostNote(host, "key already exists, left untouched")
			in.log.Debug("key pair on %s already present", host)
		} else {
			in.out.Host(host, fmt.Sprintf("generated %s key pair", in.keyType))
		}
	}
	return nil
}

// collectKeys is phase 3: read back each host's public key and cache it.
// An empty read is a hard error; a present-but-unreadable key file must stop
// the run, not be skipped.
func (in *Installer) collectKeys(ctx context.Context) error {
	in.out.Phase(3, "Public key collection")

	for _, host := range in.hosts {
		if err := ctx.Err(); err != nil {
			return interrupted(err, "phase 3")
		}

		client, err := in.pool.Get(host)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Lost session to %s (phase 3)", host), "")
		}

		stdout, stderr, code, err := client.Exec(readPublicKeyCommand(in.keyType))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrKeyRead,
				fmt.Sprintf("Public key read failed on %s (phase 3)", host), "")
		}
		if code != 0 {
			return errors.NewHostError(errors.ErrKeyRead, host, "phase 3",
				"Cannot read public key",
				strings.TrimSpace(string(stderr)))
		}

		key := strings.TrimSpace(string(stdout))
		if key == "" {
			return errors.NewHostError(errors.ErrKeyRead, host, "phase 3",
				"Public key is empty",
				fmt.Sprintf("Inspect %s on the host", in.keyType.PublicKeyPath()))
		}

		in.keys[host] = key
		in.out.Host(host, "collected public key")
	}
	return nil
}

// installPairs is phase 4: for every ordered (source, destination) pair,
// deliver the source's key to the destination. Pairs run sequentially in
// input order, which also serializes all writes to any one destination's
// authorized_keys file.
func (in *Installer) installPairs(ctx context.Context) error {
	in.out.Phase(4, "Pairwise installation")

	for _, src := range in.hosts {
		for _, dst := range in.hosts {
			if src == dst {
				continue
			}
			if err := ctx.Err(); err != nil {
				return interrupted(err, "phase 4")
			}

			client, err := in.pool.Get(dst)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrSSH,
					fmt.Sprintf("Lost session to %s (phase 4, %s -> %s)", dst, src, dst), "")
			}

			key := in.keys[src]
			stdout, stderr, code, err := client.ExecInput(installKeyCommand, strings.NewReader(key+"\n"))
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrInstall,
					fmt.Sprintf("Key install failed (phase 4, %s -> %s)", src, dst), "")
			}
			if code != 0 {
				return errors.NewHostError(errors.ErrInstall, dst,
					fmt.Sprintf("phase 4, %s -> %s", src, dst),
					"Remote append to authorized_keys failed",
					strings.TrimSpace(string(stderr)))
			}

			if strings.Contains(string(stdout), "present") {
				in.out.EdgeNote(src, dst, "already present")
				in.log.Debug("edge %s -> %s already installed", src, dst)
			} else {
				in.out.Edge(src, dst)
			}
		}
	}
	return nil
}

// printSummary emits the final block with verification examples.
func (in *Installer) printSummary() {
	n := len(in.hosts)
	lines := []string{
		fmt.Sprintf("%d hosts, %d trust edges installed", n, n*(n-1)),
		"",
		"Verify from any host, e.g.:",
	}
	for _, host := range in.hosts[1:] {
		lines = append(lines,
			fmt.Sprintf("  ssh %s@%s  # from %s, no password prompt expected", in.user, host, in.hosts[0]))
	}
	in.out.Summary("Mesh complete", lines)
}

// interrupted wraps a context error with phase information.
func interrupted(err error, phase string) error {
	return errors.WrapWithCode(err, errors.ErrExec,
		"Run interrupted during "+phase,
		"Rerun the command; every phase is idempotent")
}
