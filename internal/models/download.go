package models

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/nodeprep/nodeprep/internal/errors"
	localexec "github.com/nodeprep/nodeprep/internal/exec"
	"github.com/nodeprep/nodeprep/internal/logger"
	"github.com/nodeprep/nodeprep/internal/ui"
	"github.com/nodeprep/nodeprep/internal/util"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
)

// SessionPool hands out one reusable SSH session per host.
type SessionPool interface {
	Get(host string) (sshutil.SSHClient, error)
}

// LocalRunner executes a shell command on this machine, streaming output.
// Injectable so tests do not invoke the real hf CLI.
type LocalRunner func(cmd string, stdout, stderr io.Writer) (int, error)

// Downloader fetches model weights into the hub cache, either on this
// machine or on a set of remote hosts.
type Downloader struct {
	cacheDir string
	dryRun   bool
	out      *ui.Transcript
	outW     io.Writer
	log      logger.Logger
	runLocal LocalRunner
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	// CacheDir is the HuggingFace cache root (the hub/ subdirectory is
	// appended). Required.
	CacheDir string

	// DryRun logs what would be downloaded without running anything.
	DryRun bool

	// RunLocal overrides the local command runner. Nil uses the shell.
	RunLocal LocalRunner
}

// NewDownloader builds a downloader writing progress to out.
func NewDownloader(opts DownloaderOptions, out io.Writer, log logger.Logger) (*Downloader, error) {
	if strings.TrimSpace(opts.CacheDir) == "" {
		return nil, errors.New(errors.ErrConfig,
			"Cache directory must not be empty",
			"Set cache_dir in the config file or pass --cache-dir")
	}
	runLocal := opts.RunLocal
	if runLocal == nil {
		runLocal = localexec.Local
	}
	if log == nil {
		log = logger.Noop()
	}

	return &Downloader{
		cacheDir: opts.CacheDir,
		dryRun:   opts.DryRun,
		out:      ui.NewTranscript(out),
		outW:     out,
		log:      log,
		runLocal: runLocal,
	}, nil
}

// hfCommand builds the hf CLI invocation for a spec. hubArg must already be
// shell-safe: a quoted path locally, the "$HUB" reference remotely.
func hfCommand(spec Spec, hubArg string) string {
	cmd := fmt.Sprintf("hf download %s --cache-dir %s",
		util.ShellQuote(spec.Repo), hubArg)
	if spec.HasQuant && spec.Quant != "" {
		cmd += fmt.Sprintf(" --include %s", util.ShellQuote("*"+spec.Quant+"*"))
	}
	return cmd
}

// Local downloads the model into this machine's cache. Already-cached models
// are a logged no-op.
func (d *Downloader) Local(ctx context.Context, spec Spec) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Download interrupted", "")
	}

	if d.dryRun {
		d.out.Host("local", fmt.Sprintf("would download %s to %s", spec, HubDir(d.cacheDir)))
		return nil
	}

	if spec.IsCached(d.cacheDir) {
		d.out.HostNote("local", fmt.Sprintf("%s already cached, skipped", spec))
		d.log.Debug("model %s already in %s", spec, d.cacheDir)
		return nil
	}

	d.out.Host("local", "downloading "+spec.String())
	code, err := d.runLocal(hfCommand(spec, util.ShellQuotePreserveTilde(HubDir(d.cacheDir))), d.outW, d.outW)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Download of %s failed with status %d", spec, code),
			"Check that the hf CLI is installed and the repo name is correct")
	}

	d.out.Success(fmt.Sprintf("%s downloaded", spec))
	return nil
}

// remoteDownloadScript checks the remote cache and downloads only on a miss.
// Prints "cached" or "downloaded".
func remoteDownloadScript(spec Spec, cacheDir string) string {
	hub := util.ShellQuotePreserveTilde(cacheDir) + "/hub"
	modelDir := fmt.Sprintf(`"$HUB"/%s`, util.ShellQuote(spec.CacheName()))

	cachedCheck := fmt.Sprintf(`[ -n "$(ls -A %s 2>/dev/null)" ]`, modelDir)
	if spec.IsGGUF() {
		pattern := "*.gguf"
		if spec.HasQuant && spec.Quant != "" {
			pattern = "*" + spec.Quant + "*.gguf"
		}
		cachedCheck = fmt.Sprintf(`[ -n "$(find %s/snapshots -iname %s 2>/dev/null | head -n 1)" ]`,
			modelDir, util.ShellQuote(pattern))
	}

	return fmt.Sprintf(`HUB=%s
if %s; then
  echo cached
else
  %s || exit 1
  echo downloaded
fi`, hub, cachedCheck, hfCommand(spec, `"$HUB"`))
}

// Remote downloads the model on every listed host over its pooled session.
// Hosts are processed in order; failures are collected, not short-circuited.
func (d *Downloader) Remote(ctx context.Context, pool SessionPool, hosts []string, spec Spec) error {
	if len(hosts) == 0 {
		return errors.New(errors.ErrUsage,
			"Need at least one host",
			"Usage: nodeprep download <model> --hosts <host1,host2,...>")
	}

	script := remoteDownloadScript(spec, d.cacheDir)

	var failed *multierror.Error
	for _, host := range hosts {
		if err := ctx.Err(); err != nil {
			failed = multierror.Append(failed, errors.WrapWithCode(err, errors.ErrExec,
				"Run interrupted before "+host, ""))
			break
		}

		if d.dryRun {
			d.out.Host(host, fmt.Sprintf("would download %s to %s", spec, d.cacheDir))
			continue
		}

		client, err := pool.Get(host)
		if err != nil {
			d.out.HostNote(host, "failed")
			failed = multierror.Append(failed, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Cannot connect to %s", host), ""))
			continue
		}

		stdout, stderr, code, err := client.Exec(script)
		if err != nil {
			d.out.HostNote(host, "failed")
			failed = multierror.Append(failed, errors.WrapWithCode(err, errors.ErrExec,
				fmt.Sprintf("Remote execution failed on %s", host), ""))
			continue
		}
		if code != 0 {
			d.out.HostNote(host, "failed")
			failed = multierror.Append(failed, errors.New(errors.ErrExec,
				fmt.Sprintf("Download of %s failed on %s", spec, host),
				strings.TrimSpace(string(stderr))))
			continue
		}

		if strings.Contains(string(stdout), "cached") {
			d.out.HostNote(host, "already cached, skipped")
		} else {
			d.out.Host(host, "downloaded "+spec.String())
		}
	}

	if err := failed.ErrorOrNil(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Download of %s failed on %d host(s)", spec, failed.Len()), "")
	}
	return nil
}
