package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/internal/config"
	"github.com/nodeprep/nodeprep/internal/models"
)

var (
	downloadHostsFlag    string
	downloadUserFlag     string
	downloadCacheDirFlag string
	downloadDryRunFlag   bool
)

// downloadCmd fetches model weights locally or on remote hosts.
var downloadCmd = &cobra.Command{
	Use:   "download <model>",
	Short: "Download model weights into the HuggingFace cache",
	Long: `Download a model into the hub cache, locally or on remote hosts.

Model specs use colon syntax to select one GGUF quantization variant:
"Qwen/Qwen3-1.7B-GGUF:Q4_K_M" downloads only the Q4_K_M files. Models that
are already cached are skipped.

With --hosts, the download runs on every listed host over SSH instead of on
this machine. Requires the hf CLI wherever the download runs.

Examples:
  nodeprep download meta-llama/Llama-3-8B
  nodeprep download Qwen/Qwen3-1.7B-GGUF:Q4_K_M
  nodeprep download org/model --user ops --hosts node-a,node-b,node-c
  nodeprep download org/model --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return downloadCommand(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVar(&downloadHostsFlag, "hosts", "", "comma-separated hosts to download on (default: local)")
	downloadCmd.Flags().StringVar(&downloadUserFlag, "user", "", "SSH username for remote downloads")
	downloadCmd.Flags().StringVar(&downloadCacheDirFlag, "cache-dir", "", "HuggingFace cache root")
	downloadCmd.Flags().BoolVar(&downloadDryRunFlag, "dry-run", false, "show what would be downloaded")
}

func downloadCommand(cmd *cobra.Command, modelSpec string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec := models.ParseSpec(modelSpec)
	cacheDir := flagOrConfig(downloadCacheDirFlag, cfg.CacheDir)
	hosts := splitHosts(downloadHostsFlag)

	if len(hosts) == 0 {
		// Local mode expands the tilde against this machine's home.
		d, err := models.NewDownloader(models.DownloaderOptions{
			CacheDir: config.ExpandHome(cacheDir),
			DryRun:   downloadDryRunFlag,
		}, os.Stdout, runLogger())
		if err != nil {
			return err
		}
		return d.Local(cmd.Context(), spec)
	}

	user := flagOrConfig(downloadUserFlag, cfg.User)

	d, err := models.NewDownloader(models.DownloaderOptions{
		CacheDir: cacheDir,
		DryRun:   downloadDryRunFlag,
	}, os.Stdout, runLogger())
	if err != nil {
		return err
	}

	pool := newSessionPool(user, cfg)
	defer pool.Close()

	return d.Remote(cmd.Context(), pool, hosts, spec)
}

// splitHosts parses a comma-separated host list, dropping empty entries.
func splitHosts(s string) []string {
	var hosts []string
	for _, host := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}
	return hosts
}
