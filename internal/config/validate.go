package config

import (
	"fmt"
	"strings"

	"github.com/nodeprep/nodeprep/internal/errors"
	"github.com/nodeprep/nodeprep/internal/util"
)

var validKeyTypes = map[string]bool{
	"ed25519": true,
	"rsa":     true,
	"ecdsa":   true,
}

// Validate checks a loaded config for values that would only fail later,
// mid-run, if left alone.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config version %d is newer than this build supports (%d)",
				cfg.Version, CurrentConfigVersion),
			"Upgrade nodeprep or lower the version field")
	}

	if cfg.KeyType != "" && !validKeyTypes[cfg.KeyType] {
		return errors.New(errors.ErrConfig,
			"Invalid key_type: "+cfg.KeyType,
			"Supported types: ed25519 (recommended), rsa, ecdsa")
	}

	if cfg.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"connect_timeout must not be negative", "")
	}
	if cfg.Keepalive.Interval < 0 {
		return errors.New(errors.ErrConfig,
			"keepalive.interval must not be negative",
			"Use 0 to disable keepalive probing")
	}
	if cfg.Keepalive.Misses < 0 {
		return errors.New(errors.ErrConfig,
			"keepalive.misses must not be negative", "")
	}

	if deduped := util.Dedupe(cfg.Hosts); len(deduped) != len(cfg.Hosts) {
		return errors.New(errors.ErrConfig,
			"hosts list contains duplicates",
			"Each host may appear only once")
	}
	for _, host := range cfg.Hosts {
		if strings.TrimSpace(host) == "" {
			return errors.New(errors.ErrConfig,
				"hosts list contains an empty entry", "")
		}
	}

	for _, cmd := range cfg.Sudoers.Commands {
		if !strings.HasPrefix(cmd, "/") {
			return errors.New(errors.ErrConfig,
				"sudoers command must be an absolute path: "+cmd,
				"Use full paths like /usr/bin/chown in sudoers.commands")
		}
	}

	return nil
}
