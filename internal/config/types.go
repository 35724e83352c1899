package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .nodeprep.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// User is the SSH username applied to every host. Overridable per
	// invocation on the command line.
	User string `yaml:"user" mapstructure:"user"`

	// Hosts is the default host list used when a command is invoked
	// without explicit hosts.
	Hosts []string `yaml:"hosts" mapstructure:"hosts"`

	// KeyType selects the mesh key algorithm: ed25519, rsa, or ecdsa.
	KeyType string `yaml:"key_type" mapstructure:"key_type"`

	// ConnectTimeout bounds each SSH dial.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// CacheDir is the HuggingFace cache root on every machine.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`

	Keepalive KeepaliveConfig `yaml:"keepalive" mapstructure:"keepalive"`
	Sudoers   SudoersConfig   `yaml:"sudoers" mapstructure:"sudoers"`
}

// KeepaliveConfig controls session liveness probing.
type KeepaliveConfig struct {
	// Interval between probes on each session. Zero disables keepalive.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Misses is how many consecutive probe failures are tolerated before
	// a session is treated as unreachable.
	Misses int `yaml:"misses" mapstructure:"misses"`
}

// SudoersConfig controls the sudoers rule file nodeprep installs.
type SudoersConfig struct {
	// Commands are the exact command lines granted NOPASSWD. Empty uses
	// the built-in list covering drop-caches and fix-perms.
	Commands []string `yaml:"commands" mapstructure:"commands"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentConfigVersion,
		KeyType:        "ed25519",
		ConnectTimeout: 10 * time.Second,
		CacheDir:       "~/.cache/huggingface",
		Keepalive: KeepaliveConfig{
			Interval: 15 * time.Second,
			Misses:   3,
		},
	}
}
