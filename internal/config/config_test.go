package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeprep/nodeprep/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
user: ops
hosts:
  - node-a
  - node-b
  - node-c
key_type: rsa
connect_timeout: 30s
cache_dir: /srv/models
keepalive:
  interval: 5s
  misses: 5
sudoers:
  commands:
    - /usr/bin/chown
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.User)
	assert.Equal(t, []string{"node-a", "node-b", "node-c"}, cfg.Hosts)
	assert.Equal(t, "rsa", cfg.KeyType)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "/srv/models", cfg.CacheDir)
	assert.Equal(t, 5*time.Second, cfg.Keepalive.Interval)
	assert.Equal(t, 5, cfg.Keepalive.Misses)
	assert.Equal(t, []string{"/usr/bin/chown"}, cfg.Sudoers.Commands)
}

func TestLoad_OmittedKeysGetDefaults(t *testing.T) {
	path := writeConfig(t, "user: ops\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.KeyType, cfg.KeyType)
	assert.Equal(t, def.ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, def.CacheDir, cfg.CacheDir)
	assert.Equal(t, def.Keepalive.Interval, cfg.Keepalive.Interval)
	assert.Equal(t, def.Keepalive.Misses, cfg.Keepalive.Misses)
}

func TestLoad_KeepsTildeCacheDir(t *testing.T) {
	path := writeConfig(t, "cache_dir: ~/.cache/huggingface\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "~/.cache/huggingface", cfg.CacheDir,
		"remote hosts must expand the tilde against their own homes")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "hosts: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind_ExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"ed25519", func(c *Config) { c.KeyType = "ed25519" }, true},
		{"unknown key type", func(c *Config) { c.KeyType = "dsa" }, false},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, false},
		{"negative keepalive interval", func(c *Config) { c.Keepalive.Interval = -time.Second }, false},
		{"negative keepalive misses", func(c *Config) { c.Keepalive.Misses = -1 }, false},
		{"zero keepalive disables probing", func(c *Config) { c.Keepalive.Interval = 0 }, true},
		{"duplicate hosts", func(c *Config) { c.Hosts = []string{"a", "a"} }, false},
		{"empty host entry", func(c *Config) { c.Hosts = []string{"a", " "} }, false},
		{"relative sudoers command", func(c *Config) { c.Sudoers.Commands = []string{"chown"} }, false},
		{"future version", func(c *Config) { c.Version = CurrentConfigVersion + 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".cache/huggingface"), ExpandHome("~/.cache/huggingface"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/srv/models", ExpandHome("/srv/models"))
	assert.Equal(t, "relative/path", ExpandHome("relative/path"))
}
