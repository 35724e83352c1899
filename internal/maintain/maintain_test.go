package maintain

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeprep/nodeprep/internal/errors"
	"github.com/nodeprep/nodeprep/pkg/sshutil"
	sshtesting "github.com/nodeprep/nodeprep/pkg/sshutil/testing"
)

// mapPool hands out pre-built mock clients.
type mapPool struct {
	clients map[string]*sshtesting.MockClient
}

func newMapPool(user string, hosts ...string) *mapPool {
	p := &mapPool{clients: make(map[string]*sshtesting.MockClient)}
	for _, host := range hosts {
		p.clients[host] = sshtesting.NewMockClient(user, host)
	}
	return p
}

func (p *mapPool) Get(host string) (sshutil.SSHClient, error) {
	return p.clients[host], nil
}

// countingPrompt returns a fixed password and counts invocations.
func countingPrompt(password string, calls *int) PasswordPrompter {
	return func() (string, error) {
		*calls++
		return password, nil
	}
}

func TestNewRunner_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"empty user", Options{User: "", Hosts: []string{"a"}}},
		{"no hosts", Options{User: "ops"}},
		{"duplicate hosts", Options{User: "ops", Hosts: []string{"a", "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := NewRunner(tt.opts, newMapPool("ops"), &out, nil)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrUsage))
		})
	}
}

func TestDropCaches_NonInteractive(t *testing.T) {
	pool := newMapPool("ops", "node-a", "node-b")
	calls := 0

	var out bytes.Buffer
	r, err := NewRunner(Options{
		User:           "ops",
		Hosts:          []string{"node-a", "node-b"},
		PromptPassword: countingPrompt("hunter2", &calls),
	}, pool, &out, nil)
	require.NoError(t, err)

	require.NoError(t, r.DropCaches(context.Background()))
	assert.Zero(t, calls, "password must not be prompted when sudo -n works")
	assert.Contains(t, out.String(), "[*] node-a caches dropped")
	assert.Contains(t, out.String(), "[*] node-b caches dropped")
	assert.Contains(t, out.String(), "caches dropped on 2 hosts")
}

func TestDropCaches_PasswordFallbackPromptsOnce(t *testing.T) {
	pool := newMapPool("ops", "node-a", "node-b")
	// Both hosts refuse non-interactive sudo; the password-fed variant works.
	pool.clients["node-a"].SetCommandResponse("sudo -n",
		sshtesting.CommandResponse{ExitCode: 1, Stderr: []byte("a password is required")})
	pool.clients["node-b"].SetCommandResponse("sudo -n",
		sshtesting.CommandResponse{ExitCode: 1, Stderr: []byte("a password is required")})

	calls := 0
	var out bytes.Buffer
	r, err := NewRunner(Options{
		User:           "ops",
		Hosts:          []string{"node-a", "node-b"},
		PromptPassword: countingPrompt("hunter2", &calls),
	}, pool, &out, nil)
	require.NoError(t, err)

	require.NoError(t, r.DropCaches(context.Background()))
	assert.Equal(t, 1, calls, "password must be prompted once and reused")
}

func TestDropCaches_NoPromptAvailable(t *testing.T) {
	pool := newMapPool("ops", "node-a")
	pool.clients["node-a"].SetCommandResponse("sudo -n",
		sshtesting.CommandResponse{ExitCode: 1})

	var out bytes.Buffer
	r, err := NewRunner(Options{User: "ops", Hosts: []string{"node-a"}}, pool, &out, nil)
	require.NoError(t, err)

	err = r.DropCaches(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "sudoers")
}

func TestDropCaches_BestEffortAcrossHosts(t *testing.T) {
	pool := newMapPool("ops", "node-a", "node-b")
	// node-a refuses both variants; node-b is fine.
	pool.clients["node-a"].SetCommandResponse("sudo",
		sshtesting.CommandResponse{ExitCode: 1, Stderr: []byte("Sorry, try again.")})

	calls := 0
	var out bytes.Buffer
	r, err := NewRunner(Options{
		User:           "ops",
		Hosts:          []string{"node-a", "node-b"},
		PromptPassword: countingPrompt("wrong", &calls),
	}, pool, &out, nil)
	require.NoError(t, err)

	err = r.DropCaches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-a")
	assert.Contains(t, out.String(), "[*] node-b caches dropped",
		"remaining hosts must still be processed")
}

func TestFixPerms_SkipNotes(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		note   string
	}{
		{"missing dir", "missing", "cache directory absent"},
		{"already owned", "owned", "already owned, skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMapPool("ops", "node-a")
			pool.clients["node-a"].SetCommandResponse("CACHE_DIR=",
				sshtesting.CommandResponse{Stdout: []byte(tt.marker + "\n")})

			var out bytes.Buffer
			r, err := NewRunner(Options{User: "ops", Hosts: []string{"node-a"}}, pool, &out, nil)
			require.NoError(t, err)

			require.NoError(t, r.FixPerms(context.Background(), ""))
			assert.Contains(t, out.String(), tt.note)
		})
	}
}

func TestFixPermsScript(t *testing.T) {
	script := fixPermsScript("~/.cache/huggingface", "sudo -n")
	assert.Contains(t, script, "CACHE_DIR=~/'.cache/huggingface'",
		"tilde must stay unquoted so the remote shell expands it")
	assert.Contains(t, script, `sudo -n /usr/bin/chown -R "$ME" "$CACHE_DIR"`)
	assert.Contains(t, script, `[ "$OWNER" = "$ME" ]`)

	// Hostile paths are neutralized by quoting.
	script = fixPermsScript("/srv/cache; rm -rf /", "sudo -n")
	assert.Contains(t, script, `CACHE_DIR='/srv/cache; rm -rf /'`)
}

func TestDropCachesScripts(t *testing.T) {
	assert.Contains(t, dropCachesProbe, "sync")
	assert.Contains(t, dropCachesProbe, "sudo -n /usr/bin/tee /proc/sys/vm/drop_caches")
	assert.Contains(t, dropCachesFallback, "sudo -S -p ''")
}
