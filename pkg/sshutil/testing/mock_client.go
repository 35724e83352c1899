package testing

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates one remote host for testing.
// It understands the remote operations nodeprep performs (key bootstrap,
// public key reads, stdin-fed authorized_keys appends, basic shell commands)
// and executes them against a virtual filesystem, so the full mesh protocol
// can run end-to-end without a network.
type MockClient struct {
	mu       sync.Mutex
	user     string
	host     string
	address  string
	fs       *MockFS
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	history  []string                   // commands executed, in order
}

// NewMockClient creates a mock host with an empty filesystem.
func NewMockClient(user, host string) *MockClient {
	return &MockClient{
		user:     user,
		host:     host,
		address:  host + ":22",
		fs:       NewMockFS(),
		commands: make(map[string]CommandResponse),
	}
}

// Home returns the simulated home directory of the connection user.
func (m *MockClient) Home() string {
	return "/home/" + m.user
}

// Exec runs a command against the virtual filesystem.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	return m.ExecInput(cmd, nil)
}

// ExecInput runs a command with stdin attached.
func (m *MockClient) ExecInput(cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}

	m.history = append(m.history, cmd)

	// Canned responses win over built-in handlers: exact match first,
	// then regex patterns.
	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	return m.parseAndExecute(cmd, stdin)
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}

	if stdout != nil && len(out) > 0 {
		stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		stderr.Write(errOut)
	}

	return code, nil
}

// SendRequest simulates a global request on the connection.
// Used for lightweight liveness checks.
func (m *MockClient) SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, nil, errors.New("connection closed")
	}
	return true, nil, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetUser returns the connection user.
func (m *MockClient) GetUser() string {
	return m.user
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// GetFS returns the mock filesystem for direct manipulation in tests.
func (m *MockClient) GetFS() *MockFS {
	return m.fs
}

// History returns every command executed on this client, in order.
func (m *MockClient) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history))
	copy(out, m.history)
	return out
}

// parseAndExecute dispatches the remote operations nodeprep issues.
func (m *MockClient) parseAndExecute(cmd string, stdin io.Reader) (stdout, stderr []byte, exitCode int, err error) {
	trimmed := strings.TrimSpace(cmd)

	switch {
	case trimmed == "true":
		return nil, nil, 0, nil

	case trimmed == "id -un":
		return []byte(m.user + "\n"), nil, 0, nil

	case strings.Contains(cmd, "ssh-keygen"):
		return m.handleBootstrap(cmd)

	case strings.Contains(cmd, "grep -qxF") && strings.Contains(cmd, "authorized_keys"):
		return m.handleInstallKey(stdin)

	case strings.HasPrefix(trimmed, "cat "):
		return m.handleCatRead(trimmed)

	case strings.HasPrefix(trimmed, "mkdir -p "):
		path := m.expandHome(extractPath(strings.TrimPrefix(trimmed, "mkdir -p ")))
		if path == "" {
			return nil, []byte("mkdir: missing operand"), 1, nil
		}
		_ = m.fs.MkdirAll(path)
		return nil, nil, 0, nil

	case strings.HasPrefix(trimmed, "rm -rf "):
		path := m.expandHome(extractPath(strings.TrimPrefix(trimmed, "rm -rf ")))
		_ = m.fs.Remove(path)
		return nil, nil, 0, nil

	case strings.HasPrefix(trimmed, "test -f "):
		path := m.expandHome(extractPath(strings.TrimPrefix(trimmed, "test -f ")))
		if m.fs.IsFile(path) {
			return nil, nil, 0, nil
		}
		return nil, nil, 1, nil

	case strings.HasPrefix(trimmed, "test -d "):
		path := m.expandHome(extractPath(strings.TrimPrefix(trimmed, "test -d ")))
		if m.fs.IsDir(path) {
			return nil, nil, 0, nil
		}
		return nil, nil, 1, nil
	}

	// Unknown command - succeed by default so incidental shell noise
	// doesn't fail tests that don't care about it.
	return nil, nil, 0, nil
}

// handleBootstrap emulates the key bootstrap script: generate a key pair
// only when the private key is absent, record the permission normalization.
func (m *MockClient) handleBootstrap(cmd string) ([]byte, []byte, int, error) {
	keyType := "ed25519"
	if matches := regexp.MustCompile(`-t (\w+)`).FindStringSubmatch(cmd); len(matches) > 1 {
		keyType = matches[1]
	}

	sshDir := m.Home() + "/.ssh"
	priv := sshDir + "/id_" + keyType
	pub := priv + ".pub"

	_ = m.fs.MkdirAll(sshDir)

	var out string
	if m.fs.IsFile(priv) {
		out = "exists\n"
	} else {
		_ = m.fs.WriteFile(priv, []byte(fmt.Sprintf("-----MOCK %s PRIVATE KEY %s-----", keyType, m.host)))
		_ = m.fs.WriteFile(pub, []byte(PublicKeyFor(keyType, m.user, m.host)+"\n"))
		out = "generated\n"
	}

	m.fs.Chmod(sshDir, "700")
	m.fs.Chmod(priv, "600")
	m.fs.Chmod(pub, "644")

	return []byte(out), nil, 0, nil
}

// handleInstallKey emulates the authorized_keys append script: the key line
// arrives on stdin and is appended only when no existing line matches exactly.
func (m *MockClient) handleInstallKey(stdin io.Reader) ([]byte, []byte, int, error) {
	if stdin == nil {
		return nil, []byte("no key on stdin"), 2, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, nil, -1, err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return nil, []byte("no key on stdin"), 2, nil
	}

	sshDir := m.Home() + "/.ssh"
	authKeys := sshDir + "/authorized_keys"
	_ = m.fs.MkdirAll(sshDir)
	if !m.fs.IsFile(authKeys) {
		_ = m.fs.WriteFile(authKeys, nil)
	}

	var out string
	if m.fs.ContainsLine(authKeys, key) {
		out = "present\n"
	} else {
		_ = m.fs.AppendLine(authKeys, key)
		out = "installed\n"
	}

	m.fs.Chmod(sshDir, "700")
	m.fs.Chmod(authKeys, "600")

	return []byte(out), nil, 0, nil
}

// handleCatRead processes: cat "path" or cat path
func (m *MockClient) handleCatRead(cmd string) ([]byte, []byte, int, error) {
	path := m.expandHome(extractPath(strings.TrimPrefix(cmd, "cat ")))
	if path == "" {
		return nil, []byte("cat: missing file operand"), 1, nil
	}

	content, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, []byte("cat: " + path + ": No such file or directory"), 1, nil
	}
	return content, nil, 0, nil
}

// expandHome rewrites $HOME and ~ prefixes to the mock user's home.
func (m *MockClient) expandHome(path string) string {
	path = strings.ReplaceAll(path, "$HOME", m.Home())
	if strings.HasPrefix(path, "~/") {
		path = m.Home() + path[1:]
	}
	return path
}

// extractPath strips surrounding quotes from a path argument.
func extractPath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " 2>/dev/null")
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	// Take the first field for commands with trailing arguments
	if idx := strings.IndexByte(s, ' '); idx != -1 {
		return s[:idx]
	}
	return s
}

// PublicKeyFor returns the deterministic public key line the mock generates
// for a given key type, user, and host. Tests use it to assert on
// authorized_keys contents.
func PublicKeyFor(keyType, user, host string) string {
	return fmt.Sprintf("ssh-%s AAAAmock%s %s@%s", keyType, host, user, host)
}
