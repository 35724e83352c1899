package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func testHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	return signer.PublicKey()
}

func testRemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
}

func TestTrustOnFirstUse_CreatesKnownHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ssh", "known_hosts")

	if _, err := trustOnFirstUseCallback(path); err != nil {
		t.Fatalf("trustOnFirstUseCallback: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("known_hosts not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("known_hosts mode = %o, want 0600", perm)
	}
}

func TestTrustOnFirstUse_AcceptsAndRecordsUnknownHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	key := testHostKey(t)

	callback, err := trustOnFirstUseCallback(path)
	if err != nil {
		t.Fatalf("trustOnFirstUseCallback: %v", err)
	}

	if err := callback("node-a:22", testRemoteAddr(), key); err != nil {
		t.Fatalf("first contact should be accepted, got: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading known_hosts: %v", err)
	}
	if !strings.Contains(string(content), "node-a") {
		t.Errorf("known_hosts should record node-a, got:\n%s", content)
	}

	// A fresh callback over the recorded file accepts the same key.
	callback2, err := trustOnFirstUseCallback(path)
	if err != nil {
		t.Fatalf("trustOnFirstUseCallback: %v", err)
	}
	if err := callback2("node-a:22", testRemoteAddr(), key); err != nil {
		t.Errorf("recorded key should be accepted, got: %v", err)
	}
}

func TestTrustOnFirstUse_RejectsChangedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	original := testHostKey(t)
	changed := testHostKey(t)

	callback, err := trustOnFirstUseCallback(path)
	if err != nil {
		t.Fatalf("trustOnFirstUseCallback: %v", err)
	}
	if err := callback("node-a:22", testRemoteAddr(), original); err != nil {
		t.Fatalf("first contact: %v", err)
	}

	// Reload so the recorded key is in the database, then present another.
	callback2, err := trustOnFirstUseCallback(path)
	if err != nil {
		t.Fatalf("trustOnFirstUseCallback: %v", err)
	}

	err = callback2("node-a:22", testRemoteAddr(), changed)
	if err == nil {
		t.Fatal("changed host key should be rejected")
	}
	mismatch, ok := err.(*HostKeyMismatchError)
	if !ok {
		t.Fatalf("error type = %T, want *HostKeyMismatchError", err)
	}
	if mismatch.Hostname != "node-a:22" {
		t.Errorf("Hostname = %q, want node-a:22", mismatch.Hostname)
	}
	if !strings.Contains(mismatch.Suggestion(), "ssh-keygen -R") {
		t.Errorf("suggestion should mention ssh-keygen -R, got: %s", mismatch.Suggestion())
	}
}
