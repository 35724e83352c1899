// Package models manages HuggingFace model weights for the cluster: spec
// parsing, cache inspection, and downloads both local and remote.
//
// Model specs use colon syntax to select one GGUF quantization variant:
// "Qwen/Qwen3-1.7B-GGUF:Q4_K_M" downloads only the Q4_K_M files instead of
// every variant in the repository.
package models

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Spec identifies a model, optionally narrowed to one GGUF quant variant.
type Spec struct {
	Repo     string
	Quant    string
	HasQuant bool
}

// ParseSpec splits "repo[:QUANT]" on the last colon.
func ParseSpec(s string) Spec {
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		return Spec{Repo: s[:idx], Quant: s[idx+1:], HasQuant: true}
	}
	return Spec{Repo: s}
}

// String renders the spec back to its colon form.
func (s Spec) String() string {
	if s.HasQuant {
		return s.Repo + ":" + s.Quant
	}
	return s.Repo
}

// IsGGUF reports whether the spec refers to a GGUF model: either a quant
// variant was selected or the repository name carries the GGUF marker.
func (s Spec) IsGGUF() bool {
	return s.HasQuant || strings.Contains(strings.ToLower(s.Repo), "gguf")
}

// CacheName returns the repository's directory name inside the hub cache,
// e.g. "models--Qwen--Qwen3-1.7B-GGUF".
func (s Spec) CacheName() string {
	return "models--" + strings.ReplaceAll(s.Repo, "/", "--")
}

// HubDir returns the hub cache directory under cacheDir. Downloads must use
// this subdirectory to stay consistent with the standard
// ~/.cache/huggingface/hub layout.
func HubDir(cacheDir string) string {
	return filepath.Join(cacheDir, "hub")
}

// CachePath returns the repository's cache directory under cacheDir.
func (s Spec) CachePath(cacheDir string) string {
	return filepath.Join(HubDir(cacheDir), s.CacheName())
}

// IsCached reports whether the model is already present in the local cache.
// Plain models count as cached when their cache directory exists and is
// non-empty; GGUF specs require a matching .gguf file.
func (s Spec) IsCached(cacheDir string) bool {
	if s.IsGGUF() {
		_, found := s.ResolveGGUF(cacheDir)
		return found
	}

	entries, err := os.ReadDir(s.CachePath(cacheDir))
	return err == nil && len(entries) > 0
}

// ResolveGGUF finds the cached .gguf file for the spec, searching snapshot
// directories newest first. With a quant variant, only file names containing
// it (case-insensitive) match; without one, any .gguf file does.
func (s Spec) ResolveGGUF(cacheDir string) (string, bool) {
	snapshots := filepath.Join(s.CachePath(cacheDir), "snapshots")
	entries, err := os.ReadDir(snapshots)
	if err != nil {
		return "", false
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() > entries[j].Name()
	})

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(snapshots, entry.Name(), "*.gguf"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, match := range matches {
			if !s.HasQuant || s.Quant == "" {
				return match, true
			}
			if strings.Contains(strings.ToLower(filepath.Base(match)), strings.ToLower(s.Quant)) {
				return match, true
			}
		}
	}
	return "", false
}
