package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple string",
			input: "hello",
			want:  "'hello'",
		},
		{
			name:  "string with spaces",
			input: "hello world",
			want:  "'hello world'",
		},
		{
			name:  "string with single quote",
			input: "it's",
			want:  "'it'\\''s'",
		},
		{
			name:  "empty string",
			input: "",
			want:  "''",
		},
		{
			name:  "shell metacharacters stay literal",
			input: "host; rm -rf /",
			want:  "'host; rm -rf /'",
		},
		{
			name:  "command substitution stays literal",
			input: "$(whoami)",
			want:  "'$(whoami)'",
		},
		{
			name:  "backticks stay literal",
			input: "`id`",
			want:  "'`id`'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuote(tt.input))
		})
	}
}

func TestShellQuotePreserveTilde(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tilde path",
			input: "~/.cache/huggingface",
			want:  "~/'.cache/huggingface'",
		},
		{
			name:  "bare tilde",
			input: "~",
			want:  "~",
		},
		{
			name:  "absolute path",
			input: "/etc/sudoers.d/nodeprep",
			want:  "'/etc/sudoers.d/nodeprep'",
		},
		{
			name:  "tilde path with spaces",
			input: "~/my cache",
			want:  "~/'my cache'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellQuotePreserveTilde(tt.input))
		})
	}
}
