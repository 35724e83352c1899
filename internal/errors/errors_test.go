package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	// Verify all expected error codes exist
	codes := []string{
		ErrUsage,
		ErrConfig,
		ErrSSH,
		ErrBootstrap,
		ErrKeyRead,
		ErrInstall,
		ErrExec,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	// Verify codes are unique
	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "usage error",
			code:       ErrUsage,
			message:    "Need a username and at least 3 hosts",
			suggestion: "Usage: nodeprep mesh <user> <host1> <host2> <host3> [...]",
		},
		{
			name:       "ssh error",
			code:       ErrSSH,
			message:    "Cannot reach host gpu-02",
			suggestion: "Make sure the host is reachable: ping gpu-02",
		},
		{
			name:       "bootstrap error",
			code:       ErrBootstrap,
			message:    "ssh-keygen failed on gpu-01",
			suggestion: "Check that OpenSSH is installed on the host",
		},
		{
			name:       "key read error",
			code:       ErrKeyRead,
			message:    "Public key on gpu-03 is empty",
			suggestion: "Inspect ~/.ssh/id_ed25519.pub on the host",
		},
		{
			name:       "install error",
			code:       ErrInstall,
			message:    "Failed writing authorized_keys on gpu-02",
			suggestion: "Check ~/.ssh permissions on the host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid configuration", "Check .nodeprep.yaml syntax"),
			expectedParts: []string{
				"Invalid configuration",
				"Check .nodeprep.yaml syntax",
			},
		},
		{
			name: "error with failure symbol",
			err:  New(ErrSSH, "Connection failed", "Try again"),
			expectedParts: []string{
				"✗",
				"Connection failed",
			},
		},
		{
			name: "wrapped error includes cause",
			err:  WrapWithCode(errors.New("dial tcp: i/o timeout"), ErrSSH, "Cannot reach gpu-02", "Check the network"),
			expectedParts: []string{
				"Cannot reach gpu-02",
				"dial tcp: i/o timeout",
				"Check the network",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, errStr, part)
			}
		})
	}
}

func TestNewHostError(t *testing.T) {
	err := NewHostError(ErrInstall, "gpu-02", "phase 4", "Append failed", "Check permissions")

	assert.Equal(t, ErrInstall, err.Code)
	assert.Contains(t, err.Message, "gpu-02")
	assert.Contains(t, err.Message, "phase 4")
	assert.True(t, strings.Contains(err.Error(), "Append failed"))
}

func TestWrapDefaultsToSSH(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, "something broke")

	assert.Equal(t, ErrSSH, err.Code)
	assert.Equal(t, cause, err.Cause)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapWithCode(cause, ErrExec, "wrapper", "")

	assert.True(t, errors.Is(err, cause))

	var npErr *Error
	require.True(t, errors.As(error(err), &npErr))
	assert.Equal(t, ErrExec, npErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrKeyRead, "empty key", "")

	assert.True(t, IsCode(err, ErrKeyRead))
	assert.False(t, IsCode(err, ErrSSH))
	assert.False(t, IsCode(nil, ErrKeyRead))
	assert.False(t, IsCode(errors.New("plain"), ErrKeyRead))
}
