package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeprep/nodeprep/internal/errors"
)

func TestParseKeyType(t *testing.T) {
	tests := []struct {
		input   string
		want    KeyType
		wantErr bool
	}{
		{"ed25519", KeyEd25519, false},
		{"rsa", KeyRSA, false},
		{"ecdsa", KeyECDSA, false},
		{"", KeyEd25519, false}, // default
		{"dsa", "", true},
		{"ED25519", "", true},
	}

	for _, tt := range tests {
		t.Run("input_"+tt.input, func(t *testing.T) {
			got, err := ParseKeyType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyTypePaths(t *testing.T) {
	assert.Equal(t, "~/.ssh/id_ed25519", KeyEd25519.PrivateKeyPath())
	assert.Equal(t, "~/.ssh/id_ed25519.pub", KeyEd25519.PublicKeyPath())
	assert.Equal(t, "~/.ssh/id_rsa.pub", KeyRSA.PublicKeyPath())
}

func TestBootstrapCommand(t *testing.T) {
	ed := bootstrapCommand(KeyEd25519)
	assert.Contains(t, ed, "umask 077")
	assert.Contains(t, ed, `ssh-keygen -q -t ed25519 -N '' -f "$HOME/.ssh/id_ed25519"`)
	assert.Contains(t, ed, `if [ -f "$HOME/.ssh/id_ed25519" ]`)
	assert.Contains(t, ed, `chmod 600 "$HOME/.ssh/id_ed25519"`)
	assert.NotContains(t, ed, "-b 4096")

	rsa := bootstrapCommand(KeyRSA)
	assert.Contains(t, rsa, "ssh-keygen -q -t rsa -b 4096")
	assert.Contains(t, rsa, `chmod 644 "$HOME/.ssh/id_rsa.pub"`)
}

func TestReadPublicKeyCommand(t *testing.T) {
	assert.Equal(t, `cat "$HOME/.ssh/id_ed25519.pub"`, readPublicKeyCommand(KeyEd25519))
	assert.Equal(t, `cat "$HOME/.ssh/id_rsa.pub"`, readPublicKeyCommand(KeyRSA))
}

func TestInstallKeyCommand(t *testing.T) {
	// The key line arrives on stdin; the script text itself must carry no
	// variable data and must dedupe with exact full-line matching.
	assert.Contains(t, installKeyCommand, `key="$(cat)"`)
	assert.Contains(t, installKeyCommand, `grep -qxF -- "$key"`)
	assert.Contains(t, installKeyCommand, "umask 077")
	assert.Contains(t, installKeyCommand, `[ -n "$key" ] || exit 2`)
	assert.Contains(t, installKeyCommand, `chmod 600 "$HOME/.ssh/authorized_keys"`)
}
