package mesh

import (
	"fmt"

	"github.com/nodeprep/nodeprep/internal/errors"
)

// KeyType is the asymmetric key algorithm used for mesh identities.
type KeyType string

const (
	KeyEd25519 KeyType = "ed25519"
	KeyRSA     KeyType = "rsa"
	KeyECDSA   KeyType = "ecdsa"
)

// ParseKeyType validates a key type string.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(s) {
	case KeyEd25519, KeyRSA, KeyECDSA:
		return KeyType(s), nil
	case "":
		return KeyEd25519, nil
	}
	return "", errors.New(errors.ErrConfig,
		fmt.Sprintf("Invalid key type: %s", s),
		"Supported types: ed25519 (recommended), rsa, ecdsa")
}

// PrivateKeyPath returns the remote private key path for the algorithm,
// relative to the remote user's home.
func (kt KeyType) PrivateKeyPath() string {
	return fmt.Sprintf("~/.ssh/id_%s", kt)
}

// PublicKeyPath returns the remote public key path for the algorithm.
func (kt KeyType) PublicKeyPath() string {
	return kt.PrivateKeyPath() + ".pub"
}

// The remote operations below are fixed script texts: no host, username, or
// key data is ever interpolated into them. Variable data travels over the
// session's stdin, which removes the quoting/injection surface entirely.
// Every script is written to be idempotent, so a rerun after any partial
// failure converges to the same end state.

// connectivityCommand is the phase-1 no-op. It proves the session can
// authenticate and execute before anything is mutated anywhere.
const connectivityCommand = "true"

// bootstrapCommand returns the phase-2 script: create the key pair only when
// the private key is absent, then normalize permissions either way.
// Prints "exists" or "generated" so the caller can log the skip.
func bootstrapCommand(kt KeyType) string {
	priv := fmt.Sprintf(`"$HOME/.ssh/id_%s"`, kt)
	pub := fmt.Sprintf(`"$HOME/.ssh/id_%s.pub"`, kt)
	keygen := fmt.Sprintf(`ssh-keygen -q -t %s -N '' -f %s`, kt, priv)
	if kt == KeyRSA {
		keygen = fmt.Sprintf(`ssh-keygen -q -t rsa -b 4096 -N '' -f %s`, priv)
	}
	return fmt.Sprintf(`umask 077
mkdir -p "$HOME/.ssh" || exit 1
if [ -f %[1]s ]; then
  echo exists
else
  %[2]s || exit 1
  echo generated
fi
chmod 700 "$HOME/.ssh" || exit 1
chmod 600 %[1]s || exit 1
chmod 644 %[3]s || exit 1`, priv, keygen, pub)
}

// readPublicKeyCommand returns the phase-3 script reading back the public key.
func readPublicKeyCommand(kt KeyType) string {
	return fmt.Sprintf(`cat "$HOME/.ssh/id_%s.pub"`, kt)
}

// installKeyCommand is the phase-4 script. The public key line arrives on
// stdin; the script appends it to authorized_keys only when no existing line
// is exactly equal (grep -qxF, full-line fixed-string match). The umask keeps
// a freshly created authorized_keys from ever being observable with loose
// permissions, and modes are re-tightened unconditionally afterwards.
// Prints "present" or "installed".
const installKeyCommand = `umask 077
mkdir -p "$HOME/.ssh" || exit 1
touch "$HOME/.ssh/authorized_keys" || exit 1
key="$(cat)"
[ -n "$key" ] || exit 2
if grep -qxF -- "$key" "$HOME/.ssh/authorized_keys"; then
  echo present
else
  printf '%s\n' "$key" >> "$HOME/.ssh/authorized_keys" || exit 1
  echo installed
fi
chmod 700 "$HOME/.ssh" || exit 1
chmod 600 "$HOME/.ssh/authorized_keys" || exit 1`
