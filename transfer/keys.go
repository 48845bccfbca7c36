package transfer

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// LoadSigner parses the configured private key, decrypting it when a
// passphrase is supplied. ssh.ParsePrivateKey handles RSA, ECDSA, Ed25519
// and DSA material in both PEM and OpenSSH formats.
func LoadSigner(fs afero.Fs, path, passphrase string) (ssh.Signer, error) {
	if path == "" {
		return nil, errors.New("no private key path specified")
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %v", path, err)
	}

	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(raw, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting private key: %v", err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errors.New("private key is encrypted; passphrase missing")
		}
		return nil, fmt.Errorf("parsing private key: %v", err)
	}
	return signer, nil
}

// ValidateKey confirms the key file is readable and decryptable before a run
// starts, returning the key algorithm. A failure here is surfaced to the
// operator but does not block a run.
func ValidateKey(fs afero.Fs, path, passphrase string) (string, error) {
	signer, err := LoadSigner(fs, path, passphrase)
	if err != nil {
		return "", err
	}
	return signer.PublicKey().Type(), nil
}
