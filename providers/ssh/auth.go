package ssh

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// errNoKey marks a private key that cannot be used without a passphrase.
var errNoKey = errors.New("private key is passphrase protected")

// authAttempt records whether the server got as far as asking for credentials, which separates
// a rejected login from a handshake that never reached authentication.
type authAttempt struct {
	ran atomic.Bool
}

func (a *authAttempt) password(pw string) ssh.AuthMethod {
	return ssh.PasswordCallback(func() (string, error) {
		a.ran.Store(true)

		return pw, nil
	})
}

func (a *authAttempt) publicKeys(signers ...ssh.Signer) ssh.AuthMethod {
	return ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
		a.ran.Store(true)

		return signers, nil
	})
}

// loadSigner reads and parses a private key file.
func loadSigner(keyPath string) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errNoKey
		}

		return nil, fmt.Errorf("failed to parse private key file: %w", err)
	}

	return signer, nil
}
