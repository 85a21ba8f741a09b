package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name used for keyring entries.
const KeyringService = "sshrs"

// ErrNoPassword is returned when no password source yields a value.
var ErrNoPassword = errors.New("no password configured")

func keyringKey(user, host string) string {
	return fmt.Sprintf("%s@%s", user, host)
}

// StorePassword saves the password for user@host in the OS keyring.
func StorePassword(user, host, password string) error {
	if err := keyring.Set(KeyringService, keyringKey(user, host), password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	return nil
}

// DeletePassword removes the password for user@host. A missing entry is not an error.
func DeletePassword(user, host string) error {
	err := keyring.Delete(KeyringService, keyringKey(user, host))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password: %w", err)
	}

	return nil
}

// Password resolves the password for user@host: the variable named by Auth.PasswordEnv first,
// then the OS keyring when Auth.UseKeyring is set.
func (c *Config) Password(user, host string, lookup func(string) (string, bool)) (string, error) {
	if c.Auth.PasswordEnv != "" {
		if v, ok := lookup(c.Auth.PasswordEnv); ok && v != "" {
			return v, nil
		}
	}

	if !c.Auth.UseKeyring {
		return "", ErrNoPassword
	}

	pw, err := keyring.Get(KeyringService, keyringKey(user, host))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: no keyring entry for %s", ErrNoPassword, keyringKey(user, host))
	}

	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}

	return pw, nil
}
