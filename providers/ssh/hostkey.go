package ssh

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultKnownHostsPath returns the user's ~/.ssh/known_hosts path.
func DefaultKnownHostsPath() string {
	return filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts")
}

// DefaultKnownHosts returns a HostKeyCallback that verifies the host key against
// strict entries in the user's ~/.ssh/known_hosts file.
func DefaultKnownHosts() (ssh.HostKeyCallback, error) {
	return knownhosts.New(DefaultKnownHostsPath())
}

// KnownHosts returns a HostKeyCallback backed by the known_hosts file at path.
//
// With acceptNew, a host with no recorded key is trusted on first use and its key appended to
// the file; a host whose recorded key differs is still rejected. Appends are serialised with a
// lock file next to path so concurrent processes do not interleave lines.
func KnownHosts(path string, acceptNew bool, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if path == "" {
		path = DefaultKnownHostsPath()
	}

	if !acceptNew {
		return knownhosts.New(path)
	}

	if err := ensureFile(path); err != nil {
		return nil, fmt.Errorf("failed to prepare known_hosts: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tofu := &tofuHosts{path: path, lock: flock.New(path + ".lock"), logger: logger}

	return tofu.check, nil
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	return f.Close()
}

type tofuHosts struct {
	path   string
	mu     sync.Mutex // flock does not exclude goroutines of this process
	lock   *flock.Flock
	logger *slog.Logger
}

func (t *tofuHosts) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock known_hosts: %w", err)
	}

	defer func() { _ = t.lock.Unlock() }()

	// Re-read on every check so keys recorded by other processes are honoured.
	cb, err := knownhosts.New(t.path)
	if err != nil {
		return err
	}

	err = cb(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
		return err
	}

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts: %w", err)
	}

	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("failed to write to known_hosts: %w", err)
	}

	t.logger.Info("recorded new host key",
		slog.String("host", hostname),
		slog.String("fingerprint", ssh.FingerprintSHA256(key)),
	)

	return nil
}
