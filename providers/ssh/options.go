package ssh

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/ssh"
)

// Option defines a functional option for the SSH provider.
type Option func(*Config)

// WithConfig returns an Option that sets multiple fields from a Config struct.
// Useful for configuration loaded from an OpenSSH config file.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

// WithTimeout sets the dial and handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithKnownHosts verifies host keys against the known_hosts file at path.
func WithKnownHosts(path string) Option {
	return func(c *Config) {
		c.KnownHostsPath = path
	}
}

// WithAcceptNewHostKeys records the keys of hosts not yet in known_hosts instead of rejecting them.
// Changed keys are still rejected.
func WithAcceptNewHostKeys(accept bool) Option {
	return func(c *Config) {
		c.AcceptNewHostKeys = accept
	}
}

// WithHostKeyCallback sets a custom host key callback.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(c *Config) {
		c.HostKeyCheck = cb
	}
}

// WithInsecureSkipVerify enables/disables strict host key checking.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Config) {
		c.InsecureSkipVerify = skip
	}
}

// WithAgentSocket sets the SSH agent socket used by agent authentication.
func WithAgentSocket(path string) Option {
	return func(c *Config) {
		c.AgentSocket = path
	}
}

// WithKeyPath sets the path to a private key offered before the password.
func WithKeyPath(path string) Option {
	return func(c *Config) {
		c.PrivateKeyPath = path
	}
}

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
