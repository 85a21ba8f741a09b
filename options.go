package sshrs

import (
	"log/slog"
	"os"
)

type sessionConfig struct {
	transport Transport
	logger    *slog.Logger
	charset   string
}

// Option defines a functional option for a Session.
type Option func(*sessionConfig)

// WithTransport sets the protocol engine the Session drives.
func WithTransport(t Transport) Option {
	return func(c *sessionConfig) {
		c.transport = t
	}
}

// WithLogger sets the logger for connection and channel lifecycle events.
// Credentials are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOutputCharset decodes command output from the named charset (an IANA or WHATWG
// label such as "latin1" or "shift_jis") instead of validating it as UTF-8.
func WithOutputCharset(name string) Option {
	return func(c *sessionConfig) {
		c.charset = name
	}
}

// FileConfig holds configuration for file transfers.
type FileConfig struct {
	Permissions os.FileMode // Destination perms override (0 means preserve local mode)
	MaxSize     int64       // Download size limit in bytes (0 means unlimited)
	Progress    ProgressFunc
}

// FileOption defines a functional option for file transfers.
type FileOption func(*FileConfig)

// WithPermissions forces specific destination file mode on upload.
func WithPermissions(mode os.FileMode) FileOption {
	return func(c *FileConfig) {
		c.Permissions = mode
	}
}

// WithMaxSize refuses downloads larger than n bytes before reading any content.
func WithMaxSize(n int64) FileOption {
	return func(c *FileConfig) {
		c.MaxSize = n
	}
}

// ProgressFunc is a callback for tracking file transfer progress.
type ProgressFunc func(current, total int64)

// WithProgress calls fn with progress updates.
func WithProgress(fn ProgressFunc) FileOption {
	return func(c *FileConfig) {
		c.Progress = fn
	}
}
