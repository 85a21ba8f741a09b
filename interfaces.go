// Package sshrs provides a client-side SSH session façade: one Session per remote host, one
// authentication, then any number of command executions, file uploads and file downloads.
//
// # Collaborators
//
// The SSH protocol engine is not implemented here. A Session drives it through the Transport,
// Conn and channel interfaces below; providers/ssh implements them over golang.org/x/crypto/ssh
// and github.com/pkg/sftp, providers/mock implements them with testify/mock.
//
// # Channels
//
// Every operation opens a fresh channel, runs it to completion, closes it and only then returns.
// Channels are never shared or retained.
//
// # Concurrency
//
// A Session is not safe for concurrent use. Operations block until the remote round-trip
// completes or fails; give each goroutine that needs SSH access its own Session.
//
// Port forwarding, tunnels and interactive shells are deliberately absent from these interfaces.
package sshrs

import (
	"context"
	"io"
	"os"
)

// Transport establishes connections to remote hosts.
type Transport interface {
	// Open establishes the transport to host:port. The returned Conn is not yet authenticated.
	// Failures must be reported as *ConnectionError.
	Open(ctx context.Context, host string, port int) (Conn, error)
}

// Conn is a live connection owned by exactly one Session.
type Conn interface {
	io.Closer

	// AuthenticatePassword authenticates user with a password.
	// Rejections are reported as *AuthenticationError, handshake failures as *ConnectionError.
	AuthenticatePassword(ctx context.Context, user, password string) error

	// AuthenticateAgent authenticates user with each identity held by the local SSH agent,
	// succeeding on the first one the remote host accepts.
	AuthenticateAgent(ctx context.Context, user string) error

	// OpenExec opens an exec channel and starts command on the remote host.
	OpenExec(ctx context.Context, command string) (ExecChannel, error)

	// OpenFileWrite opens a channel that writes size bytes to remotePath with the given mode.
	OpenFileWrite(ctx context.Context, remotePath string, size int64, mode os.FileMode) (WriteChannel, error)

	// OpenFileRead opens a channel that reads remotePath, returning its metadata alongside.
	OpenFileRead(ctx context.Context, remotePath string) (ReadChannel, *FileStat, error)

	// Keepalive sends a single keepalive request and waits for the reply.
	Keepalive(ctx context.Context) error

	// Err returns a non-nil error once the transport has reported the connection dead.
	Err() error
}

// ExecChannel is a single-use channel running one remote command.
type ExecChannel interface {
	io.Closer

	// Stdout returns the command's standard output stream. It reaches EOF when the remote
	// side signals end-of-stream.
	Stdout() io.Reader

	// Wait blocks until the remote command exits. Call it after Stdout is drained.
	Wait() (ExitStatus, error)

	// Stderr returns the captured standard error. Only valid after Wait.
	Stderr() []byte
}

// WriteChannel is a single-use channel writing one remote file.
type WriteChannel interface {
	io.Writer

	// Close flushes and finalises the remote file. The file only appears at its target path
	// once Close succeeds.
	Close() error

	// Abort discards whatever was written. It is safe to call after a failed Write or Close.
	Abort() error
}

// ReadChannel is a single-use channel reading one remote file.
type ReadChannel interface {
	io.ReadCloser
}
