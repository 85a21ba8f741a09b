package sshrs

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrInvalidTarget indicates that a Session was constructed with an unusable host or port.
var ErrInvalidTarget = errors.New("invalid target")

// ErrAlreadyConnected indicates that Connect or ConnectAgent was called on an authenticated Session.
var ErrAlreadyConnected = errors.New("session already connected")

// ErrSessionClosed indicates that an operation was attempted on a closed Session.
var ErrSessionClosed = errors.New("session is closed")

// ErrConnectionLost indicates that the transport reported the connection dead.
var ErrConnectionLost = errors.New("connection lost")

// ErrAgentUnavailable indicates that no SSH agent could be reached.
var ErrAgentUnavailable = errors.New("ssh agent unavailable")

// ErrNoIdentities indicates that the SSH agent holds no identities.
var ErrNoIdentities = errors.New("ssh agent has no identities")

// ErrNotSupported indicates that the transport does not support the requested feature.
var ErrNotSupported = errors.New("operation not supported")

// ConnectionError represents a failure to establish, or keep, the transport to the remote host
// (unreachable host, refused port, failed handshake, dead connection).
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthMethod identifies the authentication mechanism used by a connect operation.
type AuthMethod string

const (
	// AuthPassword is password authentication.
	AuthPassword AuthMethod = "password"
	// AuthAgent is public-key authentication with identities from an SSH agent.
	AuthAgent AuthMethod = "agent"
)

// AuthenticationError represents credentials or agent identities rejected by the remote host.
type AuthenticationError struct {
	User   string
	Method AuthMethod
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed for user %q: %v", e.Method, e.User, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NotAuthenticatedError is returned when an operation is attempted before a successful connect.
type NotAuthenticatedError struct {
	Op  string
	Err error
}

func (e *NotAuthenticatedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: session not authenticated: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s: session not authenticated", e.Op)
}

func (e *NotAuthenticatedError) Unwrap() error {
	return e.Err
}

// ChannelKind identifies the purpose of a channel.
type ChannelKind int

const (
	// ChannelExec is a command execution channel.
	ChannelExec ChannelKind = iota
	// ChannelFileWrite is a file upload channel.
	ChannelFileWrite
	// ChannelFileRead is a file download channel.
	ChannelFileRead
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelExec:
		return "exec"
	case ChannelFileWrite:
		return "file-write"
	case ChannelFileRead:
		return "file-read"
	default:
		return "unknown"
	}
}

// ChannelError represents the remote refusing, or failing, to open a requested channel.
type ChannelError struct {
	Kind   ChannelKind
	Target string // command or remote path
	Err    error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("open %s channel for %q: %v", e.Kind, e.Target, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// TransferOp identifies the operation during which a TransferError occurred.
type TransferOp string

const (
	// OpExec is reading command output.
	OpExec TransferOp = "exec"
	// OpUpload is writing a remote file.
	OpUpload TransferOp = "upload"
	// OpDownload is reading a remote file.
	OpDownload TransferOp = "download"
)

// TransferReason classifies a TransferError.
type TransferReason int

const (
	// ReasonIO is a generic I/O failure after the channel opened.
	ReasonIO TransferReason = iota
	// ReasonNotFound means the remote path (or its parent) does not exist.
	ReasonNotFound
	// ReasonPermissionDenied means the remote host refused access to the path.
	ReasonPermissionDenied
	// ReasonNotRegular means the remote path is not a regular file.
	ReasonNotRegular
	// ReasonShortWrite means fewer bytes reached the remote file than were read locally.
	ReasonShortWrite
	// ReasonTooLarge means the remote file exceeds the configured size limit.
	ReasonTooLarge
)

func (r TransferReason) String() string {
	switch r {
	case ReasonIO:
		return "i/o failure"
	case ReasonNotFound:
		return "not found"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonNotRegular:
		return "not a regular file"
	case ReasonShortWrite:
		return "short write"
	case ReasonTooLarge:
		return "file too large"
	default:
		return "unknown"
	}
}

// TransferError represents an I/O failure on an open channel.
type TransferError struct {
	Op     TransferOp
	Path   string
	Reason TransferReason
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %s", e.Op, e.Path, e.Reason)
	}

	return fmt.Sprintf("%s %q: %s: %v", e.Op, e.Path, e.Reason, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// LocalIOError represents a failure reading or writing a local file.
type LocalIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("local %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

// DecodingError is returned when command output is not valid text in the expected charset.
type DecodingError struct {
	Charset string
	Offset  int // Byte offset of the first undecodable byte, or -1 if unknown
	Err     error
}

func (e *DecodingError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("output is not valid %s at byte %d", e.Charset, e.Offset)
	}

	return fmt.Sprintf("output is not valid %s: %v", e.Charset, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// ExitError describes a command that completed with a non-zero exit status.
// RunCommand never returns it; callers opt in through CommandResult.Err.
type ExitError struct {
	Command    string
	ExitStatus int
	Signal     string
	Stderr     []byte
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("command %q killed by signal %s", e.Command, e.Signal)
	}

	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitStatus)
}

// IsNotFound reports whether err is a TransferError caused by a missing remote path.
func IsNotFound(err error) bool {
	return hasReason(err, ReasonNotFound)
}

// IsPermissionDenied reports whether err is a TransferError caused by the remote refusing access.
func IsPermissionDenied(err error) bool {
	return hasReason(err, ReasonPermissionDenied)
}

func hasReason(err error, reason TransferReason) bool {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Reason == reason
	}

	return false
}

// ReasonFor maps a filesystem-style error to a TransferReason.
// Transports use it to classify errors from their file subsystem.
func ReasonFor(err error) TransferReason {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	default:
		return ReasonIO
	}
}

// isTyped reports whether err already carries one of the taxonomy types,
// in which case the Session passes it through unchanged.
func isTyped(err error) bool {
	var (
		connErr  *ConnectionError
		authErr  *AuthenticationError
		chanErr  *ChannelError
		xferErr  *TransferError
		localErr *LocalIOError
		decErr   *DecodingError
	)

	return errors.As(err, &connErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &chanErr) ||
		errors.As(err, &xferErr) ||
		errors.As(err, &localErr) ||
		errors.As(err, &decErr)
}
