package sshrs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
)

// FileStat is remote file metadata returned alongside downloaded content.
type FileStat struct {
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
	AccessTime time.Time // Zero if the server did not report it
	UID, GID   uint32
}

// ExitStatus is how a remote command terminated.
type ExitStatus struct {
	Code   int    // Exit code; -1 if the command was killed by a signal or reported nothing
	Signal string // Signal name without the SIG prefix, if any
}

// CommandResult is the outcome of one exec channel's lifetime.
type CommandResult struct {
	Command    string
	Stdout     string // Decoded standard output
	Stderr     []byte // Captured standard error (bounded by the transport)
	ExitStatus int
	ExitSignal string
	Duration   time.Duration
}

// Success returns true if the command exited with status 0.
func (r *CommandResult) Success() bool {
	return r.ExitStatus == 0 && r.ExitSignal == ""
}

// Failed returns true if the command exited non-zero or was killed by a signal.
func (r *CommandResult) Failed() bool {
	return !r.Success()
}

// Err returns an *ExitError describing a non-zero exit, or nil on success.
// Callers that treat a non-zero exit as failure use it explicitly; RunCommand does not.
func (r *CommandResult) Err() error {
	if r.Success() {
		return nil
	}

	return &ExitError{
		Command:    r.Command,
		ExitStatus: r.ExitStatus,
		Signal:     r.ExitSignal,
		Stderr:     r.Stderr,
	}
}

// Command describes a remote command in structured form.
// Session.Run renders it to a POSIX shell command line with String.
type Command struct {
	Cmd  string   // Binary name or path to executable
	Args []string // Arguments to pass to the binary
	Env  []string // Environment variables in "KEY=VALUE" format
	Dir  string   // Working directory for execution
}

// Validate checks that the command is well-formed.
func (c *Command) Validate() error {
	if c == nil {
		return errors.New("command cannot be nil")
	}

	if strings.TrimSpace(c.Cmd) == "" {
		return errors.New("command binary cannot be empty")
	}

	return nil
}

// NewCommand creates a new Command with the given binary and arguments.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Cmd:  binary,
		Args: args,
	}
}

// ParseCommand parses a shell command string into a Command struct using shlex.
// It handles quoted arguments correctly.
func ParseCommand(cmdStr string) (*Command, error) {
	parts, err := shlex.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}

	return &Command{
		Cmd:  parts[0],
		Args: parts[1:],
	}, nil
}

// String renders the command as a POSIX shell command line.
// Format: [export K='V'; ...] [cd 'dir' &&] cmd args...
func (c *Command) String() string {
	var b strings.Builder

	b.WriteString(envPrefix(c.Env))
	b.WriteString(dirPrefix(c.Dir))
	b.WriteString(ShellQuote(c.Cmd))

	for _, arg := range c.Args {
		b.WriteString(" ")
		b.WriteString(ShellQuote(arg))
	}

	return b.String()
}

// envPrefix prepends "export VAR='val';" for each variable.
// OpenSSH defaults PermitUserEnvironment=no, so channel-level Setenv is not relied upon.
func envPrefix(envVars []string) string {
	var prefix strings.Builder

	for _, env := range envVars {
		k, v, found := strings.Cut(env, "=")
		if !found {
			continue
		}

		fmt.Fprintf(&prefix, "export %s=%s; ", k, singleQuote(v))
	}

	return prefix.String()
}

func dirPrefix(dir string) string {
	if dir == "" {
		return ""
	}

	return fmt.Sprintf("cd %s && ", singleQuote(dir))
}

// ShellQuote quotes s for a POSIX shell. Words made only of safe characters are left bare.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	if strings.IndexFunc(s, isUnsafeShellRune) < 0 {
		return s
	}

	return singleQuote(s)
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isUnsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("@%+=:,./_-", r):
		return false
	default:
		return true
	}
}
