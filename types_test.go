package sshrs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandResult_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result CommandResult
		want   bool
	}{
		{
			name:   "success",
			result: CommandResult{ExitStatus: 0},
			want:   true,
		},
		{
			name:   "non-zero exit",
			result: CommandResult{ExitStatus: 1},
			want:   false,
		},
		{
			name:   "killed by signal",
			result: CommandResult{ExitStatus: -1, ExitSignal: "KILL"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.result.Success())
			assert.Equal(t, !tt.want, tt.result.Failed())
		})
	}
}

func TestCommandResult_Err(t *testing.T) {
	t.Parallel()

	ok := &CommandResult{Command: "true"}
	require.NoError(t, ok.Err())

	failed := &CommandResult{Command: "false", ExitStatus: 1, Stderr: []byte("boom")}
	err := failed.Err()
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitStatus)
	assert.Equal(t, []byte("boom"), exitErr.Stderr)
	assert.Equal(t, `command "false" exited with code 1`, err.Error())

	killed := &CommandResult{Command: "sleep 10", ExitStatus: -1, ExitSignal: "KILL"}
	assert.Equal(t, `command "sleep 10" killed by signal KILL`, killed.Err().Error())
}

func TestCommand_Validate(t *testing.T) {
	t.Parallel()

	var nilCmd *Command
	require.Error(t, nilCmd.Validate())
	require.Error(t, NewCommand("  ").Validate())
	require.NoError(t, NewCommand("ls").Validate())
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCmd  string
		wantArgs []string
		wantErr  bool
	}{
		{
			name:     "simple",
			input:    "uname -a",
			wantCmd:  "uname",
			wantArgs: []string{"-a"},
		},
		{
			name:     "quoted argument",
			input:    `echo "hello world"`,
			wantCmd:  "echo",
			wantArgs: []string{"hello world"},
		},
		{
			name:    "empty",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd, err := ParseCommand(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd.Cmd)
			assert.Equal(t, tt.wantArgs, cmd.Args)
		})
	}
}

func TestCommand_String_Injection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name:     "semicolon with space",
			args:     []string{"hello; whoami"},
			expected: "echo 'hello; whoami'",
		},
		{
			name:     "semicolon no space",
			args:     []string{"hello;whoami"},
			expected: "echo 'hello;whoami'",
		},
		{
			name:     "embedded single quote",
			args:     []string{"it's"},
			expected: "echo 'it'\\''s'",
		},
		{
			name:     "pipe",
			args:     []string{"foo|bar"},
			expected: "echo 'foo|bar'",
		},
		{
			name:     "backticks",
			args:     []string{"`whoami`"},
			expected: "echo '`whoami`'",
		},
		{
			name:     "empty argument",
			args:     []string{""},
			expected: "echo ''",
		},
		{
			name:     "safe path",
			args:     []string{"/tmp/a-b_c.txt"},
			expected: "echo /tmp/a-b_c.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCommand("echo", tt.args...)
			assert.Equal(t, tt.expected, cmd.String())
		})
	}
}

func TestCommand_String_Prefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  *Command
		want string
	}{
		{
			name: "env and dir",
			cmd:  &Command{Cmd: "echo", Args: []string{"hello"}, Dir: "/tmp", Env: []string{"A=B"}},
			want: "export A='B'; cd '/tmp' && echo hello",
		},
		{
			name: "env escaping",
			cmd:  &Command{Cmd: "env", Env: []string{"MSG=don't stop"}},
			want: "export MSG='don'\\''t stop'; env",
		},
		{
			name: "malformed env skipped",
			cmd:  &Command{Cmd: "env", Env: []string{"INVALID"}},
			want: "env",
		},
		{
			name: "dir escaping",
			cmd:  &Command{Cmd: "pwd", Dir: "/tmp/O'Neil"},
			want: "cd '/tmp/O'\\''Neil' && pwd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestErrorsClassification(t *testing.T) {
	t.Parallel()

	notFound := &TransferError{Op: OpDownload, Path: "/tmp/x", Reason: ReasonNotFound}
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsPermissionDenied(notFound))
	assert.True(t, isTyped(notFound))

	wrapped := errors.Join(errors.New("context"), &TransferError{Reason: ReasonPermissionDenied})
	assert.True(t, IsPermissionDenied(wrapped))

	assert.False(t, isTyped(errors.New("plain")))
	assert.Equal(t, "file-write", ChannelFileWrite.String())
	assert.Equal(t, "not found", ReasonNotFound.String())
}
