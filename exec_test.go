package sshrs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
	"github.com/xentrick/sshrs/providers/mock"
)

func execChannel(stdout string, status sshrs.ExitStatus, stderr []byte) *mock.ExecChannel {
	ch := &mock.ExecChannel{}
	ch.On("Stdout").Return(mock.Output(stdout))
	ch.On("Wait").Return(status, nil)
	ch.On("Stderr").Return(stderr)
	ch.On("Close").Return(nil)

	return ch
}

func TestSession_RunCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		stdout  string
		status  sshrs.ExitStatus
	}{
		{name: "simple", command: "echo hello", stdout: "hello\n"},
		{name: "no output", command: "true", stdout: ""},
		{name: "multibyte", command: "cat greeting", stdout: "héllo wörld ✓\n"},
		{name: "non-zero exit is not an error", command: "false", stdout: "", status: sshrs.ExitStatus{Code: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, conn := connected(t)
			ch := execChannel(tt.stdout, tt.status, nil)
			conn.On("OpenExec", testifymock.Anything, tt.command).Return(ch, nil)

			out, err := s.RunCommand(context.Background(), tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.stdout, out)

			// Every channel is closed before the call returns.
			ch.AssertCalled(t, "Close")
		})
	}
}

func TestSession_Exec_Result(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)
	ch := execChannel("", sshrs.ExitStatus{Code: 2}, []byte("ls: cannot access '/nope'\n"))
	conn.On("OpenExec", testifymock.Anything, "ls /nope").Return(ch, nil)

	res, err := s.Exec(context.Background(), "ls /nope")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, 2, res.ExitStatus)
	assert.Equal(t, "ls /nope", res.Command)
	assert.Contains(t, string(res.Stderr), "cannot access")

	var exitErr *sshrs.ExitError
	require.ErrorAs(t, res.Err(), &exitErr)
	assert.Equal(t, 2, exitErr.ExitStatus)
}

func TestSession_Run_Command(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)
	ch := execChannel("/tmp\n", sshrs.ExitStatus{}, nil)
	conn.On("OpenExec", testifymock.Anything, "cd '/tmp' && pwd").Return(ch, nil)

	res, err := s.Run(context.Background(), sshrs.Cmd("pwd").Dir("/tmp").Build())
	require.NoError(t, err)
	assert.Equal(t, "/tmp\n", res.Stdout)
	assert.True(t, res.Success())

	_, err = s.Run(context.Background(), sshrs.NewCommand(""))
	require.Error(t, err)
}

func TestSession_RunCommand_ChannelRefused(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)
	conn.On("OpenExec", testifymock.Anything, "ls").Return(nil, errors.New("administratively prohibited"))

	_, err := s.RunCommand(context.Background(), "ls")

	var chanErr *sshrs.ChannelError
	require.ErrorAs(t, err, &chanErr)
	assert.Equal(t, sshrs.ChannelExec, chanErr.Kind)
	assert.Equal(t, "ls", chanErr.Target)
}

func TestSession_RunCommand_ReadFailure(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)

	ch := &mock.ExecChannel{}
	ch.On("Stdout").Return(mock.FailingReader("partial output", errors.New("connection reset")))
	ch.On("Close").Return(nil)
	conn.On("OpenExec", testifymock.Anything, "cat big").Return(ch, nil)

	out, err := s.RunCommand(context.Background(), "cat big")
	assert.Empty(t, out)

	var xferErr *sshrs.TransferError
	require.ErrorAs(t, err, &xferErr)
	assert.Equal(t, sshrs.OpExec, xferErr.Op)
	assert.Equal(t, sshrs.ReasonIO, xferErr.Reason)

	ch.AssertNotCalled(t, "Wait")
	ch.AssertCalled(t, "Close")
}

func TestSession_RunCommand_WaitFailure(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)

	ch := &mock.ExecChannel{}
	ch.On("Stdout").Return(mock.Output("out"))
	ch.On("Wait").Return(sshrs.ExitStatus{Code: -1}, errors.New("channel closed without exit status"))
	ch.On("Close").Return(nil)
	conn.On("OpenExec", testifymock.Anything, "ls").Return(ch, nil)

	_, err := s.RunCommand(context.Background(), "ls")

	var xferErr *sshrs.TransferError
	require.ErrorAs(t, err, &xferErr)
}

func TestSession_RunCommand_InvalidUTF8(t *testing.T) {
	t.Parallel()

	s, conn := connected(t)
	ch := execChannel("ok\xff\xfe", sshrs.ExitStatus{}, nil)
	conn.On("OpenExec", testifymock.Anything, "cat bin").Return(ch, nil)

	out, err := s.RunCommand(context.Background(), "cat bin")
	assert.Empty(t, out)

	var decErr *sshrs.DecodingError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 2, decErr.Offset)
	assert.Equal(t, "utf-8", decErr.Charset)
}

func TestSession_RunCommand_Charset(t *testing.T) {
	t.Parallel()

	s, conn := connected(t, sshrs.WithOutputCharset("latin1"))
	ch := execChannel("caf\xe9\n", sshrs.ExitStatus{}, nil)
	conn.On("OpenExec", testifymock.Anything, "cat menu").Return(ch, nil)

	out, err := s.RunCommand(context.Background(), "cat menu")
	require.NoError(t, err)
	assert.Equal(t, "café\n", out)
}

func TestSession_RunCommand_UTF8Alias(t *testing.T) {
	t.Parallel()

	s, conn := connected(t, sshrs.WithOutputCharset("UTF8"))
	ch := execChannel("\xff", sshrs.ExitStatus{}, nil)
	conn.On("OpenExec", testifymock.Anything, "x").Return(ch, nil)

	_, err := s.RunCommand(context.Background(), "x")

	var decErr *sshrs.DecodingError
	require.ErrorAs(t, err, &decErr)
}
