package mock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

func TestMockSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ch := &ExecChannel{}
	ch.On("Stdout").Return(Output("hello\n"))
	ch.On("Wait").Return(sshrs.ExitStatus{}, nil)
	ch.On("Stderr").Return([]byte(nil))
	ch.On("Close").Return(nil)

	conn := &Conn{}
	conn.On("AuthenticatePassword", mock.Anything, "alice", "secret").Return(nil)
	conn.On("Err").Return(nil)
	conn.On("OpenExec", mock.Anything, "echo hello").Return(ch, nil)
	conn.On("Close").Return(nil)

	s, err := sshrs.New("example.com", 22, sshrs.WithTransport(NewTransport(conn)))
	require.NoError(t, err)

	require.NoError(t, s.Connect(ctx, "alice", "secret"))

	out, err := s.RunCommand(ctx, "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	require.NoError(t, s.Close())

	conn.AssertExpectations(t)
	ch.AssertExpectations(t)
}

func TestWriteChannel_Limit(t *testing.T) {
	t.Parallel()

	w := &WriteChannel{}
	w.On("Write", mock.Anything).Return(2, errors.New("disk full")).Once()
	w.On("Write", mock.Anything).Return(WriteAll, nil)

	n, err := w.Write([]byte("abcd"))
	require.Error(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Write([]byte("ef"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abef", w.Data.String())
}

func TestFailingReader(t *testing.T) {
	t.Parallel()

	boom := errors.New("reset by peer")
	r := NewReadChannel(FailingReader("partial", boom))

	data, err := io.ReadAll(r)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", string(data))
}
