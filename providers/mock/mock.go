package mock

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/stretchr/testify/mock"
	"github.com/xentrick/sshrs"
)

// WriteAll is returned from a Write expectation to accept every byte offered.
const WriteAll = -1

// Transport implements a mock sshrs.Transport using testify/mock.
type Transport struct {
	mock.Mock
}

var _ sshrs.Transport = (*Transport)(nil)

// NewTransport returns a Transport whose Open always yields conn.
func NewTransport(conn sshrs.Conn) *Transport {
	t := &Transport{}
	t.On("Open", mock.Anything, mock.Anything, mock.Anything).Return(conn, nil)

	return t
}

// Open mocks establishing the transport.
func (m *Transport) Open(ctx context.Context, host string, port int) (sshrs.Conn, error) {
	args := m.Called(ctx, host, port)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshrs.Conn), args.Error(1)
}

// Conn implements a mock sshrs.Conn using testify/mock.
type Conn struct {
	mock.Mock
}

var _ sshrs.Conn = (*Conn)(nil)

// AuthenticatePassword mocks password authentication.
func (m *Conn) AuthenticatePassword(ctx context.Context, user, password string) error {
	args := m.Called(ctx, user, password)

	return args.Error(0)
}

// AuthenticateAgent mocks agent authentication.
func (m *Conn) AuthenticateAgent(ctx context.Context, user string) error {
	args := m.Called(ctx, user)

	return args.Error(0)
}

// OpenExec mocks opening an exec channel.
func (m *Conn) OpenExec(ctx context.Context, command string) (sshrs.ExecChannel, error) {
	args := m.Called(ctx, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshrs.ExecChannel), args.Error(1)
}

// OpenFileWrite mocks opening a file write channel.
func (m *Conn) OpenFileWrite(ctx context.Context, remotePath string, size int64, mode os.FileMode) (sshrs.WriteChannel, error) {
	args := m.Called(ctx, remotePath, size, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(sshrs.WriteChannel), args.Error(1)
}

// OpenFileRead mocks opening a file read channel.
func (m *Conn) OpenFileRead(ctx context.Context, remotePath string) (sshrs.ReadChannel, *sshrs.FileStat, error) {
	args := m.Called(ctx, remotePath)

	var stat *sshrs.FileStat
	if s, ok := args.Get(1).(*sshrs.FileStat); ok {
		stat = s
	}

	if args.Get(0) == nil {
		return nil, stat, args.Error(2)
	}

	return args.Get(0).(sshrs.ReadChannel), stat, args.Error(2)
}

// Keepalive mocks a keepalive round-trip.
func (m *Conn) Keepalive(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// Err mocks the connection liveness check.
func (m *Conn) Err() error {
	args := m.Called()

	return args.Error(0)
}

// Close mocks closing the connection.
func (m *Conn) Close() error {
	args := m.Called()

	return args.Error(0)
}

// ExecChannel implements a mock sshrs.ExecChannel using testify/mock.
type ExecChannel struct {
	mock.Mock
}

var _ sshrs.ExecChannel = (*ExecChannel)(nil)

// Stdout mocks the standard output stream.
func (m *ExecChannel) Stdout() io.Reader {
	args := m.Called()
	if args.Get(0) == nil {
		return strings.NewReader("")
	}

	return args.Get(0).(io.Reader)
}

// Wait mocks waiting for the remote command to exit.
func (m *ExecChannel) Wait() (sshrs.ExitStatus, error) {
	args := m.Called()

	return args.Get(0).(sshrs.ExitStatus), args.Error(1)
}

// Stderr mocks the captured standard error.
func (m *ExecChannel) Stderr() []byte {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).([]byte)
}

// Close mocks closing the channel.
func (m *ExecChannel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// WriteChannel implements a mock sshrs.WriteChannel using testify/mock.
// Accepted bytes are recorded in Data.
type WriteChannel struct {
	mock.Mock

	Data bytes.Buffer
}

var _ sshrs.WriteChannel = (*WriteChannel)(nil)

// Write mocks writing to the remote file. The expectation's first return value caps how many
// bytes are accepted; WriteAll accepts everything.
func (m *WriteChannel) Write(p []byte) (int, error) {
	args := m.Called(p)

	n := len(p)
	if limit := args.Int(0); limit >= 0 && limit < n {
		n = limit
	}

	m.Data.Write(p[:n])

	return n, args.Error(1)
}

// Close mocks finalising the remote file.
func (m *WriteChannel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Abort mocks discarding the remote file.
func (m *WriteChannel) Abort() error {
	args := m.Called()

	return args.Error(0)
}

// ReadChannel implements a mock sshrs.ReadChannel. Reads are served from Reader; only Close
// goes through testify/mock.
type ReadChannel struct {
	mock.Mock

	Reader io.Reader
}

var _ sshrs.ReadChannel = (*ReadChannel)(nil)

// NewReadChannel returns a ReadChannel serving r.
func NewReadChannel(r io.Reader) *ReadChannel {
	return &ReadChannel{Reader: r}
}

func (m *ReadChannel) Read(p []byte) (int, error) {
	if m.Reader == nil {
		return 0, io.EOF
	}

	return m.Reader.Read(p)
}

// Close mocks closing the channel.
func (m *ReadChannel) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Output returns a reader over content, for scripting ExecChannel.Stdout.
// Usage: ch.On("Stdout").Return(mock.Output("hello\n")).
func Output(content string) io.Reader {
	return strings.NewReader(content)
}

// FailingReader returns a reader that yields content and then fails with err instead of EOF.
func FailingReader(content string, err error) io.Reader {
	return io.MultiReader(strings.NewReader(content), &errReader{err: err})
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}
