package ssh

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xentrick/sshrs"
	"golang.org/x/crypto/ssh"
)

func TestBoundedBuffer(t *testing.T) {
	t.Parallel()

	b := &boundedBuffer{limit: 8}
	assert.Nil(t, b.Bytes())

	n, err := b.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, b.Truncated())

	n, err = b.Write([]byte(" world"))
	assert.NoError(t, err)
	assert.Equal(t, 6, n, "never reports a short write")
	assert.True(t, b.Truncated())
	assert.Equal(t, "hello wo", string(b.Bytes()))

	n, err = b.Write(bytes.Repeat([]byte("x"), 100))
	assert.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, "hello wo", string(b.Bytes()))

	out := b.Bytes()
	out[0] = 'J'
	assert.Equal(t, "hello wo", string(b.Bytes()), "Bytes returns a copy")
}

func TestWaitResult(t *testing.T) {
	t.Parallel()

	missing := &ssh.ExitMissingError{}

	tests := []struct {
		name    string
		err     error
		ctxErr  error
		want    sshrs.ExitStatus
		wantErr error
	}{
		{name: "clean exit", want: sshrs.ExitStatus{}},
		{name: "clean exit before deadline", ctxErr: context.DeadlineExceeded, want: sshrs.ExitStatus{}},
		{name: "killed by cancellation", err: missing, ctxErr: context.Canceled, want: sshrs.ExitStatus{Code: -1}, wantErr: context.Canceled},
		{name: "no exit status", err: missing, want: sshrs.ExitStatus{Code: -1}, wantErr: missing},
		{name: "transport failure", err: io.EOF, want: sshrs.ExitStatus{Code: -1}, wantErr: io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := waitResult(tt.err, tt.ctxErr)
			assert.Equal(t, tt.want, got)

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
