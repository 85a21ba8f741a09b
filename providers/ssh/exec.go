package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/xentrick/sshrs"
	"golang.org/x/crypto/ssh"
)

// stderrLimit bounds how much standard error an exec channel keeps.
const stderrLimit = 64 << 10

var _ sshrs.ExecChannel = (*execChannel)(nil)

// execChannel runs one command on its own *ssh.Session.
type execChannel struct {
	session *ssh.Session
	stdout  io.Reader
	stderr  *boundedBuffer
	ctx     context.Context //nolint:containedctx
	stop    func() bool
	logger  *slog.Logger

	closeOnce sync.Once
}

// OpenExec opens a new session and starts command on it.
func (c *conn) OpenExec(ctx context.Context, command string) (sshrs.ExecChannel, error) {
	client, err := c.authed()
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, c.openError(client, fmt.Errorf("failed to create ssh session: %w", err))
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()

		return nil, fmt.Errorf("failed to attach stdout: %w", err)
	}

	stderr := &boundedBuffer{limit: stderrLimit}
	session.Stderr = stderr

	if err := session.Start(command); err != nil {
		_ = session.Close()

		return nil, c.openError(client, err)
	}

	ch := &execChannel{
		session: session,
		stdout:  stdout,
		stderr:  stderr,
		ctx:     ctx,
		logger:  c.logger,
	}

	// Context cancellation kills the remote command and unblocks any pending read.
	ch.stop = context.AfterFunc(ctx, func() {
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
	})

	c.logger.Debug("exec channel opened")

	return ch, nil
}

func (ch *execChannel) Stdout() io.Reader {
	return ch.stdout
}

// Wait blocks until the remote command exits and maps its status.
func (ch *execChannel) Wait() (sshrs.ExitStatus, error) {
	err := ch.session.Wait()

	if ch.stderr.Truncated() {
		ch.logger.Debug("stderr truncated", slog.Int("limit", stderrLimit))
	}

	return waitResult(err, ch.ctx.Err())
}

// waitResult maps the outcome of ssh.Session.Wait. A context error only counts when the wait
// itself failed; a command that exited cleanly before the deadline keeps its result.
func waitResult(err, ctxErr error) (sshrs.ExitStatus, error) {
	if err == nil {
		return sshrs.ExitStatus{}, nil
	}

	if ctxErr != nil {
		return sshrs.ExitStatus{Code: -1}, ctxErr
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Signal() != "" {
			return sshrs.ExitStatus{Code: -1, Signal: exitErr.Signal()}, nil
		}

		return sshrs.ExitStatus{Code: exitErr.ExitStatus()}, nil
	}

	// *ssh.ExitMissingError lands here: the channel closed without reporting a status.
	return sshrs.ExitStatus{Code: -1}, err
}

func (ch *execChannel) Stderr() []byte {
	return ch.stderr.Bytes()
}

// Close closes the session. It is idempotent.
func (ch *execChannel) Close() error {
	var err error

	ch.closeOnce.Do(func() {
		ch.stop()

		err = ch.session.Close()
		if errors.Is(err, io.EOF) {
			err = nil
		}

		ch.logger.Debug("exec channel closed")
	})

	return err
}

// boundedBuffer keeps the first limit bytes written to it and discards the rest.
// It never reports a short write, so a chatty command cannot stall on stderr.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
			b.truncated = true
		} else {
			b.buf = append(b.buf, p...)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}

	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf == nil {
		return nil
	}

	out := make([]byte, len(b.buf))
	copy(out, b.buf)

	return out
}

func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.truncated
}
