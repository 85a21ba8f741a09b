package sshrs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// RunCommand executes command on the remote host and returns its standard output as text.
//
// The output is read to end-of-stream before the channel is closed. A non-zero exit status does
// not fail the call; use Exec to inspect it.
func (s *Session) RunCommand(ctx context.Context, command string) (string, error) {
	res, err := s.exec(ctx, "run", command)
	if err != nil {
		return "", err
	}

	return res.Stdout, nil
}

// Exec executes command on the remote host and returns its output together with the exit status.
// Like RunCommand, a non-zero exit status is reported in the result, not as an error.
func (s *Session) Exec(ctx context.Context, command string) (*CommandResult, error) {
	return s.exec(ctx, "exec", command)
}

// Run renders cmd to a shell command line and executes it like Exec.
func (s *Session) Run(ctx context.Context, cmd *Command) (*CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	return s.exec(ctx, "exec", cmd.String())
}

func (s *Session) exec(ctx context.Context, op, command string) (*CommandResult, error) {
	conn, err := s.live(op)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(slog.String("op", op))
	start := time.Now()

	ch, err := conn.OpenExec(ctx, command)
	if err != nil {
		log.Debug("exec channel open failed", slog.Any("error", err))

		if isTyped(err) {
			return nil, err
		}

		// The open may have been what revealed a dropped connection.
		if lost := s.lost(conn); lost != nil {
			return nil, lost
		}

		return nil, &ChannelError{Kind: ChannelExec, Target: command, Err: err}
	}

	defer func() { _ = ch.Close() }()

	out, err := io.ReadAll(ch.Stdout())
	if err != nil {
		if isTyped(err) {
			return nil, err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}

		return nil, &TransferError{Op: OpExec, Path: command, Reason: ReasonIO, Err: err}
	}

	status, err := ch.Wait()
	if err != nil {
		if isTyped(err) {
			return nil, err
		}

		return nil, &TransferError{Op: OpExec, Path: command, Reason: ReasonIO, Err: err}
	}

	stdout, err := decodeOutput(out, s.decoder)
	if err != nil {
		return nil, err
	}

	res := &CommandResult{
		Command:    command,
		Stdout:     stdout,
		Stderr:     ch.Stderr(),
		ExitStatus: status.Code,
		ExitSignal: status.Signal,
		Duration:   time.Since(start),
	}

	log.Debug("command finished",
		slog.Int("exit_status", res.ExitStatus),
		slog.Int("stdout_bytes", len(out)),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}
