package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/xentrick/sshrs"
	"golang.org/x/crypto/ssh"
)

var _ sshrs.Conn = (*conn)(nil)

var errNotAuthenticated = errors.New("ssh connection not authenticated")

const keepaliveRequest = "keepalive@openssh.com"

// lostWait bounds how long a failed open waits for watch to record why the connection ended.
const lostWait = time.Second

// conn is one TCP connection. It becomes an *ssh.Client once authentication succeeds.
type conn struct {
	addr    string
	netConn net.Conn
	config  Config
	hostKey ssh.HostKeyCallback
	logger  *slog.Logger

	client *ssh.Client
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// AuthenticatePassword performs the SSH handshake with password authentication.
// A configured private key is offered first.
func (c *conn) AuthenticatePassword(ctx context.Context, user, password string) error {
	var attempt authAttempt

	methods := make([]ssh.AuthMethod, 0, 2)

	if c.config.PrivateKeyPath != "" {
		signer, err := loadSigner(c.config.PrivateKeyPath)

		switch {
		case errors.Is(err, errNoKey):
			c.logger.Debug("skipping private key", slog.String("path", c.config.PrivateKeyPath), slog.Any("error", err))
		case err != nil:
			return &sshrs.LocalIOError{Op: "read key", Path: c.config.PrivateKeyPath, Err: err}
		default:
			methods = append(methods, attempt.publicKeys(signer))
		}
	}

	methods = append(methods, attempt.password(password))

	return c.handshake(ctx, user, sshrs.AuthPassword, &attempt, methods)
}

// AuthenticateAgent performs the SSH handshake offering every identity held by the agent.
func (c *conn) AuthenticateAgent(ctx context.Context, user string) error {
	ag, agentConn, err := dialAgent(ctx, c.config.AgentSocket)
	if err != nil {
		return &sshrs.AuthenticationError{User: user, Method: sshrs.AuthAgent, Err: err}
	}

	defer func() { _ = agentConn.Close() }()

	signers, err := ag.Signers()
	if err != nil {
		return &sshrs.AuthenticationError{
			User:   user,
			Method: sshrs.AuthAgent,
			Err:    fmt.Errorf("%w: %w", sshrs.ErrAgentUnavailable, err),
		}
	}

	if len(signers) == 0 {
		return &sshrs.AuthenticationError{User: user, Method: sshrs.AuthAgent, Err: sshrs.ErrNoIdentities}
	}

	c.logger.Debug("offering agent identities", slog.Int("count", len(signers)))

	var attempt authAttempt

	return c.handshake(ctx, user, sshrs.AuthAgent, &attempt, []ssh.AuthMethod{attempt.publicKeys(signers...)})
}

func (c *conn) handshake(ctx context.Context, user string, method sshrs.AuthMethod, attempt *authAttempt, methods []ssh.AuthMethod) error {
	if c.client != nil {
		return errors.New("ssh connection already authenticated")
	}

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = c.netConn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.netConn.SetDeadline(time.Now())
	})

	sc, chans, reqs, err := ssh.NewClientConn(c.netConn, c.addr, &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: c.hostKey,
		BannerCallback: func(msg string) error {
			c.logger.Debug("server banner", slog.String("banner", strings.TrimSpace(msg)))

			return nil
		},
	})

	stop()

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}

		c.logger.Debug("handshake failed", slog.Bool("auth_attempted", attempt.ran.Load()), slog.Any("error", err))

		if attempt.ran.Load() || strings.Contains(err.Error(), "unable to authenticate") {
			return &sshrs.AuthenticationError{User: user, Method: method, Err: err}
		}

		return &sshrs.ConnectionError{Addr: c.addr, Err: err}
	}

	_ = c.netConn.SetDeadline(time.Time{})

	c.client = ssh.NewClient(sc, chans, reqs)
	go c.watch()

	c.logger.Debug("authenticated", slog.String("user", user), slog.String("server_version", string(sc.ServerVersion())))

	return nil
}

// watch records why the connection ended, unless it was closed deliberately.
func (c *conn) watch() {
	err := c.client.Wait()

	c.mu.Lock()
	if !c.closed {
		if err == nil {
			err = io.EOF
		}

		c.err = err
		c.logger.Debug("connection lost", slog.Any("error", err))
	}
	c.mu.Unlock()

	close(c.done)
}

// Err returns the error that ended the connection, if it ended on its own.
func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// openError classifies a failed channel open. Opening a channel on a connection whose peer just
// dropped fails before watch has recorded the loss, so a failed open is followed by one request
// round trip; if that also fails the connection is gone.
func (c *conn) openError(client *ssh.Client, err error) error {
	if c.Err() == nil {
		if _, _, rerr := client.SendRequest(keepaliveRequest, true, nil); rerr == nil {
			return err
		}

		select {
		case <-c.done:
		case <-time.After(lostWait):
		}
	}

	cause := c.Err()
	if cause == nil {
		cause = err
	}

	c.logger.Debug("channel open failed on a lost connection", slog.Any("error", err))

	return &sshrs.ConnectionError{Addr: c.addr, Err: fmt.Errorf("%w: %w", sshrs.ErrConnectionLost, cause)}
}

// Keepalive sends keepalive@openssh.com and waits for the reply. Servers answer unknown global
// requests with a failure reply, which still proves the connection is alive.
func (c *conn) Keepalive(ctx context.Context) error {
	client, err := c.authed()
	if err != nil {
		return err
	}

	errc := make(chan error, 1)

	go func() {
		_, _, err := client.SendRequest(keepaliveRequest, true, nil)
		errc <- err
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection. It is idempotent.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	var err error
	if c.client != nil {
		err = c.client.Close()
		<-c.done
	} else {
		err = c.netConn.Close()
	}

	// A connection that already died has nothing left to release.
	if errors.Is(err, net.ErrClosed) || c.Err() != nil {
		return nil
	}

	return err
}

func (c *conn) authed() (*ssh.Client, error) {
	if c.client == nil {
		return nil, errNotAuthenticated
	}

	return c.client, nil
}
