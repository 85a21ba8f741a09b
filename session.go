package sshrs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// state is the Session's connection state. Exactly one of disconnected, authenticated or closed.
type state interface {
	isState()
}

type disconnected struct{}

type authenticated struct {
	conn Conn
	user string
}

type closed struct{}

func (disconnected) isState()  {}
func (authenticated) isState() {}
func (closed) isState()        {}

// Session is the caller-facing handle for one remote host and its authentication state.
//
// A Session starts disconnected, becomes authenticated through exactly one successful Connect or
// ConnectAgent, and releases its connection on Close. It is not safe for concurrent use.
type Session struct {
	host    string
	port    int
	cfg     sessionConfig
	decoder encoding.Encoding
	state   state
	logger  *slog.Logger
}

// New creates a Session for host:port. No connection is made.
func New(host string, port int, opts ...Option) (*Session, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("%w: host cannot be empty", ErrInvalidTarget)
	}

	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrInvalidTarget, port)
	}

	cfg := sessionConfig{
		logger: slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(&cfg)
	}

	enc, err := lookupCharset(cfg.charset)
	if err != nil {
		return nil, err
	}

	return &Session{
		host:    host,
		port:    port,
		cfg:     cfg,
		decoder: enc,
		state:   disconnected{},
		logger:  cfg.logger.With(slog.String("addr", net.JoinHostPort(host, strconv.Itoa(port)))),
	}, nil
}

// Host returns the target host.
func (s *Session) Host() string {
	return s.host
}

// Port returns the target port.
func (s *Session) Port() int {
	return s.port
}

// Addr returns host:port.
func (s *Session) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Authed reports whether the Session holds an authenticated connection.
func (s *Session) Authed() bool {
	_, ok := s.state.(authenticated)

	return ok
}

// User returns the authenticated user name, or "" if the Session is not authenticated.
func (s *Session) User() string {
	if st, ok := s.state.(authenticated); ok {
		return st.user
	}

	return ""
}

// Connect establishes the transport and authenticates with a password.
// On failure the Session stays disconnected and the call may be retried.
func (s *Session) Connect(ctx context.Context, username, password string) error {
	return s.connect(ctx, username, AuthPassword, func(conn Conn) error {
		return conn.AuthenticatePassword(ctx, username, password)
	})
}

// ConnectAgent establishes the transport and authenticates with the identities held by the
// local SSH agent, succeeding on the first identity the remote host accepts.
func (s *Session) ConnectAgent(ctx context.Context, username string) error {
	return s.connect(ctx, username, AuthAgent, func(conn Conn) error {
		return conn.AuthenticateAgent(ctx, username)
	})
}

func (s *Session) connect(ctx context.Context, username string, method AuthMethod, auth func(Conn) error) error {
	switch s.state.(type) {
	case authenticated:
		return ErrAlreadyConnected
	case closed:
		return ErrSessionClosed
	}

	if s.cfg.transport == nil {
		return &ConnectionError{Addr: s.Addr(), Err: errors.New("no transport configured")}
	}

	log := s.logger.With(slog.String("user", username), slog.String("method", string(method)))
	log.Debug("connecting")

	conn, err := s.cfg.transport.Open(ctx, s.host, s.port)
	if err != nil {
		log.Debug("transport open failed", slog.Any("error", err))

		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return err
		}

		return &ConnectionError{Addr: s.Addr(), Err: err}
	}

	if err := auth(conn); err != nil {
		_ = conn.Close()

		log.Debug("authentication failed", slog.Any("error", err))

		if isTyped(err) {
			return err
		}

		return &AuthenticationError{User: username, Method: method, Err: err}
	}

	s.state = authenticated{conn: conn, user: username}

	log.Debug("authenticated")

	return nil
}

// Keepalive sends one keepalive request over the authenticated connection.
func (s *Session) Keepalive(ctx context.Context) error {
	conn, err := s.live("keepalive")
	if err != nil {
		return err
	}

	if err := conn.Keepalive(ctx); err != nil {
		if isTyped(err) {
			return err
		}

		return &ConnectionError{Addr: s.Addr(), Err: err}
	}

	return nil
}

// Close releases the connection. It is idempotent; a closed Session cannot reconnect.
func (s *Session) Close() error {
	st := s.state
	s.state = closed{}

	if a, ok := st.(authenticated); ok {
		s.logger.Debug("closing connection")

		return a.conn.Close()
	}

	return nil
}

// live returns the authenticated connection, or the error an operation must fail with.
// A connection the transport reported dead fails fast with *ConnectionError.
func (s *Session) live(op string) (Conn, error) {
	switch st := s.state.(type) {
	case authenticated:
		if err := s.lost(st.conn); err != nil {
			return nil, err
		}

		return st.conn, nil
	case closed:
		return nil, &NotAuthenticatedError{Op: op, Err: ErrSessionClosed}
	default:
		return nil, &NotAuthenticatedError{Op: op}
	}
}

// lost returns a *ConnectionError if the transport has reported conn dead.
func (s *Session) lost(conn Conn) error {
	if err := conn.Err(); err != nil {
		return &ConnectionError{Addr: s.Addr(), Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}
	}

	return nil
}
