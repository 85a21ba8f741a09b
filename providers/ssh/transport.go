package ssh

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/xentrick/sshrs"
	"golang.org/x/crypto/ssh"
)

var _ sshrs.Transport = (*Transport)(nil)

// Transport implements sshrs.Transport over golang.org/x/crypto/ssh.
type Transport struct {
	config  Config
	hostKey ssh.HostKeyCallback
	dialer  *net.Dialer
}

// New creates a Transport. Options are applied on top of NewConfig.
func New(opts ...Option) (*Transport, error) {
	c := NewConfig()
	for _, o := range opts {
		o(&c)
	}

	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	hostKey, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &Transport{
		config:  c,
		hostKey: hostKey,
		dialer:  &net.Dialer{Timeout: c.Timeout},
	}, nil
}

// NewSession creates an sshrs.Session for host:port driven by a new Transport.
func NewSession(host string, port int, opts ...Option) (*sshrs.Session, error) {
	t, err := New(opts...)
	if err != nil {
		return nil, err
	}

	return sshrs.New(host, port, sshrs.WithTransport(t), sshrs.WithLogger(t.config.Logger))
}

// Open dials host:port. The SSH handshake happens during authentication.
func (t *Transport) Open(ctx context.Context, host string, port int) (sshrs.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	log := t.config.Logger.With(slog.String("addr", addr))

	nc, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Debug("dial failed", slog.Any("error", err))

		return nil, &sshrs.ConnectionError{Addr: addr, Err: err}
	}

	log.Debug("dialed")

	return &conn{
		addr:    addr,
		netConn: nc,
		config:  t.config,
		hostKey: t.hostKey,
		logger:  log,
		done:    make(chan struct{}),
	}, nil
}
