// Package testserver provides an in-process SSH server and SSH agent for tests.
//
// The server speaks real SSH (golang.org/x/crypto/ssh) on 127.0.0.1, authenticates with
// passwords and public keys, serves exec requests through a pluggable handler and serves the
// sftp subsystem from memory.
package testserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// ExecHandler runs command and reports how it ended. A non-empty signal means the command was
// killed by that signal (name without the SIG prefix); exitStatus is ignored in that case.
type ExecHandler func(ctx context.Context, command string, stdout, stderr io.Writer) (exitStatus int, signal string)

// Server is an in-process SSH server for testing.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.Signer
	addr     string

	mu         sync.RWMutex
	passwords  map[string]string
	authorized map[string][]ssh.PublicKey

	exec     ExecHandler
	sftp     bool
	files    *fileSystem
	readOnly string
	banner   string

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures the test server.
type Option func(*Server)

// WithPassword adds a user/password pair for authentication.
func WithPassword(user, password string) Option {
	return func(s *Server) {
		s.passwords[user] = password
	}
}

// WithAuthorizedKey authorises key for user.
func WithAuthorizedKey(user string, key ssh.PublicKey) Option {
	return func(s *Server) {
		s.authorized[user] = append(s.authorized[user], key)
	}
}

// WithExecHandler replaces the default /bin/sh -c handler. A nil handler rejects every exec request.
func WithExecHandler(h ExecHandler) Option {
	return func(s *Server) {
		s.exec = h
	}
}

// WithoutSFTP rejects sftp subsystem requests.
func WithoutSFTP() Option {
	return func(s *Server) {
		s.sftp = false
	}
}

// WithReadOnlyDir makes dir, and everything under it, refuse writes.
func WithReadOnlyDir(dir string) Option {
	return func(s *Server) {
		s.readOnly = dir
	}
}

// WithBanner sends msg as the authentication banner.
func WithBanner(msg string) Option {
	return func(s *Server) {
		s.banner = msg
	}
}

// New starts a server on 127.0.0.1 and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s, err := Start(opts...)
	if err != nil {
		t.Fatalf("start test ssh server: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

// Start starts a server on 127.0.0.1. Callers must Close it.
func Start(opts ...Option) (*Server, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	s := &Server{
		hostKey:    signer,
		passwords:  map[string]string{},
		authorized: map[string][]ssh.PublicKey{},
		exec:       ShellHandler,
		sftp:       true,
		files:      newFileSystem(),
		conns:      map[net.Conn]struct{}{},
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.config = &ssh.ServerConfig{
		PasswordCallback:  s.checkPassword,
		PublicKeyCallback: s.checkPublicKey,
	}

	if s.banner != "" {
		s.config.BannerCallback = func(ssh.ConnMetadata) string { return s.banner }
	}

	s.config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	s.addr = listener.Addr().String()

	s.wg.Add(1)

	go s.acceptLoop()

	slog.Debug("test SSH server started", slog.String("addr", s.addr))

	return s, nil
}

func (s *Server) checkPassword(c ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	s.mu.RLock()
	expected, ok := s.passwords[c.User()]
	s.mu.RUnlock()

	if ok && string(password) == expected {
		return nil, nil
	}

	return nil, fmt.Errorf("password rejected for %q", c.User())
}

func (s *Server) checkPublicKey(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.authorized[c.User()] {
		if string(k.Marshal()) == string(key.Marshal()) {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("public key rejected for %q", c.User())
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.addr
}

// Host returns the host part of the address.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.addr)

	return host
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.addr)
	n, _ := strconv.Atoi(port)

	return n
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

// Kill drops every live connection without a protocol-level goodbye.
// The server keeps accepting new connections.
func (s *Server) Kill() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	for c := range s.conns {
		_ = c.Close()
	}
}

// Close shuts down the server.
func (s *Server) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	close(s.done)
	err := s.listener.Close()

	s.Kill()
	s.wg.Wait()

	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}

				continue
			}
		}

		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(netConn net.Conn) {
	defer s.wg.Done()

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, netConn)
		s.connsMu.Unlock()

		_ = netConn.Close()
	}()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		slog.Debug("SSH handshake failed", slog.String("error", err.Error()))

		return
	}

	defer func() { _ = sshConn.Close() }()

	// Unknown global requests, keepalives included, get a failure reply.
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")

			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		s.wg.Add(1)

		go s.handleChannel(channel, requests)
	}
}

func (s *Server) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer func() { _ = channel.Close() }()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if s.exec == nil || ssh.Unmarshal(req.Payload, &payload) != nil {
				_ = req.Reply(false, nil)

				continue
			}

			_ = req.Reply(true, nil)
			s.runExec(channel, requests, payload.Command)

			return

		case "subsystem":
			var payload struct{ Name string }
			if !s.sftp || ssh.Unmarshal(req.Payload, &payload) != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)

				continue
			}

			_ = req.Reply(true, nil)

			go ssh.DiscardRequests(requests)

			s.serveSFTP(channel)

			return

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

// runExec runs the handler while watching the channel for a signal or an early close.
func (s *Server) runExec(channel ssh.Channel, requests <-chan *ssh.Request, command string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})

	go func() {
		defer close(finished)

		status, signal := s.exec(ctx, command, channel, channel.Stderr())
		sendExit(channel, status, signal)
	}()

	for req := range requests {
		if req.Type == "signal" {
			cancel()
		}

		if req.WantReply {
			_ = req.Reply(false, nil)
		}
	}

	cancel()
	<-finished
}

// sendExit reports the exit status (RFC 4254 §6.10) then closes the channel.
func sendExit(channel ssh.Channel, status int, signal string) {
	_ = channel.CloseWrite()

	if signal != "" {
		_, _ = channel.SendRequest("exit-signal", false, ssh.Marshal(struct {
			Signal     string
			CoreDumped bool
			Message    string
			Lang       string
		}{Signal: signal}))
	} else {
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)})) //nolint:gosec // exit codes are 0..255
	}

	_ = channel.Close()
}

// ShellHandler runs command with /bin/sh -c. It is the default ExecHandler.
func ShellHandler(ctx context.Context, command string, stdout, stderr io.Writer) (int, string) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, "KILL"
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), ""
	}

	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)

		return 127, ""
	}

	return 0, ""
}
