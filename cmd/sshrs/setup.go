package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"github.com/xentrick/sshrs"
	"github.com/xentrick/sshrs/internal/config"
	"github.com/xentrick/sshrs/internal/logging"
	sshtransport "github.com/xentrick/sshrs/providers/ssh"
)

// flags are the persistent command-line overrides shared by every subcommand.
type flags struct {
	configPath string

	host      string
	port      int
	user      string
	alias     string
	agent     bool
	keyPath   string
	known     string
	acceptNew bool
	insecure  bool
	timeout   time.Duration
	charset   string
	logLevel  string
	logFormat string
}

func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", config.DefaultPath(), "Config file")
	pf.StringVar(&f.host, "host", "", "Remote host")
	pf.IntVarP(&f.port, "port", "p", 22, "Remote port")
	pf.StringVarP(&f.user, "user", "u", "", "Remote user (default: current user)")
	pf.StringVar(&f.alias, "alias", "", "Resolve the target from this ~/.ssh/config Host entry")
	pf.BoolVar(&f.agent, "agent", false, "Authenticate with the SSH agent")
	pf.StringVarP(&f.keyPath, "key", "i", "", "Private key offered before the password")
	pf.StringVar(&f.known, "known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	pf.BoolVar(&f.acceptNew, "accept-new", false, "Trust and record unknown host keys")
	pf.BoolVar(&f.insecure, "insecure", false, "Skip host key verification (testing only)")
	pf.DurationVar(&f.timeout, "timeout", 10*time.Second, "Connect timeout")
	pf.StringVar(&f.charset, "charset", "", "Decode command output from this charset")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
}

// load layers the config file, .env files, SSHRS_* variables and explicitly set flags.
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	config.LoadEnvFiles(".")

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("host") {
		cfg.Host = f.host
	}

	if changed("port") {
		cfg.Port = f.port
	}

	if changed("user") {
		cfg.User = f.user
	}

	if changed("alias") {
		cfg.Alias = f.alias
	}

	if changed("agent") {
		cfg.Auth.Agent = f.agent
	}

	if changed("key") {
		cfg.Auth.KeyPath = f.keyPath
	}

	if changed("known-hosts") {
		cfg.HostKey.KnownHosts = f.known
	}

	if changed("accept-new") {
		cfg.HostKey.AcceptNew = f.acceptNew
	}

	if changed("insecure") {
		cfg.HostKey.Insecure = f.insecure
	}

	if changed("timeout") {
		cfg.Timeout = f.timeout
	}

	if changed("charset") {
		cfg.Charset = f.charset
	}

	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}

	if changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// target resolves where to connect and the transport options that go with it.
func target(cfg *config.Config) (host string, port int, username string, opts []sshtransport.Option, err error) {
	host, port, username = cfg.Host, cfg.Port, cfg.User

	tc := sshtransport.NewConfig()

	if cfg.Alias != "" {
		var t sshtransport.Target

		t, tc, err = sshtransport.NewFromSSHConfig(cfg.Alias, cfg.SSHConfigPath)
		if err != nil {
			return "", 0, "", nil, err
		}

		host, port = t.Host, t.Port

		if username == "" {
			username = t.User
		}
	}

	if username == "" {
		u, uerr := user.Current()
		if uerr != nil {
			return "", 0, "", nil, fmt.Errorf("no user given and current user unknown: %w", uerr)
		}

		username = u.Username
	}

	if cfg.Timeout > 0 {
		tc.Timeout = cfg.Timeout
	}

	if cfg.Auth.KeyPath != "" {
		tc.PrivateKeyPath = cfg.Auth.KeyPath
	}

	if cfg.Auth.AgentSocket != "" {
		tc.AgentSocket = cfg.Auth.AgentSocket
	}

	if cfg.HostKey.KnownHosts != "" {
		tc.KnownHostsPath = cfg.HostKey.KnownHosts
	}

	tc.AcceptNewHostKeys = tc.AcceptNewHostKeys || cfg.HostKey.AcceptNew
	tc.InsecureSkipVerify = tc.InsecureSkipVerify || cfg.HostKey.Insecure

	if !tc.InsecureSkipVerify && tc.KnownHostsPath == "" {
		tc.KnownHostsPath = sshtransport.DefaultKnownHostsPath()
	}

	return host, port, username, []sshtransport.Option{sshtransport.WithConfig(tc)}, nil
}

// connect builds an authenticated session from the command's configuration.
func (f *flags) connect(cmd *cobra.Command) (*sshrs.Session, error) {
	cfg, err := f.load(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Sanitize)
	if err != nil {
		return nil, err
	}

	host, port, username, opts, err := target(cfg)
	if err != nil {
		return nil, err
	}

	opts = append(opts, sshtransport.WithLogger(logger))

	t, err := sshtransport.New(opts...)
	if err != nil {
		return nil, err
	}

	s, err := sshrs.New(host, port,
		sshrs.WithTransport(t),
		sshrs.WithLogger(logger),
		sshrs.WithOutputCharset(cfg.Charset),
	)
	if err != nil {
		return nil, err
	}

	if err := authenticate(cmd.Context(), s, cfg, username); err != nil {
		_ = s.Close()

		return nil, err
	}

	logger.Debug("session ready", slog.String("addr", s.Addr()), slog.String("user", username))

	return s, nil
}

func authenticate(ctx context.Context, s *sshrs.Session, cfg *config.Config, username string) error {
	if cfg.Auth.Agent {
		return s.ConnectAgent(ctx, username)
	}

	password, err := cfg.Password(username, s.Host(), os.LookupEnv)

	switch {
	case errors.Is(err, config.ErrNoPassword) && cfg.Auth.KeyPath != "":
		// Key-only login: the key is offered before the empty password.
	case err != nil:
		return fmt.Errorf("%w (set $%s, enable auth.use_keyring, or use --agent)", err, cfg.Auth.PasswordEnv)
	}

	return s.Connect(ctx, username, password)
}
