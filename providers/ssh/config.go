package ssh

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
)

// Config holds the parameters the Transport uses for every connection it opens.
// Host, port and credentials are not part of it: they come from the Session.
type Config struct {
	// Connection settings
	Timeout            time.Duration       // Dial and handshake timeout (default 10s)
	HostKeyCheck       ssh.HostKeyCallback // Callback to verify host key. Takes precedence over KnownHostsPath.
	InsecureSkipVerify bool                // If true, disables host key checking. Use ONLY for testing.
	KnownHostsPath     string              // known_hosts file used when HostKeyCheck is nil
	AcceptNewHostKeys  bool                // Trust and record keys of hosts missing from KnownHostsPath

	// Authentication
	AgentSocket    string // SSH agent socket (default $SSH_AUTH_SOCK)
	PrivateKeyPath string // Extra public-key identity offered before the password

	Logger *slog.Logger
}

// Target is where an OpenSSH config alias points.
type Target struct {
	Host string
	Port int
	User string
}

// NewConfig creates a Config with safe defaults.
// Note: It does NOT set a host key policy. You must provide one or set InsecureSkipVerify=true.
func NewConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// NewFromSSHConfig loads configuration from an SSH config file (e.g. ~/.ssh/config).
// logic mirrors OpenSSH: reads specific path or default ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Target, Config, error) {
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".ssh", "config")
	}

	f, err := os.Open(path)
	if err != nil {
		return Target{}, Config{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader parses OpenSSH configuration data.
// It resolves the alias to the actual HostName, User, Port and IdentityFile, and maps
// StrictHostKeyChecking and UserKnownHostsFile onto the host key policy.
func NewFromSSHConfigReader(alias string, r io.Reader) (Target, Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Target{}, Config{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	hostName, err := cfg.Get(alias, "HostName")
	if err != nil || hostName == "" {
		hostName = alias // Fallback if no HostName defined
	}

	username, _ := cfg.Get(alias, "User")
	if username == "" {
		// Use current system user if not specified in config
		u, _ := user.Current()
		if u != nil {
			username = u.Username
		}
	}

	port := 22

	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return Target{}, Config{}, fmt.Errorf("invalid port %q for host %s: %w", portStr, alias, err)
		}
	}

	c := NewConfig()

	identityFile, _ := cfg.Get(alias, "IdentityFile")
	c.PrivateKeyPath = expandHome(identityFile)

	knownHosts, _ := cfg.Get(alias, "UserKnownHostsFile")
	if fields := strings.Fields(knownHosts); len(fields) > 0 {
		c.KnownHostsPath = expandHome(fields[0])
	}

	switch strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strings.ToLower(strict) {
	case "no", "off":
		c.InsecureSkipVerify = true
	case "accept-new":
		c.AcceptNewHostKeys = true
	}

	return Target{Host: hostName, Port: port, User: username}, c, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(os.Getenv("HOME"), p[2:])
	}

	return p
}

// WithDefaults sets default values for zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}

	// If insecure is requested and no callback provided, use insecure ignore.
	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		c.HostKeyCheck = ssh.InsecureIgnoreHostKey()
	}

	if c.AgentSocket == "" {
		c.AgentSocket = os.Getenv("SSH_AUTH_SOCK")
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return c
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("configuration error: timeout cannot be negative")
	}

	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		return errors.New("configuration error: no host key policy; provide HostKeyCheck or KnownHostsPath (e.g. DefaultKnownHostsPath()) or set InsecureSkipVerify=true (testing only)")
	}

	return nil
}

// hostKeyCallback resolves the configured host key policy.
func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.HostKeyCheck != nil {
		return c.HostKeyCheck, nil
	}

	return KnownHosts(c.KnownHostsPath, c.AcceptNewHostKeys, c.Logger)
}
