// Package config loads the sshrs CLI configuration.
//
// Values are layered: built-in defaults, then the YAML file, then .env files and SSHRS_*
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "SSHRS_"

// DefaultPath returns $XDG_CONFIG_HOME/sshrs/config.yaml or ~/.config/sshrs/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		dir = filepath.Join(home, ".config")
	}

	return filepath.Join(dir, "sshrs", "config.yaml")
}

// Config is the CLI configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// Alias resolves Host, Port, User and the key and host key settings from SSHConfigPath.
	Alias         string `yaml:"alias"`
	SSHConfigPath string `yaml:"ssh_config"`

	Auth    AuthConfig    `yaml:"auth"`
	HostKey HostKeyConfig `yaml:"host_key"`

	Timeout time.Duration `yaml:"timeout"`
	Charset string        `yaml:"charset"`

	Logging LoggingConfig `yaml:"logging"`
}

// AuthConfig selects how the CLI authenticates.
type AuthConfig struct {
	Agent       bool   `yaml:"agent"`        // authenticate with the SSH agent instead of a password
	AgentSocket string `yaml:"agent_socket"` // defaults to $SSH_AUTH_SOCK
	KeyPath     string `yaml:"key_path"`     // extra public-key identity tried before the password
	PasswordEnv string `yaml:"password_env"` // env var containing the password
	UseKeyring  bool   `yaml:"use_keyring"`  // look the password up in the OS keyring
}

// HostKeyConfig is the host key policy.
type HostKeyConfig struct {
	KnownHosts string `yaml:"known_hosts"`
	AcceptNew  bool   `yaml:"accept_new"`
	Insecure   bool   `yaml:"insecure"` // testing only
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format   string `yaml:"format"` // "text" or "json"
	Sanitize bool   `yaml:"sanitize"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:    22,
		Timeout: 10 * time.Second,
		Auth: AuthConfig{
			PasswordEnv: EnvPrefix + "PASSWORD",
		},
		Logging: LoggingConfig{
			Level:    "warn",
			Format:   "text",
			Sanitize: true,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// LoadEnvFiles loads .env.local and .env from dir into the process environment.
// Variables already set are not overridden; missing files are ignored.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env.local"))
	_ = godotenv.Load(filepath.Join(dir, ".env"))
}

// ApplyEnv overrides fields from SSHRS_* variables found by lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}

		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}

		*dst = b

		return nil
	}

	str("HOST", &c.Host)
	str("USER", &c.User)
	str("ALIAS", &c.Alias)
	str("SSH_CONFIG", &c.SSHConfigPath)
	str("AGENT_SOCKET", &c.Auth.AgentSocket)
	str("KEY_PATH", &c.Auth.KeyPath)
	str("KNOWN_HOSTS", &c.HostKey.KnownHosts)
	str("CHARSET", &c.Charset)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if v, ok := lookup(EnvPrefix + "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}

		c.Port = port
	}

	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}

		c.Timeout = d
	}

	for name, dst := range map[string]*bool{
		"AGENT":       &c.Auth.Agent,
		"USE_KEYRING": &c.Auth.UseKeyring,
		"ACCEPT_NEW":  &c.HostKey.AcceptNew,
		"INSECURE":    &c.HostKey.Insecure,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" && c.Alias == "" {
		return errors.New("host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}

	if c.HostKey.Insecure && c.HostKey.AcceptNew {
		return errors.New("host_key.insecure and host_key.accept_new are mutually exclusive")
	}

	return nil
}
