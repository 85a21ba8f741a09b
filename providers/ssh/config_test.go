package ssh

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "/tmp/agent.sock")

	c := Config{InsecureSkipVerify: true}.WithDefaults()

	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.NotNil(t, c.HostKeyCheck)
	assert.Equal(t, "/tmp/agent.sock", c.AgentSocket)
	assert.NotNil(t, c.Logger)
}

func TestConfig_WithDefaults_KeepsExplicit(t *testing.T) {
	t.Parallel()

	c := Config{Timeout: time.Second, AgentSocket: "/run/agent"}.WithDefaults()

	assert.Equal(t, time.Second, c.Timeout)
	assert.Equal(t, "/run/agent", c.AgentSocket)
	assert.Nil(t, c.HostKeyCheck)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "insecure",
			config: Config{InsecureSkipVerify: true}.WithDefaults(),
		},
		{
			name:   "known hosts",
			config: Config{KnownHostsPath: "/etc/ssh/ssh_known_hosts"}.WithDefaults(),
		},
		{
			name:    "no host key policy",
			config:  NewConfig(),
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{Timeout: -time.Second, InsecureSkipVerify: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RequiresHostKeyPolicy(t *testing.T) {
	t.Parallel()

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no host key policy")

	_, err = New(WithInsecureSkipVerify(true))
	require.NoError(t, err)
}

func TestNewFromSSHConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, "ssh_config")
	writeFile(t, configPath, `
Host myalias
    HostName 1.2.3.4
    User testuser
    Port 2222
    IdentityFile ~/.ssh/id_ed25519
    StrictHostKeyChecking no
`)

	t.Run("custom path", func(t *testing.T) {
		target, cfg, err := NewFromSSHConfig("myalias", configPath)
		require.NoError(t, err)

		assert.Equal(t, Target{Host: "1.2.3.4", Port: 2222, User: "testuser"}, target)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), cfg.PrivateKeyPath)
	})

	t.Run("non-existent path", func(t *testing.T) {
		_, _, err := NewFromSSHConfig("myalias", filepath.Join(home, "non_existent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open ssh config")
	})
}

func TestNewFromSSHConfigReader(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	const config = `
Host accept
    HostName accept.example.com
    User deploy
    StrictHostKeyChecking accept-new
    UserKnownHostsFile ~/.ssh/known_hosts_accept /etc/ssh/other

Host badport
    Port twenty-two

Host *
    User fallback
`

	t.Run("accept-new", func(t *testing.T) {
		target, cfg, err := NewFromSSHConfigReader("accept", strings.NewReader(config))
		require.NoError(t, err)

		assert.Equal(t, "accept.example.com", target.Host)
		assert.Equal(t, 22, target.Port)
		assert.Equal(t, "deploy", target.User)
		assert.True(t, cfg.AcceptNewHostKeys)
		assert.False(t, cfg.InsecureSkipVerify)
		assert.Equal(t, "/home/tester/.ssh/known_hosts_accept", cfg.KnownHostsPath)
	})

	t.Run("alias without hostname", func(t *testing.T) {
		target, _, err := NewFromSSHConfigReader("plain.example.com", strings.NewReader(config))
		require.NoError(t, err)

		assert.Equal(t, "plain.example.com", target.Host)
		assert.Equal(t, "fallback", target.User)
	})

	t.Run("invalid port", func(t *testing.T) {
		_, _, err := NewFromSSHConfigReader("badport", strings.NewReader(config))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid port")
	})
}

func TestOptions(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	for _, o := range []Option{
		WithTimeout(3 * time.Second),
		WithKnownHosts("/kh"),
		WithAcceptNewHostKeys(true),
		WithAgentSocket("/agent"),
		WithKeyPath("/key"),
	} {
		o(&c)
	}

	assert.Equal(t, Config{
		Timeout:           3 * time.Second,
		KnownHostsPath:    "/kh",
		AcceptNewHostKeys: true,
		AgentSocket:       "/agent",
		PrivateKeyPath:    "/key",
	}, c)

	WithConfig(Config{Timeout: time.Minute})(&c)
	assert.Equal(t, Config{Timeout: time.Minute}, c)
}
