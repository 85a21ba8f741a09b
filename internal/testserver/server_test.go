package testserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

func dial(t *testing.T, s *Server, auth ...ssh.AuthMethod) (*ssh.Client, error) {
	t.Helper()

	return ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            "alice",
		Auth:            auth,
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
	})
}

func TestServer_PasswordAndExec(t *testing.T) {
	t.Parallel()

	s := New(t, WithPassword("alice", "secret"))

	_, err := dial(t, s, ssh.Password("wrong"))
	require.Error(t, err)

	client, err := dial(t, s, ssh.Password("secret"))
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	require.NoError(t, err)

	var stdout bytes.Buffer
	session.Stdout = &stdout

	err = session.Run("echo hi; exit 7")

	var exitErr *ssh.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.ExitStatus())
	assert.Equal(t, "hi\n", stdout.String())
}

func TestServer_PublicKeyAndSignal(t *testing.T) {
	t.Parallel()

	priv, pub := GenerateKey(t)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	s := New(t, WithAuthorizedKey("alice", pub), WithExecHandler(func(context.Context, string, io.Writer, io.Writer) (int, string) {
		return 0, "SEGV"
	}))

	client, err := dial(t, s, ssh.PublicKeys(signer))
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	require.NoError(t, err)

	var exitErr *ssh.ExitError
	require.ErrorAs(t, session.Run("crash"), &exitErr)
	assert.Equal(t, "SEGV", exitErr.Signal())
}

func TestServer_Kill(t *testing.T) {
	t.Parallel()

	s := New(t, WithPassword("alice", "secret"))

	client, err := dial(t, s, ssh.Password("secret"))
	require.NoError(t, err)

	s.Kill()

	assert.Error(t, client.Wait())

	again, err := dial(t, s, ssh.Password("secret"))
	require.NoError(t, err, "the server keeps accepting after Kill")
	_ = again.Close()
}

func TestServer_Files(t *testing.T) {
	t.Parallel()

	s := New(t)

	require.NoError(t, s.WriteFile("/a/b/c.txt", []byte("content")))
	assert.True(t, s.Exists("/a/b"))
	assert.True(t, s.Exists("/a/b/c.txt"))
	assert.False(t, s.Exists("/a/b/d.txt"))

	data, err := s.ReadFile("/a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	names, err := s.List("/a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt"}, names)

	_, err = s.ReadFile("/nope")
	require.Error(t, err)
}

func TestAgent(t *testing.T) {
	t.Parallel()

	priv, pub := GenerateKey(t)
	socket := NewAgent(t, agent.AddedKey{PrivateKey: priv, Comment: "test"})

	keys, err := agentKeys(t, socket)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, pub.Marshal(), keys[0].Marshal())
}

func agentKeys(t *testing.T, socket string) ([]*agent.Key, error) {
	t.Helper()

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, err
	}

	defer func() { _ = conn.Close() }()

	return agent.NewClient(conn).List()
}
