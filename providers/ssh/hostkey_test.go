package ssh

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs/internal/testserver"
	"golang.org/x/crypto/ssh/knownhosts"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

var remoteAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2222}

func TestKnownHosts_Strict(t *testing.T) {
	t.Parallel()

	_, key := testserver.GenerateKey(t)
	_, other := testserver.GenerateKey(t)

	path := filepath.Join(t.TempDir(), "known_hosts")
	writeFile(t, path, knownhosts.Line([]string{knownhosts.Normalize("127.0.0.1:2222")}, key)+"\n")

	cb, err := KnownHosts(path, false, nil)
	require.NoError(t, err)

	require.NoError(t, cb("127.0.0.1:2222", remoteAddr, key))

	err = cb("127.0.0.1:2222", remoteAddr, other)

	var keyErr *knownhosts.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.NotEmpty(t, keyErr.Want)

	err = cb("10.0.0.1:22", remoteAddr, key)
	require.ErrorAs(t, err, &keyErr)
	assert.Empty(t, keyErr.Want)
}

func TestKnownHosts_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := KnownHosts(filepath.Join(t.TempDir(), "nope"), false, nil)
	assert.Error(t, err)
}

func TestKnownHosts_AcceptNew(t *testing.T) {
	t.Parallel()

	_, key := testserver.GenerateKey(t)
	_, other := testserver.GenerateKey(t)

	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")

	cb, err := KnownHosts(path, true, nil)
	require.NoError(t, err)

	require.NoError(t, cb("127.0.0.1:2222", remoteAddr, key), "unknown host is trusted on first use")
	require.NoError(t, cb("127.0.0.1:2222", remoteAddr, key), "recorded key is accepted")

	err = cb("127.0.0.1:2222", remoteAddr, other)

	var keyErr *knownhosts.KeyError
	require.ErrorAs(t, err, &keyErr, "changed key is rejected")
	assert.NotEmpty(t, keyErr.Want)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "key recorded exactly once")

	strict, err := KnownHosts(path, false, nil)
	require.NoError(t, err)
	require.NoError(t, strict("127.0.0.1:2222", remoteAddr, key), "recorded line is valid known_hosts")
}

func TestKnownHosts_AcceptNewConcurrent(t *testing.T) {
	t.Parallel()

	_, key := testserver.GenerateKey(t)
	path := filepath.Join(t.TempDir(), "known_hosts")

	cb, err := KnownHosts(path, true, nil)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 8)
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs <- cb("[example.com]:2200", remoteAddr, key)
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}
