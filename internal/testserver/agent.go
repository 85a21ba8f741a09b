package testserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// NewAgent serves an in-memory SSH agent holding keys on a unix socket and returns the
// socket path. The agent stops when the test ends.
func NewAgent(t testing.TB, keys ...agent.AddedKey) string {
	t.Helper()

	keyring := agent.NewKeyring()
	for _, k := range keys {
		if err := keyring.Add(k); err != nil {
			t.Fatalf("add agent key: %v", err)
		}
	}

	// Unix socket paths are limited to ~100 bytes, which t.TempDir can exceed.
	dir, err := os.MkdirTemp("", "sshrs-agent")
	if err != nil {
		t.Fatalf("agent dir: %v", err)
	}

	socket := filepath.Join(dir, "agent.sock")

	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("agent listen: %v", err)
	}

	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}

				continue
			}

			go func() {
				defer func() { _ = c.Close() }()

				_ = agent.ServeAgent(keyring, c)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = l.Close()
		_ = os.RemoveAll(dir)
	})

	return socket
}

// GenerateKey returns a fresh ed25519 key pair.
func GenerateKey(t testing.TB) (ed25519.PrivateKey, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("convert public key: %v", err)
	}

	return priv, sshPub
}

// WriteKeyFile writes priv as an unencrypted OpenSSH private key and returns its path.
func WriteKeyFile(t testing.TB, priv ed25519.PrivateKey) string {
	t.Helper()

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	p := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(p, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	return p
}
