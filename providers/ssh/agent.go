package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/xentrick/sshrs"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

const agentDialTimeout = 500 * time.Millisecond

// Identity is a public key held by the SSH agent.
type Identity struct {
	Comment     string
	Type        string
	Fingerprint string // SHA256 fingerprint as printed by ssh-add -l
	Blob        []byte // Wire-format public key
}

// Identities lists the keys held by the SSH agent at socket ($SSH_AUTH_SOCK if empty).
func Identities(ctx context.Context, socket string) ([]Identity, error) {
	ag, conn, err := dialAgent(ctx, socket)
	if err != nil {
		return nil, err
	}

	defer func() { _ = conn.Close() }()

	keys, err := ag.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sshrs.ErrAgentUnavailable, err)
	}

	ids := make([]Identity, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, Identity{
			Comment:     k.Comment,
			Type:        k.Format,
			Fingerprint: ssh.FingerprintSHA256(k),
			Blob:        k.Blob,
		})
	}

	return ids, nil
}

// dialAgent connects to the agent socket. Every failure wraps sshrs.ErrAgentUnavailable.
func dialAgent(ctx context.Context, socket string) (agent.ExtendedAgent, net.Conn, error) {
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}

	if socket == "" {
		return nil, nil, fmt.Errorf("%w: SSH_AUTH_SOCK not set", sshrs.ErrAgentUnavailable)
	}

	conn, err := (&net.Dialer{Timeout: agentDialTimeout}).DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", sshrs.ErrAgentUnavailable, err)
	}

	return agent.NewClient(conn), conn, nil
}
