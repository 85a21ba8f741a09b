package sessiontest

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

func connectContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryConnect,
			Name:        "unreachable-port",
			Description: "Connecting to a port with nothing listening fails with *ConnectionError",
			Prereq: func(target Target) (bool, string) {
				return target.ClosedPort != 0, "no closed port configured"
			},
			Run: func(t T, target Target) {
				s, err := sshrs.New(target.Host, target.ClosedPort, sshrs.WithTransport(target.Transport))
				require.NoError(t, err)

				err = s.Connect(t.Context(), target.User, target.Password)

				var connErr *sshrs.ConnectionError
				require.ErrorAs(t, err, &connErr)
				assert.False(t, s.Authed())
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "wrong-password",
			Description: "A rejected password fails with *AuthenticationError and leaves the session unauthenticated",
			Run: func(t T, target Target) {
				s := newSession(t, target)

				err := s.Connect(t.Context(), target.User, target.BadPassword)

				var authErr *sshrs.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, target.User, authErr.User)
				assert.False(t, s.Authed())
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "retry-after-failure",
			Description: "A session whose connect failed may connect again",
			Run: func(t T, target Target) {
				s := newSession(t, target)

				require.Error(t, s.Connect(t.Context(), target.User, target.BadPassword))
				require.NoError(t, s.Connect(t.Context(), target.User, target.Password))
				assert.True(t, s.Authed())
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "authed-after-connect",
			Description: "Authed is false before connect and true after",
			Run: func(t T, target Target) {
				s := newSession(t, target)
				assert.False(t, s.Authed())

				require.NoError(t, s.Connect(t.Context(), target.User, target.Password))
				assert.True(t, s.Authed())
				assert.True(t, s.Authed())
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "already-connected",
			Description: "A second connect on an authenticated session is refused and changes nothing",
			Run: func(t T, target Target) {
				s := connect(t, target)

				require.ErrorIs(t, s.Connect(t.Context(), target.User, target.Password), sshrs.ErrAlreadyConnected)
				assert.True(t, s.Authed())

				out, err := s.RunCommand(t.Context(), "echo still-here")
				require.NoError(t, err)
				assert.Equal(t, "still-here\n", out)
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "agent",
			Description: "ConnectAgent authenticates with an identity from the agent",
			Prereq: func(target Target) (bool, string) {
				return target.AgentUser != "", "no agent user configured"
			},
			Run: func(t T, target Target) {
				s := newSession(t, target)

				require.NoError(t, s.ConnectAgent(t.Context(), target.AgentUser))
				assert.True(t, s.Authed())
				assert.Equal(t, target.AgentUser, s.User())
			},
		},
		{
			Category:    CategoryConnect,
			Name:        "agent-rejected",
			Description: "ConnectAgent for a user no identity is authorised for fails with *AuthenticationError",
			Prereq: func(target Target) (bool, string) {
				return target.AgentUser != "", "no agent user configured"
			},
			Run: func(t T, target Target) {
				s := newSession(t, target)

				err := s.ConnectAgent(t.Context(), target.AgentUser+"-nobody")

				var authErr *sshrs.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, sshrs.AuthAgent, authErr.Method)
				assert.False(t, s.Authed())
			},
		},
	}
}
