package sessiontest

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

func sessionContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategorySession,
			Name:        "not-authenticated-guard",
			Description: "Every operation on a never-connected session fails with *NotAuthenticatedError",
			Run: func(t T, target Target) {
				s := newSession(t, target)

				var notAuthed *sshrs.NotAuthenticatedError

				_, err := s.RunCommand(t.Context(), "echo nope")
				require.ErrorAs(t, err, &notAuthed)

				src := filepath.Join(t.TempDir(), "src.txt")
				require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

				err = s.UploadFile(t.Context(), src, remotePath(t, target, "guard.txt"))
				require.ErrorAs(t, err, &notAuthed)

				data, stat, err := s.GetFile(t.Context(), remotePath(t, target, "guard.txt"))
				require.ErrorAs(t, err, &notAuthed)
				assert.Nil(t, data)
				assert.Nil(t, stat)
			},
		},
		{
			Category:    CategorySession,
			Name:        "close-idempotent",
			Description: "Closing a session twice is non-fatal and leaves it unauthenticated",
			Run: func(t T, target Target) {
				s := connect(t, target)

				require.NoError(t, s.Close())
				require.NoError(t, s.Close())
				assert.False(t, s.Authed())
			},
		},
		{
			Category:    CategorySession,
			Name:        "closed-rejects-operations",
			Description: "Operations and reconnects fail deterministically after close",
			Run: func(t T, target Target) {
				s := connect(t, target)
				require.NoError(t, s.Close())

				_, err := s.RunCommand(t.Context(), "echo nope")
				require.ErrorIs(t, err, sshrs.ErrSessionClosed)

				require.ErrorIs(t, s.Connect(t.Context(), target.User, target.Password), sshrs.ErrSessionClosed)
			},
		},
		{
			Category:    CategorySession,
			Name:        "keepalive",
			Description: "Keepalive succeeds on a live connection",
			Run: func(t T, target Target) {
				s := connect(t, target)
				require.NoError(t, s.Keepalive(t.Context()))
			},
		},
	}
}
