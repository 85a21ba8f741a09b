package sessiontest

import (
	"bytes"
	"crypto/rand"
	"os"
	"path"
	"path/filepath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

func fileContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryFiles,
			Name:        "binary-roundtrip",
			Description: "Uploaded bytes download unchanged, with size and mode reported",
			Run: func(t T, target Target) {
				s := connect(t, target)

				content := make([]byte, 256<<10)
				_, _ = rand.Read(content)
				src := writeLocal(t, "blob.bin", content)
				dst := remotePath(t, target, "blob.bin")

				require.NoError(t, s.UploadFile(t.Context(), src, dst, sshrs.WithPermissions(0o640)))

				data, stat, err := s.GetFile(t.Context(), dst)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(content, data), "content mismatch")
				require.NotNil(t, stat)
				assert.Equal(t, int64(len(content)), stat.Size)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "creates-parents",
			Description: "Upload creates missing parent directories",
			Run: func(t T, target Target) {
				s := connect(t, target)

				src := writeLocal(t, "deep.txt", []byte("deep"))
				dst := remotePath(t, target, "a", "b", "c", "deep.txt")

				require.NoError(t, s.UploadFile(t.Context(), src, dst))

				data, _, err := s.GetFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, "deep", string(data))
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "overwrite",
			Description: "Uploading over an existing file replaces its content",
			Run: func(t T, target Target) {
				s := connect(t, target)
				dst := remotePath(t, target, "over.txt")

				require.NoError(t, s.UploadFile(t.Context(), writeLocal(t, "v1.txt", []byte("first version, longer")), dst))
				require.NoError(t, s.UploadFile(t.Context(), writeLocal(t, "v2.txt", []byte("second")), dst))

				data, stat, err := s.GetFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Equal(t, "second", string(data))
				assert.Equal(t, int64(6), stat.Size)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "empty-file",
			Description: "An empty file uploads and downloads as empty content",
			Run: func(t T, target Target) {
				s := connect(t, target)
				dst := remotePath(t, target, "empty")

				require.NoError(t, s.UploadFile(t.Context(), writeLocal(t, "empty", nil), dst))

				data, stat, err := s.GetFile(t.Context(), dst)
				require.NoError(t, err)
				assert.Empty(t, data)
				assert.Equal(t, int64(0), stat.Size)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "missing-remote",
			Description: "Getting a missing file fails with a not-found TransferError and no content",
			Run: func(t T, target Target) {
				s := connect(t, target)

				data, stat, err := s.GetFile(t.Context(), remotePath(t, target, "does-not-exist"))
				require.Error(t, err)
				assert.True(t, sshrs.IsNotFound(err), "expected not found, got %v", err)
				assert.Nil(t, data)
				assert.Nil(t, stat)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "directory-remote",
			Description: "Getting a directory fails with a not-regular TransferError",
			Run: func(t T, target Target) {
				s := connect(t, target)
				dst := remotePath(t, target, "dir", "child.txt")
				require.NoError(t, s.UploadFile(t.Context(), writeLocal(t, "child.txt", []byte("x")), dst))

				_, _, err := s.GetFile(t.Context(), path.Dir(dst))

				var te *sshrs.TransferError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, sshrs.ReasonNotRegular, te.Reason)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "max-size",
			Description: "A file larger than WithMaxSize is refused",
			Run: func(t T, target Target) {
				s := connect(t, target)
				dst := remotePath(t, target, "big.txt")
				require.NoError(t, s.UploadFile(t.Context(), writeLocal(t, "big.txt", bytes.Repeat([]byte("x"), 100)), dst))

				data, _, err := s.GetFile(t.Context(), dst, sshrs.WithMaxSize(10))

				var te *sshrs.TransferError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, sshrs.ReasonTooLarge, te.Reason)
				assert.Nil(t, data)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "read-only-destination",
			Description: "Uploading where the user may not write fails with a permission-denied TransferError",
			Prereq: func(target Target) (bool, string) {
				return target.ReadOnlyDir != "", "no read-only directory configured"
			},
			Run: func(t T, target Target) {
				s := connect(t, target)

				err := s.UploadFile(t.Context(), writeLocal(t, "ro.txt", []byte("x")), path.Join(target.ReadOnlyDir, "ro.txt"))
				require.Error(t, err)
				assert.True(t, sshrs.IsPermissionDenied(err), "expected permission denied, got %v", err)
			},
		},
		{
			Category:    CategoryFiles,
			Name:        "missing-local",
			Description: "Uploading a missing local file fails with *LocalIOError before touching the remote",
			Run: func(t T, target Target) {
				s := connect(t, target)
				dst := remotePath(t, target, "never.txt")

				err := s.UploadFile(t.Context(), filepath.Join(t.TempDir(), "nope"), dst)

				var localErr *sshrs.LocalIOError
				require.ErrorAs(t, err, &localErr)

				_, _, err = s.GetFile(t.Context(), dst)
				assert.True(t, sshrs.IsNotFound(err), "expected not found, got %v", err)
			},
		},
	}
}

func writeLocal(t T, name string, content []byte) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0o600))

	return p
}
