// Package fileutil provides shared file-transfer utilities for sshrs transports.
//
// It holds the small io wrappers and remote path helpers that both the Session and transport
// implementations use, without importing either.
package fileutil

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ProgressReader wraps an io.Reader to report progress after every read.
// Total should be set to the known total size, or 0 if unknown.
type ProgressReader struct {
	io.Reader

	Total   int64
	Current int64
	Fn      func(current, total int64)
}

// Read reads from the underlying reader and reports progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader wraps an io.Reader to check for context cancellation
// before each Read call. This allows long-running io.Copy operations
// to be interrupted by context cancellation.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read checks for context cancellation before delegating to the underlying reader.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if cr.Ctx.Err() != nil {
		return 0, cr.Ctx.Err()
	}

	return cr.Reader.Read(p)
}

// CountingWriter counts the bytes its underlying writer accepted.
type CountingWriter struct {
	Writer io.Writer
	N      int64
}

func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.N += int64(n)

	return n, err
}

// TempPath returns a hidden sibling of remotePath used as an upload staging file.
// Remote paths are always forward-slash separated.
func TempPath(remotePath string) string {
	dir, base := path.Split(remotePath)

	return dir + "." + base + ".sshrs-" + uuid.NewString()[:8] + ".tmp"
}

// IsTempPath reports whether p was produced by TempPath.
func IsTempPath(p string) bool {
	base := path.Base(p)

	return strings.HasPrefix(base, ".") && strings.Contains(base, ".sshrs-") && strings.HasSuffix(base, ".tmp")
}

// RemoteWithin reports whether target is root or a child of root using forward-slash
// path conventions (path.Clean, "/").
func RemoteWithin(root, target string) bool {
	cleanRoot := path.Clean(root)
	cleanTarget := path.Clean(target)

	if cleanRoot == cleanTarget {
		return true
	}

	if cleanRoot == "/" {
		return strings.HasPrefix(cleanTarget, "/")
	}

	return strings.HasPrefix(cleanTarget, cleanRoot+"/")
}
