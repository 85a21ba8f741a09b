package sshrs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/xentrick/sshrs/fileutil"
)

var (
	errIsDirectory = errors.New("is a directory")
	errNoFileName  = errors.New("remote path does not name a file")
)

// remoteFileTarget reports whether p names a file rather than a directory.
func remoteFileTarget(p string) bool {
	if strings.TrimSpace(p) == "" || strings.HasSuffix(p, "/") {
		return false
	}

	switch path.Base(p) {
	case ".", "..", "/":
		return false
	}

	return true
}

// UploadFile copies the local file at localPath to remotePath on the remote host.
//
// The content is streamed, never held in memory. The remote file takes the local permission bits
// unless WithPermissions overrides them. If the transfer fails the destination is left as it was:
// transports stage the content in a temporary sibling and only rename it into place on success.
func (s *Session) UploadFile(ctx context.Context, localPath, remotePath string, opts ...FileOption) error {
	conn, err := s.live("upload")
	if err != nil {
		return err
	}

	if !remoteFileTarget(remotePath) {
		return &TransferError{Op: OpUpload, Path: remotePath, Reason: ReasonNotRegular, Err: errNoFileName}
	}

	cfg := applyFileOptions(opts)
	log := s.logger.With(slog.String("op", "upload"), slog.String("remote", remotePath))

	f, err := os.Open(localPath)
	if err != nil {
		return &LocalIOError{Op: "open", Path: localPath, Err: err}
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return &LocalIOError{Op: "stat", Path: localPath, Err: err}
	}

	if info.IsDir() {
		return &LocalIOError{Op: "open", Path: localPath, Err: errIsDirectory}
	}

	mode := info.Mode().Perm()
	if cfg.Permissions != 0 {
		mode = cfg.Permissions.Perm()
	}

	w, err := conn.OpenFileWrite(ctx, remotePath, info.Size(), mode)
	if err != nil {
		log.Debug("write channel open failed", slog.Any("error", err))

		if isTyped(err) {
			return err
		}

		if lost := s.lost(conn); lost != nil {
			return lost
		}

		return &ChannelError{Kind: ChannelFileWrite, Target: remotePath, Err: err}
	}

	var src io.Reader = &localReader{r: f, path: localPath}
	if cfg.Progress != nil {
		src = &fileutil.ProgressReader{Reader: src, Total: info.Size(), Fn: cfg.Progress}
	}

	src = &fileutil.ContextReader{Ctx: ctx, Reader: src}
	dst := &fileutil.CountingWriter{Writer: w}

	if _, err := io.Copy(dst, src); err != nil {
		_ = w.Abort()

		return uploadError(remotePath, err)
	}

	if dst.N != info.Size() {
		_ = w.Abort()

		return &TransferError{
			Op:     OpUpload,
			Path:   remotePath,
			Reason: ReasonShortWrite,
			Err:    fmt.Errorf("wrote %d of %d bytes", dst.N, info.Size()),
		}
	}

	if err := w.Close(); err != nil {
		_ = w.Abort()

		return uploadError(remotePath, err)
	}

	log.Debug("upload complete", slog.Int64("bytes", dst.N), slog.String("mode", mode.String()))

	return nil
}

func uploadError(remotePath string, err error) error {
	if isTyped(err) {
		return err
	}

	reason := ReasonFor(err)
	if errors.Is(err, io.ErrShortWrite) {
		reason = ReasonShortWrite
	}

	return &TransferError{Op: OpUpload, Path: remotePath, Reason: reason, Err: err}
}

// GetFile downloads the regular file at remotePath and returns its content with its metadata.
//
// The content is returned as raw bytes; no text decoding is applied. On any failure no content
// is returned.
func (s *Session) GetFile(ctx context.Context, remotePath string, opts ...FileOption) ([]byte, *FileStat, error) {
	conn, err := s.live("get")
	if err != nil {
		return nil, nil, err
	}

	cfg := applyFileOptions(opts)
	log := s.logger.With(slog.String("op", "get"), slog.String("remote", remotePath))

	r, stat, err := conn.OpenFileRead(ctx, remotePath)
	if err != nil {
		log.Debug("read channel open failed", slog.Any("error", err))

		if isTyped(err) {
			return nil, nil, err
		}

		if lost := s.lost(conn); lost != nil {
			return nil, nil, lost
		}

		return nil, nil, &ChannelError{Kind: ChannelFileRead, Target: remotePath, Err: err}
	}

	defer func() { _ = r.Close() }()

	if stat != nil {
		if !stat.Mode.IsRegular() {
			return nil, nil, &TransferError{Op: OpDownload, Path: remotePath, Reason: ReasonNotRegular}
		}

		if cfg.MaxSize > 0 && stat.Size > cfg.MaxSize {
			return nil, nil, tooLarge(remotePath, stat.Size, cfg.MaxSize)
		}
	}

	var src io.Reader = r
	if cfg.MaxSize > 0 {
		src = io.LimitReader(src, cfg.MaxSize+1)
	}

	var total int64
	if stat != nil {
		total = stat.Size
	}

	if cfg.Progress != nil {
		src = &fileutil.ProgressReader{Reader: src, Total: total, Fn: cfg.Progress}
	}

	src = &fileutil.ContextReader{Ctx: ctx, Reader: src}

	var buf bytes.Buffer
	if total > 0 && total <= maxPrealloc {
		buf.Grow(int(total))
	}

	if _, err := buf.ReadFrom(src); err != nil {
		if isTyped(err) {
			return nil, nil, err
		}

		return nil, nil, &TransferError{Op: OpDownload, Path: remotePath, Reason: ReasonIO, Err: err}
	}

	if cfg.MaxSize > 0 && int64(buf.Len()) > cfg.MaxSize {
		return nil, nil, tooLarge(remotePath, int64(buf.Len()), cfg.MaxSize)
	}

	if stat == nil {
		stat = &FileStat{Size: int64(buf.Len()), Mode: 0o644}
	}

	log.Debug("download complete", slog.Int("bytes", buf.Len()))

	return buf.Bytes(), stat, nil
}

// maxPrealloc caps the buffer reserved up front from the size the remote host reports.
const maxPrealloc = 64 << 20

func tooLarge(remotePath string, size, limit int64) error {
	return &TransferError{
		Op:     OpDownload,
		Path:   remotePath,
		Reason: ReasonTooLarge,
		Err:    fmt.Errorf("%d bytes exceeds limit of %d", size, limit),
	}
}

func applyFileOptions(opts []FileOption) FileConfig {
	var cfg FileConfig
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// localReader tags read failures so they are reported as local, not remote, errors.
type localReader struct {
	r    io.Reader
	path string
}

func (lr *localReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &LocalIOError{Op: "read", Path: lr.path, Err: err}
	}

	return n, err
}
