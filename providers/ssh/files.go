package ssh

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/xentrick/sshrs"
	"github.com/xentrick/sshrs/fileutil"
)

const posixRenameExt = "posix-rename@openssh.com"

var (
	_ sshrs.WriteChannel = (*writeChannel)(nil)
	_ sshrs.ReadChannel  = (*readChannel)(nil)
)

// OpenFileWrite starts an SFTP session and opens a temporary sibling of remotePath for writing.
// Missing parent directories are created. The content only reaches remotePath on Close.
func (c *conn) OpenFileWrite(ctx context.Context, remotePath string, size int64, mode os.FileMode) (sshrs.WriteChannel, error) {
	client, err := c.authed()
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, c.openError(client, err)
	}

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sc.MkdirAll(dir); err != nil {
			_ = sc.Close()

			return nil, uploadError(remotePath, err)
		}
	}

	tmp := fileutil.TempPath(remotePath)

	f, err := sc.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		_ = sc.Close()

		return nil, uploadError(remotePath, err)
	}

	c.logger.Debug("write channel opened",
		slog.String("remote", remotePath),
		slog.String("staging", tmp),
		slog.Int64("size", size),
	)

	return &writeChannel{
		sc:     sc,
		f:      f,
		tmp:    tmp,
		target: remotePath,
		mode:   mode,
		logger: c.logger,
	}, nil
}

func uploadError(remotePath string, err error) error {
	return &sshrs.TransferError{Op: sshrs.OpUpload, Path: remotePath, Reason: sshrs.ReasonFor(err), Err: err}
}

// writeChannel stages an upload in tmp and renames it onto target on Close.
type writeChannel struct {
	sc     *sftp.Client
	f      *sftp.File
	tmp    string
	target string
	mode   os.FileMode
	logger *slog.Logger

	fileClosed bool
	done       bool
}

func (w *writeChannel) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close flushes the staging file, applies the mode and renames it into place.
func (w *writeChannel) Close() error {
	if w.done {
		return nil
	}

	w.fileClosed = true
	if err := w.f.Close(); err != nil {
		return err
	}

	if err := w.sc.Chmod(w.tmp, w.mode); err != nil {
		return err
	}

	if err := w.rename(); err != nil {
		return err
	}

	w.done = true

	return w.sc.Close()
}

func (w *writeChannel) rename() error {
	if _, ok := w.sc.HasExtension(posixRenameExt); ok {
		return w.sc.PosixRename(w.tmp, w.target)
	}

	// Plain SFTP rename refuses to replace an existing file.
	if err := w.sc.Remove(w.target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return w.sc.Rename(w.tmp, w.target)
}

// Abort removes the staging file. It is a no-op after a successful Close.
func (w *writeChannel) Abort() error {
	if w.done {
		return nil
	}

	w.done = true

	if !w.fileClosed {
		_ = w.f.Close()
	}

	err := w.sc.Remove(w.tmp)
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}

	w.logger.Debug("upload aborted", slog.String("staging", w.tmp), slog.Any("error", err))

	_ = w.sc.Close()

	return err
}

// OpenFileRead starts an SFTP session, stats remotePath and opens it for reading.
func (c *conn) OpenFileRead(ctx context.Context, remotePath string) (sshrs.ReadChannel, *sshrs.FileStat, error) {
	client, err := c.authed()
	if err != nil {
		return nil, nil, err
	}

	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, nil, c.openError(client, err)
	}

	info, err := sc.Stat(remotePath)
	if err != nil {
		_ = sc.Close()

		return nil, nil, downloadError(remotePath, sshrs.ReasonFor(err), err)
	}

	if !info.Mode().IsRegular() {
		_ = sc.Close()

		return nil, nil, downloadError(remotePath, sshrs.ReasonNotRegular, nil)
	}

	f, err := sc.Open(remotePath)
	if err != nil {
		_ = sc.Close()

		return nil, nil, downloadError(remotePath, sshrs.ReasonFor(err), err)
	}

	c.logger.Debug("read channel opened", slog.String("remote", remotePath), slog.Int64("size", info.Size()))

	return &readChannel{sc: sc, f: f}, fileStat(info), nil
}

func downloadError(remotePath string, reason sshrs.TransferReason, err error) error {
	return &sshrs.TransferError{Op: sshrs.OpDownload, Path: remotePath, Reason: reason, Err: err}
}

// fileStat converts SFTP attributes, including owner and access time when the server sent them.
func fileStat(info os.FileInfo) *sshrs.FileStat {
	st := &sshrs.FileStat{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}

	if attrs, ok := info.Sys().(*sftp.FileStat); ok {
		st.UID = attrs.UID
		st.GID = attrs.GID

		if attrs.Atime != 0 {
			st.AccessTime = time.Unix(int64(attrs.Atime), 0)
		}
	}

	return st
}

type readChannel struct {
	sc *sftp.Client
	f  *sftp.File
}

func (r *readChannel) Read(p []byte) (int, error) {
	return r.f.Read(p)
}

func (r *readChannel) Close() error {
	err := r.f.Close()
	if cerr := r.sc.Close(); err == nil {
		err = cerr
	}

	return err
}
