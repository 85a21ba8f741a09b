package testserver

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"github.com/xentrick/sshrs/fileutil"
	"golang.org/x/crypto/ssh"
)

// SFTP open flags (draft-ietf-secsh-filexfer-02 §6.3).
const (
	fxfRead  = 0x01
	fxfWrite = 0x02
	fxfCreat = 0x08
	fxfTrunc = 0x10
)

// fileSystem is the in-memory tree every sftp session of a Server shares.
type fileSystem struct {
	handlers sftp.Handlers
}

func newFileSystem() *fileSystem {
	return &fileSystem{handlers: sftp.InMemHandler()}
}

func (s *Server) serveSFTP(channel ssh.Channel) {
	guard := &writeGuard{inner: s.files.handlers, readOnly: s.readOnly}

	server := sftp.NewRequestServer(channel, sftp.Handlers{
		FileGet:  s.files.handlers.FileGet,
		FilePut:  guard,
		FileCmd:  guard,
		FileList: s.files.handlers.FileList,
	})

	if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("sftp server stopped", slog.String("error", err.Error()))
	}

	_ = server.Close()
}

// writeGuard refuses writes under the read-only prefix and gives renames POSIX semantics.
type writeGuard struct {
	inner    sftp.Handlers
	readOnly string
}

func (g *writeGuard) denied(p string) bool {
	return g.readOnly != "" && p != "" && fileutil.RemoteWithin(g.readOnly, p)
}

func (g *writeGuard) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	if g.denied(r.Filepath) {
		return nil, sftp.ErrSSHFxPermissionDenied
	}

	return g.inner.FilePut.Filewrite(r)
}

func (g *writeGuard) Filecmd(r *sftp.Request) error {
	if g.denied(r.Filepath) || g.denied(r.Target) {
		return sftp.ErrSSHFxPermissionDenied
	}

	if r.Method == "PosixRename" {
		return g.PosixRename(r)
	}

	return g.inner.FileCmd.Filecmd(r)
}

// PosixRename replaces the target if it exists.
func (g *writeGuard) PosixRename(r *sftp.Request) error {
	if g.denied(r.Filepath) || g.denied(r.Target) {
		return sftp.ErrSSHFxPermissionDenied
	}

	rm := sftp.NewRequest("Remove", r.Target)
	if err := g.inner.FileCmd.Filecmd(rm); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("posix rename: remove target", slog.String("error", err.Error()))
	}

	mv := sftp.NewRequest("Rename", r.Filepath)
	mv.Target = r.Target

	return g.inner.FileCmd.Filecmd(mv)
}

// WriteFile stores data at p, creating parent directories. Writes bypass the read-only guard.
func (s *Server) WriteFile(p string, data []byte) error {
	s.MkdirAll(path.Dir(p))

	r := sftp.NewRequest("Put", p)
	r.Flags = fxfWrite | fxfCreat | fxfTrunc

	w, err := s.files.handlers.FilePut.Filewrite(r)
	if err != nil {
		return err
	}

	if _, err := w.WriteAt(data, 0); err != nil {
		return err
	}

	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// MkdirAll creates dir and its parents.
func (s *Server) MkdirAll(dir string) {
	cur := ""

	for _, part := range strings.Split(path.Clean(dir), "/") {
		if part == "" {
			continue
		}

		cur += "/" + part
		_ = s.files.handlers.FileCmd.Filecmd(sftp.NewRequest("Mkdir", cur))
	}
}

// ReadFile returns the content stored at p.
func (s *Server) ReadFile(p string) ([]byte, error) {
	info, err := s.stat(p)
	if err != nil {
		return nil, err
	}

	r := sftp.NewRequest("Get", p)
	r.Flags = fxfRead

	ra, err := s.files.handlers.FileGet.Fileread(r)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, info.Size())

	n, err := ra.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return buf[:n], nil
}

// Exists reports whether p exists.
func (s *Server) Exists(p string) bool {
	_, err := s.stat(p)

	return err == nil
}

// List returns the names of the entries in dir.
func (s *Server) List(dir string) ([]string, error) {
	lister, err := s.files.handlers.FileList.Filelist(sftp.NewRequest("List", dir))
	if err != nil {
		return nil, err
	}

	var names []string

	buf := make([]os.FileInfo, 16)

	for offset := int64(0); ; {
		n, err := lister.ListAt(buf, offset)
		for _, fi := range buf[:n] {
			names = append(names, fi.Name())
		}

		offset += int64(n)

		if errors.Is(err, io.EOF) || n == 0 {
			return names, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

func (s *Server) stat(p string) (os.FileInfo, error) {
	lister, err := s.files.handlers.FileList.Filelist(sftp.NewRequest("Stat", p))
	if err != nil {
		return nil, err
	}

	fis := make([]os.FileInfo, 1)

	n, err := lister.ListAt(fis, 0)
	if n == 0 {
		if err == nil {
			err = os.ErrNotExist
		}

		return nil, err
	}

	return fis[0], nil
}
