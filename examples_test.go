package sshrs_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	testifymock "github.com/stretchr/testify/mock"
	"github.com/xentrick/sshrs"
	"github.com/xentrick/sshrs/providers/mock"
	"github.com/xentrick/sshrs/providers/ssh"
)

// exampleConn returns a mock connection that accepts alice/secret.
func exampleConn() *mock.Conn {
	conn := &mock.Conn{}
	conn.On("AuthenticatePassword", testifymock.Anything, "alice", "secret").Return(nil)
	conn.On("Err").Return(nil)
	conn.On("Close").Return(nil)

	return conn
}

func ExampleSession_RunCommand() {
	conn := exampleConn()

	ch := &mock.ExecChannel{}
	ch.On("Stdout").Return(mock.Output("Linux\n"))
	ch.On("Wait").Return(sshrs.ExitStatus{}, nil)
	ch.On("Stderr").Return(nil)
	ch.On("Close").Return(nil)
	conn.On("OpenExec", testifymock.Anything, "uname").Return(ch, nil)

	s, err := sshrs.New("build.example.com", 22, sshrs.WithTransport(mock.NewTransport(conn)))
	if err != nil {
		log.Fatal(err)
	}

	defer func() { _ = s.Close() }()

	ctx := context.Background()

	if err := s.Connect(ctx, "alice", "secret"); err != nil {
		log.Fatal(err)
	}

	out, err := s.RunCommand(ctx, "uname")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Print(out)
	// Output: Linux
}

func ExampleSession_UploadFile() {
	dir, err := os.MkdirTemp("", "sshrs-example")
	if err != nil {
		log.Fatal(err)
	}

	defer func() { _ = os.RemoveAll(dir) }()

	local := filepath.Join(dir, "version.txt")
	_ = os.WriteFile(local, []byte("1234567890"), 0o600)

	conn := exampleConn()

	w := &mock.WriteChannel{}
	w.On("Write", testifymock.Anything).Return(mock.WriteAll, nil)
	w.On("Close").Return(nil)
	conn.On("OpenFileWrite", testifymock.Anything, "/srv/app/version.txt", int64(10), os.FileMode(0o644)).Return(w, nil)

	s, _ := sshrs.New("build.example.com", 22, sshrs.WithTransport(mock.NewTransport(conn)))
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_ = s.Connect(ctx, "alice", "secret")

	err = s.UploadFile(ctx, local, "/srv/app/version.txt",
		sshrs.WithPermissions(0o644),
		sshrs.WithProgress(func(current, total int64) {
			fmt.Printf("Transferred %d/%d bytes\n", current, total)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Remote content: %s\n", w.Data.String())

	// Output:
	// Transferred 10/10 bytes
	// Remote content: 1234567890
}

func ExampleSession_GetFile() {
	conn := exampleConn()

	r := mock.NewReadChannel(strings.NewReader("hello world"))
	r.On("Close").Return(nil)
	conn.On("OpenFileRead", testifymock.Anything, "/etc/motd").Return(r, &sshrs.FileStat{Size: 11, Mode: 0o644}, nil)

	s, _ := sshrs.New("build.example.com", 22, sshrs.WithTransport(mock.NewTransport(conn)))
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_ = s.Connect(ctx, "alice", "secret")

	data, stat, err := s.GetFile(ctx, "/etc/motd")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s (%d bytes, %v)\n", data, stat.Size, stat.Mode)
	// Output: hello world (11 bytes, -rw-r--r--)
}

func ExampleIsNotFound() {
	conn := exampleConn()
	conn.On("OpenFileRead", testifymock.Anything, "/missing").Return(nil, nil,
		&sshrs.TransferError{Op: sshrs.OpDownload, Path: "/missing", Reason: sshrs.ReasonNotFound, Err: os.ErrNotExist})

	s, _ := sshrs.New("build.example.com", 22, sshrs.WithTransport(mock.NewTransport(conn)))
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	_ = s.Connect(ctx, "alice", "secret")

	_, _, err := s.GetFile(ctx, "/missing")
	fmt.Println(sshrs.IsNotFound(err))
	// Output: true
}

func Example_sshConfigReader() {
	configContent := `
Host prod-db
  HostName 10.0.0.5
  User admin
  Port 2222
  IdentityFile ~/.ssh/prod_key.pem
  StrictHostKeyChecking accept-new
`

	target, cfg, err := ssh.NewFromSSHConfigReader("prod-db", strings.NewReader(configContent))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Host: %s\n", target.Host)
	fmt.Printf("User: %s\n", target.User)
	fmt.Printf("Port: %d\n", target.Port)
	fmt.Printf("Accept new host keys: %v\n", cfg.AcceptNewHostKeys)

	// Output:
	// Host: 10.0.0.5
	// User: admin
	// Port: 2222
	// Accept new host keys: true
}

func ExampleCmd() {
	cmd := sshrs.Cmd("sh").
		Arg("-c").
		Arg("echo $GREETING").
		Env("GREETING", "hello builder").
		Dir("/tmp").
		Build()

	fmt.Println(cmd.String())
	// Output: export GREETING='hello builder'; cd '/tmp' && sh -c 'echo $GREETING'
}
