// Package ssh implements the sshrs Transport over golang.org/x/crypto/ssh.
//
// Commands run on exec channels of a single *ssh.Client; file transfers use
// github.com/pkg/sftp on a fresh sftp subsystem channel per operation. Uploads are staged in a
// temporary sibling of the target and renamed into place, so a failed upload never leaves a
// partial file at the target path.
//
// Host keys are checked against known_hosts by default. With WithAcceptNewHostKeys, unknown
// hosts are trusted on first use and recorded; changed keys are always rejected.
//
// Usage:
//
//	s, err := ssh.NewSession("example.com", 22, ssh.WithKnownHosts(ssh.DefaultKnownHostsPath()))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.ConnectAgent(ctx, "deploy"); err != nil {
//		return err
//	}
package ssh
