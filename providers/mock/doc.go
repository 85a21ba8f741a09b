// Package mock provides controllable implementations of the sshrs collaborator interfaces
// for testing purposes.
//
// Each type embeds testify's mock.Mock, so expectations are set with On and verified with
// AssertExpectations. Together they let a test script the remote host's behaviour without
// a network.
//
// Usage:
//
//	conn := new(mock.Conn)
//	ch := new(mock.ExecChannel)
//	ch.On("Stdout").Return(mock.Output("Linux\n"))
//	ch.On("Wait").Return(sshrs.ExitStatus{}, nil)
//	ch.On("Stderr").Return([]byte(nil))
//	ch.On("Close").Return(nil)
//	conn.On("OpenExec", testifymock.Anything, "uname").Return(ch, nil)
package mock
