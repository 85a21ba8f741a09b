package sshrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Cmd(t *testing.T) {
	t.Parallel()

	cmd := Cmd("ls").
		Arg("-l").
		Arg("-a").
		Dir("/tmp").
		Env("FOO", "bar").
		Build()

	assert.Equal(t, "ls", cmd.Cmd)
	assert.Equal(t, []string{"-l", "-a"}, cmd.Args)
	assert.Equal(t, "/tmp", cmd.Dir)
	assert.Equal(t, []string{"FOO=bar"}, cmd.Env)
	assert.Equal(t, "export FOO='bar'; cd '/tmp' && ls -l -a", cmd.String())
}

func TestBuilder_Args(t *testing.T) {
	t.Parallel()

	cmd := Cmd("echo").
		Args("hello", "world").
		Build()

	assert.Equal(t, "echo", cmd.Cmd)
	assert.Equal(t, []string{"hello", "world"}, cmd.Args)
}
