package sshrs

// Builder provides a fluent API for constructing Commands for Session.Run.
//
// Nothing runs locally: the built Command is rendered by Command.String into a single POSIX shell
// line (exports, then cd, then the quoted argv) that the remote host's shell executes.
//
//	res, err := s.Run(ctx, sshrs.Cmd("tar").Args("-czf", "backup.tgz", "data").Dir("/srv").Build())
type Builder struct {
	cmd *Command
}

// Cmd creates a new Builder for a command with the given name/path.
func Cmd(binary string) *Builder {
	return &Builder{
		cmd: &Command{
			Cmd: binary,
		},
	}
}

// Arg adds a single argument.
func (b *Builder) Arg(arg string) *Builder {
	b.cmd.Args = append(b.cmd.Args, arg)
	return b
}

// Args adds multiple arguments.
func (b *Builder) Args(args ...string) *Builder {
	b.cmd.Args = append(b.cmd.Args, args...)
	return b
}

// Env adds an environment variable, exported before the command runs remotely.
func (b *Builder) Env(key, value string) *Builder {
	b.cmd.Env = append(b.cmd.Env, key+"="+value)
	return b
}

// Dir sets the remote working directory; the command only runs if cd succeeds.
func (b *Builder) Dir(dir string) *Builder {
	b.cmd.Dir = dir
	return b
}

// Build returns the constructed Command.
func (b *Builder) Build() *Command {
	return b.cmd
}
