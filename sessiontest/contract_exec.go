package sessiontest

import (
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

const exitCode = 13

func execContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryExec,
			Name:        "echo",
			Description: "RunCommand returns the command's complete standard output",
			Run: func(t T, target Target) {
				s := connect(t, target)

				out, err := s.RunCommand(t.Context(), "echo hello")
				require.NoError(t, err)
				assert.Equal(t, "hello\n", out)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "empty-output",
			Description: "A command with no output yields an empty string",
			Run: func(t T, target Target) {
				s := connect(t, target)

				out, err := s.RunCommand(t.Context(), "true")
				require.NoError(t, err)
				assert.Empty(t, out)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "large-output",
			Description: "Output larger than a channel window arrives in full",
			Run: func(t T, target Target) {
				s := connect(t, target)

				out, err := s.RunCommand(t.Context(), "i=0; while [ $i -lt 20000 ]; do echo line-$i; i=$((i+1)); done")
				require.NoError(t, err)

				lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
				require.Len(t, lines, 20000)
				assert.Equal(t, "line-19999", lines[len(lines)-1])
			},
		},
		{
			Category:    CategoryExec,
			Name:        "nonzero-exit-not-error",
			Description: "A non-zero exit is reported in the result, not as an error",
			Run: func(t T, target Target) {
				s := connect(t, target)

				_, err := s.RunCommand(t.Context(), "exit 13")
				require.NoError(t, err)

				res, err := s.Exec(t.Context(), "echo oops >&2; exit 13")
				require.NoError(t, err)
				assert.Equal(t, exitCode, res.ExitStatus)
				assert.Equal(t, "oops\n", string(res.Stderr))

				var exitErr *sshrs.ExitError
				require.ErrorAs(t, res.Err(), &exitErr)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "sequential-commands",
			Description: "Each command runs on a fresh channel of the same connection",
			Run: func(t T, target Target) {
				s := connect(t, target)

				for _, word := range []string{"one", "two", "three"} {
					out, err := s.RunCommand(t.Context(), "echo "+word)
					require.NoError(t, err)
					assert.Equal(t, word+"\n", out)
				}
			},
		},
		{
			Category:    CategoryExec,
			Name:        "command-quoting",
			Description: "Arguments rendered by Command survive the remote shell unchanged",
			Run: func(t T, target Target) {
				s := connect(t, target)

				res, err := s.Run(t.Context(), sshrs.Cmd("printf").Args("%s|", "it's", "a; b", "$HOME").Build())
				require.NoError(t, err)
				assert.Equal(t, "it's|a; b|$HOME|", res.Stdout)
			},
		},
		{
			Category:    CategoryExec,
			Name:        "invalid-utf8",
			Description: "Output that is not UTF-8 fails with *DecodingError",
			Run: func(t T, target Target) {
				s := connect(t, target)

				_, err := s.RunCommand(t.Context(), `printf 'ok\377'`)

				var decErr *sshrs.DecodingError
				require.ErrorAs(t, err, &decErr)
				assert.Equal(t, 2, decErr.Offset)
			},
		},
	}
}
