package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xentrick/sshrs"
	"github.com/xentrick/sshrs/internal/config"
	sshtransport "github.com/xentrick/sshrs/providers/ssh"
)

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run -- COMMAND...",
		Short: "Run a command and print its standard output",
		Long:  "Runs a command and prints its standard output. A non-zero exit status is not an error; use exec to see it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.connect(cmd)
			if err != nil {
				return err
			}

			defer func() { _ = s.Close() }()

			out, err := s.RunCommand(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			_, err = io.WriteString(cmd.OutOrStdout(), out)

			return err
		},
	}
}

func newExecCmd(f *flags) *cobra.Command {
	var shellWords bool

	cmd := &cobra.Command{
		Use:   "exec -- COMMAND...",
		Short: "Run a command and exit with its exit status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.connect(cmd)
			if err != nil {
				return err
			}

			defer func() { _ = s.Close() }()

			var res *sshrs.CommandResult

			if shellWords {
				c, perr := sshrs.ParseCommand(strings.Join(args, " "))
				if perr != nil {
					return perr
				}

				res, err = s.Run(cmd.Context(), c)
			} else {
				res, err = s.Exec(cmd.Context(), strings.Join(args, " "))
			}

			if err != nil {
				return err
			}

			_, _ = io.WriteString(cmd.OutOrStdout(), res.Stdout)
			_, _ = cmd.ErrOrStderr().Write(res.Stderr)

			if res.Failed() {
				if res.ExitSignal != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("killed by signal "+res.ExitSignal))
				}

				return &exitCodeError{code: exitCode(res)}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&shellWords, "quote", false, "Split the arguments into words and quote each one for the remote shell")

	return cmd
}

// exitCode maps a result to a local exit code the way shells do for signals.
func exitCode(res *sshrs.CommandResult) int {
	if res.ExitSignal != "" || res.ExitStatus < 0 {
		return 255
	}

	return res.ExitStatus
}

func newUploadCmd(f *flags) *cobra.Command {
	var (
		mode  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "upload LOCAL REMOTE",
		Short: "Upload a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []sshrs.FileOption

			if mode != "" {
				m, err := strconv.ParseUint(mode, 8, 32)
				if err != nil {
					return fmt.Errorf("invalid --mode %q: %w", mode, err)
				}

				opts = append(opts, sshrs.WithPermissions(os.FileMode(m)))
			}

			if !quiet {
				opts = append(opts, sshrs.WithProgress(progress(cmd.ErrOrStderr(), "upload")))
			}

			s, err := f.connect(cmd)
			if err != nil {
				return err
			}

			defer func() { _ = s.Close() }()

			start := time.Now()

			if err := s.UploadFile(cmd.Context(), args[0], args[1], opts...); err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), checkStyle.Render(fmt.Sprintf("uploaded %s to %s:%s in %v",
					args[0], s.Addr(), args[1], time.Since(start).Round(time.Millisecond))))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Remote permission bits in octal (default: the local file's)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress output")

	return cmd
}

func newGetCmd(f *flags) *cobra.Command {
	var (
		maxSize int64
		stat    bool
	)

	cmd := &cobra.Command{
		Use:   "get REMOTE [LOCAL]",
		Short: "Download a remote file to LOCAL or standard output",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.connect(cmd)
			if err != nil {
				return err
			}

			defer func() { _ = s.Close() }()

			var opts []sshrs.FileOption
			if maxSize > 0 {
				opts = append(opts, sshrs.WithMaxSize(maxSize))
			}

			data, st, err := s.GetFile(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}

			if stat {
				printStat(cmd.ErrOrStderr(), args[0], st)
			}

			if len(args) == 1 {
				_, err = cmd.OutOrStdout().Write(data)

				return err
			}

			if err := os.WriteFile(args[1], data, st.Mode.Perm()); err != nil {
				return &sshrs.LocalIOError{Op: "write", Path: args[1], Err: err}
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "Refuse files larger than this many bytes")
	cmd.Flags().BoolVar(&stat, "stat", false, "Print the remote file's metadata to standard error")

	return cmd
}

func printStat(w io.Writer, name string, st *sshrs.FileStat) {
	fmt.Fprintln(w, titleStyle.Render(name))
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  size   %d", st.Size)))
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  mode   %s", st.Mode)))
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  owner  %d:%d", st.UID, st.GID)))
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  mtime  %s", st.ModTime.Format(time.RFC3339))))

	if !st.AccessTime.IsZero() {
		fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("  atime  %s", st.AccessTime.Format(time.RFC3339))))
	}
}

// progress returns a callback that redraws a single status line.
func progress(w io.Writer, verb string) sshrs.ProgressFunc {
	return func(current, total int64) {
		pct := 100
		if total > 0 {
			pct = int(current * 100 / total)
		}

		fmt.Fprintf(w, "\r%s", dimStyle.Render(fmt.Sprintf("%s %d/%d bytes (%d%%)", verb, current, total, pct)))

		if current >= total {
			fmt.Fprintln(w)
		}
	}
}

func newIdentitiesCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List the keys held by the SSH agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket := os.Getenv("SSH_AUTH_SOCK")

			cfg, err := config.Load(f.configPath)
			if err == nil && cfg.Auth.AgentSocket != "" {
				socket = cfg.Auth.AgentSocket
			}

			ids, err := sshtransport.Identities(cmd.Context(), socket)
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("the agent has no identities"))

				return nil
			}

			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", titleStyle.Render(id.Type), id.Fingerprint, infoStyle.Render(id.Comment))
			}

			return nil
		},
	}
}

func newKeepaliveCmd(f *flags) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Hold a session open, sending keepalive requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.connect(cmd)
			if err != nil {
				return err
			}

			defer func() { _ = s.Close() }()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for i := 0; count <= 0 || i < count; i++ {
				start := time.Now()

				if err := s.Keepalive(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), checkStyle.Render(fmt.Sprintf("keepalive %d: %v", i+1, time.Since(start).Round(time.Microsecond))))

				if count > 0 && i == count-1 {
					break
				}

				select {
				case <-ticker.C:
				case <-cmd.Context().Done():
					return nil
				}
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Time between keepalives")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many keepalives (0: until interrupted)")

	return cmd
}

func newLoginCmd(f *flags) *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the password for user@host in the OS keyring",
		Long:  "Reads the password from standard input and stores it in the OS keyring for use with auth.use_keyring.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			host, _, username, _, err := target(cfg)
			if err != nil {
				return err
			}

			if forget {
				return config.DeletePassword(username, host)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "password for %s@%s: ", username, host)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}

			if err := config.StorePassword(username, host, password); err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), checkStyle.Render("stored in keyring"))

			return nil
		},
	}

	cmd.Flags().BoolVar(&forget, "forget", false, "Remove the stored password instead")

	return cmd
}
