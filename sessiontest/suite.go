// Package sessiontest provides a contract test suite for sshrs transports.
//
// A transport author points Verify at a reachable SSH server and a Transport configured to
// reach it; every contract opens its own Session.
package sessiontest

import (
	"context"
	"fmt"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xentrick/sshrs"
)

// Standard categories for grouping tests.
const (
	CategoryConnect = "connect"
	CategorySession = "session"
	CategoryExec    = "exec"
	CategoryFiles   = "files"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Helper()
	Context() context.Context
	TempDir() string
	Name() string
}

// Target describes the server the contracts run against.
type Target struct {
	Transport sshrs.Transport

	Host string
	Port int

	User        string
	Password    string
	BadPassword string

	// AgentUser is accepted by the identities of the agent the Transport uses.
	// Empty skips the agent contracts.
	AgentUser string

	// WritableDir is a remote directory the user may create files under.
	WritableDir string

	// ReadOnlyDir is an existing remote directory the user may not write to.
	// Empty skips the permission contracts.
	ReadOnlyDir string

	// ClosedPort is a port on Host with nothing listening. Zero skips the unreachable contract.
	ClosedPort int
}

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Prereq      func(target Target) (ok bool, reason string)
	Run         func(t T, target Target)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// AllContracts returns all test cases for the contract test suite.
func AllContracts() []TestCase {
	const initialCapacity = 32

	contracts := make([]TestCase, 0, initialCapacity)

	contracts = append(contracts, connectContracts()...)
	contracts = append(contracts, sessionContracts()...)
	contracts = append(contracts, execContracts()...)
	contracts = append(contracts, fileContracts()...)

	return contracts
}

// Verify is the standard Go test entry point for transport authors.
func Verify(t *testing.T, target Target) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			if tc.Prereq != nil {
				ok, reason := tc.Prereq(target)
				if !ok {
					t.Skipf("prereq unmet: %s", reason)
				}
			}

			tc.Run(t, target)
		})
	}
}

// newSession creates a disconnected Session for target and closes it when the test ends.
func newSession(t T, target Target) *sshrs.Session {
	t.Helper()

	s, err := sshrs.New(target.Host, target.Port, sshrs.WithTransport(target.Transport))
	require.NoError(t, err)

	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { _ = s.Close() })
	}

	return s
}

// connect returns an authenticated Session for target.
func connect(t T, target Target) *sshrs.Session {
	t.Helper()

	s := newSession(t, target)
	require.NoError(t, s.Connect(t.Context(), target.User, target.Password))

	return s
}

// remotePath returns a path under WritableDir unique to the running contract.
func remotePath(t T, target Target, parts ...string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	return path.Join(append([]string{target.WritableDir, "sshrs-test-" + name}, parts...)...)
}
