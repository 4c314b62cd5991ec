package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/authority"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/testutil"
)

// unreachable is a remote that refuses connections immediately.
const unreachable = "http://127.0.0.1:1"

var t0 = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

// cliEnv runs commands against one database with deterministic hooks.
type cliEnv struct {
	t      *testing.T
	dbPath string
	remote string
	clock  *testutil.FakeClock
	refs   engine.RefGenerator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		t:      t,
		dbPath: filepath.Join(t.TempDir(), "pos.db"),
		remote: unreachable,
		clock:  testutil.NewFakeClock(t0, time.Minute),
	}
}

// withAuthority points the env at a live in-memory authority.
func (e *cliEnv) withAuthority() *authority.MemoryLedger {
	e.t.Helper()
	ledger := authority.NewMemoryLedger()
	srv := httptest.NewServer(authority.NewRouter(ledger, zap.NewNop()))
	e.t.Cleanup(srv.Close)
	e.remote = srv.URL
	return ledger
}

func (e *cliEnv) options() *RootOptions {
	return &RootOptions{
		Now:    e.clock.Now,
		Refs:   e.refs,
		Logger: zap.NewNop(),
	}
}

// run executes the root command with args and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	return e.runContext(context.Background(), args...)
}

func (e *cliEnv) runContext(ctx context.Context, args ...string) (string, error) {
	e.t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	cmd := newRootCommand(e.options())
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--remote", e.remote}, args...))

	err := cmd.ExecuteContext(ctx)
	if errOut.Len() > 0 {
		e.t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

// mustRun executes args and fails the test on error.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "output: %s", out)
	return out
}
