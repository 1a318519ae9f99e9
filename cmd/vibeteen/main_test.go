package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeteen/vibe-teen/internal/config"
	"github.com/vibeteen/vibe-teen/internal/identity"
	"github.com/vibeteen/vibe-teen/internal/inspiration"
	"github.com/vibeteen/vibe-teen/internal/server"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "mural.db")
	cfg.JWTSecret = "cli-test-secret-0123456789"

	mission := inspiration.ProviderFunc(func(context.Context) (string, error) { return "Sorria para um estranho", nil })
	srv, err := server.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)),
		server.Options{Location: time.UTC, Mission: mission})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL
}

func TestSpiralCmd(t *testing.T) {
	out, err := run(t, "spiral", "-n", "3", "--cell-size", "2")
	require.NoError(t, err)
	assert.Equal(t, "0\t0\t0\n1\t2\t0\n2\t2\t2\n", out)

	_, err = run(t, "spiral", "--count=-1")
	assert.Error(t, err)
}

func TestConfigInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "vibeteen.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Feed, cfg.Feed)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err, "an existing file is never overwritten")
}

func TestClientCommands(t *testing.T) {
	url := startServer(t)
	idPath := filepath.Join(t.TempDir(), "identity.json")

	_, err := run(t, "--identity", idPath, "act", "prayed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")

	out, err := run(t, "--identity", idPath, "--server", url, "signup", "--first", "Ana", "--email", "ana@example.com", "--pin", "1357")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")

	prof, err := identity.NewProvider(identity.NewFileKV(idPath)).Current()
	require.NoError(t, err)
	assert.Equal(t, url, prof.Server)
	assert.NotEmpty(t, prof.Token)

	// The server comes from the stored profile from here on.
	serverURL = ""
	out, err = run(t, "--identity", idPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "Visitante")

	_, err = run(t, "--identity", idPath, "act", "danced")
	assert.Error(t, err)

	out, err = run(t, "--identity", idPath, "act", "cuidei", "--for", "Vó Rita")
	require.NoError(t, err)
	assert.Contains(t, out, "registrado")

	require.Eventually(t, func() bool {
		out, err := run(t, "--identity", idPath, "stats")
		return err == nil && strings.Contains(out, "suas ações: 1")
	}, 2*time.Second, 20*time.Millisecond)

	out, err = run(t, "--identity", idPath, "watch", "--once", "--clear=false")
	require.NoError(t, err)
	assert.Contains(t, out, "mural · 1 ações")
	assert.Contains(t, out, "progresso 1%")

	out, err = run(t, "--identity", idPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	_, err = run(t, "--identity", idPath, "whoami")
	assert.Error(t, err)
}
