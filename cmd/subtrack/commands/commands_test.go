package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/subtrack/internal/config"
	"github.com/wondertwin-ai/subtrack/internal/session"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
	"github.com/wondertwin-ai/subtrack/internal/twin/api"
	"github.com/wondertwin-ai/subtrack/internal/twin/store"
	"github.com/wondertwin-ai/subtrack/pkg/twincore"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type result struct {
	stdout string
	stderr string
	err    error
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newService starts a subscription twin and points the config file at a
// fresh temporary path.
func newService(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	t.Setenv(config.PathEnv, filepath.Join(t.TempDir(), "config.yaml"))

	twin := twincore.NewWithLogger(&twincore.Config{Name: "twin-subscriptions"}, quiet())
	mem := store.New()
	api.NewHandler(mem, twin.Middleware(), "").Routes(twin.Router)
	srv := httptest.NewServer(twin)
	t.Cleanup(srv.Close)
	return srv, mem
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	root := NewRoot(session.WithLogger(quiet()))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

var idPattern = regexp.MustCompile(`ID: (sub_[0-9a-z]+)`)

func TestListEmpty(t *testing.T) {
	srv, _ := newService(t)
	res := run(t, "list", "--base-url", srv.URL)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No subscriptions yet.")
}

func TestAddListEditDelete(t *testing.T) {
	srv, mem := newService(t)

	res := run(t, "add", "--base-url", srv.URL,
		"--name", "Spotify", "--price", "9.99", "--category", "Music",
		"--holder", "Ana", "--email", "ana@example.com")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Subscription added successfully!")
	m := idPattern.FindStringSubmatch(res.stdout)
	require.Len(t, m, 2, res.stdout)
	id := m[1]

	res = run(t, "list", "--base-url", srv.URL)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Spotify")
	assert.Contains(t, res.stdout, "9.99")
	assert.Contains(t, res.stdout, "TOTAL")

	res = run(t, "edit", id, "--base-url", srv.URL, "--price", "10.49")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Subscription updated successfully!")

	res = run(t, "list", "--json", "--base-url", srv.URL)
	require.NoError(t, res.err)
	var items []subscription.Subscription
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &items))
	require.Len(t, items, 1)
	assert.Equal(t, subscription.Price(1049), items[0].Price)
	assert.Equal(t, "Music", items[0].Category, "edit keeps fields without flags")

	res = run(t, "delete", id, "--base-url", srv.URL)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Subscription deleted successfully!")
	assert.Empty(t, mem.List())
}

func TestAddValidation(t *testing.T) {
	srv, mem := newService(t)

	res := run(t, "add", "--base-url", srv.URL, "--price", "1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "name is required")
	assert.False(t, errors.As(res.err, new(errShown)))

	res = run(t, "add", "--base-url", srv.URL, "--name", "X", "--price", "abc")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid price")

	assert.Empty(t, mem.List())
}

func TestEditErrors(t *testing.T) {
	srv, _ := newService(t)

	res := run(t, "edit", "sub_missing", "--base-url", srv.URL)
	require.ErrorContains(t, res.err, "nothing to change")

	res = run(t, "edit", "sub_missing", "--base-url", srv.URL, "--name", "Y")
	require.ErrorContains(t, res.err, "subscription sub_missing not found")
}

func TestDeleteFailureIsReported(t *testing.T) {
	srv, _ := newService(t)

	res := run(t, "delete", "sub_missing", "--base-url", srv.URL)
	require.Error(t, res.err)
	assert.True(t, errors.As(res.err, new(errShown)))
	assert.Contains(t, res.stderr, "Failed to delete subscription: Subscription with ID sub_missing not found")
}

func TestListUnreachable(t *testing.T) {
	srv, _ := newService(t)
	url := srv.URL
	srv.Close()

	res := run(t, "list", "--base-url", url)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Failed to load subscriptions: could not reach the subscription service")
}

func TestInvalidBaseURL(t *testing.T) {
	newService(t)
	res := run(t, "list", "--base-url", "ftp://example.com")
	require.Error(t, res.err)
}

func TestConfigPrint(t *testing.T) {
	newService(t)
	t.Setenv("SUBTRACK_AUTH_SECRET", "hunter2")

	res := run(t, "config", "--base-url", "http://example.com:9000")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "base_url: http://example.com:9000")
	assert.Contains(t, res.stdout, "********")
	assert.NotContains(t, res.stdout, "hunter2")
}

func TestConfigSave(t *testing.T) {
	newService(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	res := run(t, "config", "save", "--config", path, "--base-url", "http://example.com:9000")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:9000", cfg.BaseURL)
}

func TestConfigEnv(t *testing.T) {
	newService(t)
	res := run(t, "config", "env")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "SUBTRACK_API_BASE_URL")
	assert.Contains(t, res.stdout, "SUBTRACK_NOTICE_DURATION")
}
