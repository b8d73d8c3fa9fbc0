package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	content := "ListenAddr = 127.0.0.1:0\n" +
		"Database = " + filepath.Join(dir, "badgr.db") + "\n" +
		"LogLevel = error\n" +
		"JWTSecret = 0123456789abcdef0123456789abcdef\n" +
		"ShutdownTimeoutSec = 2\n" +
		extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewRejectsShortSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("Database = "+filepath.Join(dir, "badgr.db")+"\nJWTSecret = short\n"), 0o600))

	_, err := New(context.Background(), path, BuildInfo{})
	assert.Error(t, err)
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("open file listing not available")
	}
	return len(entries)
}

func TestNewReleasesResourcesOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	content := "Database = " + filepath.Join(dir, "badgr.db") + "\n" +
		"LogDir = " + filepath.Join(dir, "log") + "\n" +
		"JWTSecret = short\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	before := openFDs(t)
	_, err := New(context.Background(), path, BuildInfo{})
	require.Error(t, err)
	assert.Equal(t, before, openFDs(t), "log file or database left open")

	entries, err := os.ReadDir(filepath.Join(dir, "log"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestNewAppliesProviderConfig(t *testing.T) {
	path := writeConfig(t, "\n[providers.facebook]\nenabled = false\n")

	application, err := New(context.Background(), path, BuildInfo{})
	require.NoError(t, err)
	defer func() { _ = application.Shutdown(context.Background()) }()

	assert.False(t, application.Dispatcher.IsSupported("facebook"))
	assert.True(t, application.Dispatcher.IsSupported("twitter"))
	assert.True(t, application.Dispatcher.IsSupported("linkedin"))
}

func TestStartServesUntilCancelled(t *testing.T) {
	path := writeConfig(t, "")

	application, err := New(context.Background(), path, BuildInfo{BinVersion: "test"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, application.Start(ctx))
	require.NotEmpty(t, application.Addr())

	resp, err := http.Get("http://" + application.Addr() + "/v1/earner/share/providers")
	require.NoError(t, err)
	var providers []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, providers, 4)

	cancel()
	done := make(chan error, 1)
	go func() { done <- application.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.NoError(t, application.Shutdown(context.Background()))
}
