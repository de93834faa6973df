package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()

	w, err := NewWatcher(path, 20*time.Millisecond, 200*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w
}

func expectChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	writeFile(t, path, "tasks: []\n")

	w := startWatcher(t, path)

	// A burst of writes collapses into one change.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("tasks: []\n# edit\n"), 0o600))
	}
	expectChange(t, w)

	select {
	case <-w.Changes():
		t.Fatal("burst should be reported once")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ReportsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	writeFile(t, path, "tasks: []\n")

	w := startWatcher(t, path)

	tmp := filepath.Join(dir, ".cadence.yaml.swp")
	writeFile(t, tmp, "tasks: []\n# replaced\n")
	require.NoError(t, os.Rename(tmp, path))
	expectChange(t, w)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadence.yaml")
	writeFile(t, path, "tasks: []\n")

	w := startWatcher(t, path)

	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	select {
	case <-w.Changes():
		t.Fatal("sibling file must not be reported")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "cadence.yaml"), time.Millisecond, time.Millisecond, zerolog.Nop())
	require.Error(t, err)
}
