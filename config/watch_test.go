package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.toml")
	if err := os.WriteFile(path, []byte("[[publish]]\ncom-id = 1\n"), 0o644); err != nil {
		t.Fatalf("writing initial batch: %v", err)
	}

	reloaded := make(chan Batch, 1)
	w, err := NewWatcher(path, func(b Batch) { reloaded <- b })
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	time.Sleep(50 * time.Millisecond) // let the watcher's goroutine start listening

	if err := os.WriteFile(path, []byte("[[publish]]\ncom-id = 2\n"), 0o644); err != nil {
		t.Fatalf("rewriting batch: %v", err)
	}

	select {
	case b := <-reloaded:
		if len(b.Publishes) != 1 || b.Publishes[0].ComID != 2 {
			t.Errorf("expected reload to see com-id=2, got %+v", b.Publishes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
