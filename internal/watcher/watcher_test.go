package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOutputWatcher_NotifiesAudioCreate(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewOutputWatcher(testLogger())
	got := make(chan string, 4)
	w.OnChange(func(path string, event EventType) {
		if event == EventCreate {
			got <- path
		}
	})

	if err := w.Watch(ctx, dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "fixed.wav")
	if err := os.WriteFile(target, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case path := <-got:
		if path != target {
			t.Errorf("path = %s, want %s", path, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no create notification")
	}
}

func TestOutputWatcher_IgnoresNonAudio(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewOutputWatcher(testLogger())
	got := make(chan string, 4)
	w.OnChange(func(path string, event EventType) {
		got <- path
	})

	if err := w.Watch(ctx, dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case path := <-got:
		t.Errorf("unexpected notification for %s", path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestOutputWatcher_WatchMissingDir(t *testing.T) {
	w := NewOutputWatcher(testLogger())
	if err := w.Watch(context.Background(), "/nonexistent/output"); err == nil {
		t.Error("expected error for missing directory")
		w.Stop()
	}
}

func TestStubWatcher(t *testing.T) {
	w := NewStubWatcher(testLogger())
	w.OnChange(func(path string, event EventType) {})
	if err := w.Watch(context.Background(), "/anywhere"); err != nil {
		t.Errorf("stub Watch error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("stub Stop error = %v", err)
	}
}

func TestInterfaces(t *testing.T) {
	var _ Watcher = (*OutputWatcher)(nil)
	var _ Watcher = (*StubWatcher)(nil)
}
