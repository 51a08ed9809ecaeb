// Package watcher notices repaired output files landing in the configured
// output directory so the editor can be told without polling.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// audioExtensions limits notifications to files the editor can load.
var audioExtensions = map[string]bool{
	".wav":  true,
	".flac": true,
	".aif":  true,
	".aiff": true,
	".mp3":  true,
	".m4a":  true,
}

// OutputWatcher watches a single directory with fsnotify and invokes the
// callback for audio files. Subdirectories are not watched.
type OutputWatcher struct {
	logger   *slog.Logger
	callback func(path string, event EventType)
	fsw      *fsnotify.Watcher
}

func NewOutputWatcher(logger *slog.Logger) *OutputWatcher {
	return &OutputWatcher{logger: logger}
}

func (w *OutputWatcher) OnChange(callback func(path string, event EventType)) {
	w.callback = callback
}

func (w *OutputWatcher) Watch(ctx context.Context, path string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.logger.Info("watching output directory", "path", path)

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.handle(ev)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "error", err)
			}
		}
	}()

	return nil
}

func (w *OutputWatcher) handle(ev fsnotify.Event) {
	if !audioExtensions[strings.ToLower(filepath.Ext(ev.Name))] {
		return
	}

	var eventType EventType
	switch {
	case ev.Op.Has(fsnotify.Create):
		eventType = EventCreate
	case ev.Op.Has(fsnotify.Write):
		eventType = EventModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		eventType = EventDelete
	default:
		return
	}

	w.logger.Debug("output change", "path", ev.Name, "op", ev.Op.String())
	if w.callback != nil {
		w.callback(ev.Name, eventType)
	}
}

func (w *OutputWatcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

// StubWatcher is used when no output directory is configured.
type StubWatcher struct {
	logger   *slog.Logger
	callback func(path string, event EventType)
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error {
	w.logger.Info("output watching disabled (no output directory configured)")
	return nil
}

func (w *StubWatcher) Stop() error {
	return nil
}

func (w *StubWatcher) OnChange(callback func(path string, event EventType)) {
	w.callback = callback
}
