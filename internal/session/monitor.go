package session

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dubalign/dubalign-agent/internal/events"
)

// Monitor periodically checks that every session's source files are still on
// disk. Editors keep sessions open for hours; a yanked drive should show up
// in the UI before a repair submission fails confusingly.
type Monitor struct {
	repo         Repository
	bus          *events.Bus
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool

	missing map[string]bool
}

func NewMonitor(repo Repository, bus *events.Bus, logger *slog.Logger) *Monitor {
	return &Monitor{
		repo:         repo,
		bus:          bus,
		logger:       logger,
		pollInterval: 30 * time.Second,
		missing:      make(map[string]bool),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.logger.Info("session monitor started")

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session monitor stopping")
			m.running.Store(false)
			return
		case <-ticker.C:
			if !m.paused.Load() {
				m.checkSources(ctx)
			}
		}
	}
}

func (m *Monitor) Pause() {
	m.paused.Store(true)
	m.logger.Info("session monitor paused")
}

func (m *Monitor) Resume() {
	m.paused.Store(false)
	m.logger.Info("session monitor resumed")
}

func (m *Monitor) IsPaused() bool {
	return m.paused.Load()
}

func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

func (m *Monitor) checkSources(ctx context.Context) {
	sessions, err := m.repo.ListSessions(ctx)
	if err != nil {
		m.logger.Error("failed to list sessions", "error", err)
		return
	}

	for _, sess := range sessions {
		missing := false
		for _, path := range []string{sess.MasterPath, sess.DubPath} {
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err != nil {
				missing = true
				m.logger.Warn("session source missing",
					"session_id", sess.ID,
					"path", path,
				)
			}
		}

		if m.missing[sess.ID] != missing {
			m.missing[sess.ID] = missing
			if m.bus != nil {
				m.bus.Publish(events.Event{
					Type:      events.TypeSessionUpdated,
					SessionID: sess.ID,
					Payload:   map[string]bool{"sources_missing": missing},
				})
			}
		}
	}
}
