package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/dubalign/dubalign-agent/internal/session"
)

type Tray struct {
	sessions session.SessionService
	monitor  *session.Monitor
	logger   *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	lastItem     *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	SessionService session.SessionService
	Monitor        *session.Monitor
	Logger         *slog.Logger
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		sessions: cfg.SessionService,
		monitor:  cfg.Monitor,
		logger:   cfg.Logger,
		onQuit:   cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("DubAlign")
	systray.SetTooltip("DubAlign Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Open QC sessions")
	t.sessionsItem.Disable()

	t.lastItem = systray.AddMenuItem("Last repair: none", "Most recent repair outcome")
	t.lastItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause source monitoring")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit DubAlign Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.monitor == nil {
		return
	}

	if t.monitor.IsPaused() {
		t.monitor.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.monitor.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if t.monitor != nil && t.monitor.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateSessionCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessionsItem == nil {
		return
	}
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", count))
}

// UpdateLastRepair reflects the latest attempt outcome in the menu.
func (t *Tray) UpdateLastRepair(attempt *session.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastItem == nil {
		return
	}
	if attempt == nil {
		t.lastItem.SetTitle("Last repair: none")
		return
	}
	if attempt.Success {
		t.lastItem.SetTitle(fmt.Sprintf("Last repair: ok (%s)", humanize.Bytes(uint64(attempt.OutputSize))))
	} else {
		t.lastItem.SetTitle("Last repair: failed")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
