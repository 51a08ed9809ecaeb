package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dubalign/dubalign-agent/internal/api"
	"github.com/dubalign/dubalign-agent/internal/config"
	"github.com/dubalign/dubalign-agent/internal/db"
	"github.com/dubalign/dubalign-agent/internal/events"
	"github.com/dubalign/dubalign-agent/internal/logging"
	"github.com/dubalign/dubalign-agent/internal/media"
	"github.com/dubalign/dubalign-agent/internal/repair"
	"github.com/dubalign/dubalign-agent/internal/report"
	"github.com/dubalign/dubalign-agent/internal/session"
	"github.com/dubalign/dubalign-agent/internal/ui"
	"github.com/dubalign/dubalign-agent/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// Optional .env for local development; absence is fine.
	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if cfg.OutputDir() != "" {
		if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting dubalign agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	agentID, err := ensureAgentID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure agent ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   DUBALIGN AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Agent ID:   %-45s ║\n", agentID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	bus := events.NewBus()
	defer bus.Close()

	prober := media.NewProber(logger)
	audioServer := media.NewServer(logger)

	var repairClient repair.Client
	if cfg.BackendEnabled() {
		httpClient := repair.NewHTTPClient(cfg.BackendURL(), cfg.BackendToken(), logger)
		httpClient.SetAgentID(agentID)
		repairClient = httpClient
		logger.Info("repair backend configured", "base_url", cfg.BackendURL())
	} else {
		repairClient = repair.NewStubClient(logger)
		logger.Warn("no repair backend configured, submissions will fail")
	}

	sessionSvc := session.NewService(repo, repairClient, prober, bus, logger)
	sessionSvc.SetDefaults(cfg.FrameRate(), cfg.SampleRate())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := session.NewMonitor(repo, bus, logger)
	go monitor.Start(ctx)

	var outputWatcher watcher.Watcher
	if cfg.OutputDir() != "" {
		outputWatcher = watcher.NewOutputWatcher(logger)
	} else {
		outputWatcher = watcher.NewStubWatcher(logger)
	}
	outputWatcher.OnChange(func(path string, event watcher.EventType) {
		if event != watcher.EventCreate {
			return
		}
		logger.Info("repaired output detected", "path", logging.SanitizePath(path))
		bus.Publish(events.Event{
			Type:    events.TypeOutputDetected,
			Payload: map[string]string{"path": path},
		})
	})
	if err := outputWatcher.Watch(ctx, cfg.OutputDir()); err != nil {
		logger.Warn("output watcher unavailable", "error", err)
	}
	defer outputWatcher.Stop()

	apiServer := api.NewServer(api.ServerConfig{
		Port:              cfg.Port(),
		SessionService:    sessionSvc,
		Repository:        repo,
		AudioServer:       audioServer,
		Monitor:           monitor,
		Bus:               bus,
		Reports:           report.NewGenerator(logger),
		Logger:            logger,
		StartTime:         startTime,
		AgentID:           agentID,
		DefaultFrameRate:  cfg.FrameRate(),
		BackendConfigured: cfg.BackendEnabled(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			SessionService: sessionSvc,
			Monitor:        monitor,
			Logger:         logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go reflectEventsInTray(ctx, tray, repo, sessionSvc, bus)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// reflectEventsInTray keeps the tray menu in sync with bus events: repair
// outcome, session count, busy/idle status.
func reflectEventsInTray(ctx context.Context, tray *ui.Tray, repo session.Repository, svc session.SessionService, bus *events.Bus) {
	ch, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Type {
			case events.TypeRepairStarted:
				tray.UpdateStatus("Repairing")
			case events.TypeRepairCompleted, events.TypeRepairFailed:
				tray.UpdateStatus("Idle")
				if attempt, err := repo.LatestAttempt(ctx); err == nil {
					tray.UpdateLastRepair(attempt)
				}
			case events.TypeSessionUpdated:
				if count, err := svc.CountSessions(ctx); err == nil {
					tray.UpdateSessionCount(count)
				}
			}
		}
	}
}

func ensureAgentID(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "agent_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	agentID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "agent_id", agentID); err != nil {
		return "", err
	}

	return agentID, nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
