package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dubalign/dubalign-agent/internal/events"
	"github.com/dubalign/dubalign-agent/internal/media"
	"github.com/dubalign/dubalign-agent/internal/report"
	"github.com/dubalign/dubalign-agent/internal/session"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port              int
	SessionService    session.SessionService
	Repository        session.Repository
	AudioServer       media.AudioService
	Monitor           *session.Monitor
	Bus               *events.Bus
	Reports           *report.Generator
	Logger            *slog.Logger
	StartTime         time.Time
	AgentID           string
	DefaultFrameRate  float64
	BackendConfigured bool
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
