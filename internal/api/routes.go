package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dubalign/dubalign-agent/internal/config"
	"github.com/dubalign/dubalign-agent/internal/repair"
	"github.com/dubalign/dubalign-agent/internal/session"
	"github.com/dubalign/dubalign-agent/internal/timecode"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/sessions", createSessionHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Delete("/sessions/{id}", deleteSessionHandler(cfg))
		r.Put("/sessions/{id}/layout", setLayoutHandler(cfg))
		r.Post("/sessions/{id}/repair", repairHandler(cfg))
		r.Get("/sessions/{id}/attempts", listAttemptsHandler(cfg))
		r.Get("/sessions/{id}/report", reportHandler(cfg))
		r.Get("/sessions/{id}/audio", audioHandler(cfg))

		r.Post("/offset/parse", parseOffsetHandler(cfg))

		r.Get("/events", eventsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, _ := cfg.SessionService.CountSessions(r.Context())
		running := cfg.SessionService.InFlightCount()

		state := "idle"
		if cfg.Monitor != nil && cfg.Monitor.IsPaused() {
			state = "paused"
		}
		if running > 0 {
			state = "repairing"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:             state,
			SessionsCount:     count,
			RepairsRunning:    running,
			BackendConfigured: cfg.BackendConfigured,
		})
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.DubPath == "" {
			WriteError(w, http.StatusBadRequest, "dub_path is required", "BAD_REQUEST")
			return
		}

		sess, err := cfg.SessionService.Create(r.Context(), session.CreateParams{
			Name:         req.Name,
			MasterPath:   req.MasterPath,
			DubPath:      req.DubPath,
			SampleRate:   req.SampleRate,
			FrameRate:    req.FrameRate,
			KeepDuration: req.KeepDuration,
			OutputPath:   req.OutputPath,
			Sync:         req.Sync,
		})
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, SessionToResponse(sess))
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.SessionService.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.SessionService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.SessionService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setLayoutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.SessionService.SetLayout(r.Context(), chi.URLParam(r, "id"), req.Tracks)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func repairHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RepairRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
				return
			}
		}

		attempt, err := cfg.SessionService.Repair(r.Context(), chi.URLParam(r, "id"), session.RepairOverrides{
			OutputPath:   req.OutputPath,
			KeepDuration: req.KeepDuration,
		})
		if err != nil {
			var backendErr *repair.BackendError
			switch {
			case errors.Is(err, session.ErrNotFound):
				WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			case errors.Is(err, session.ErrMissingSourcePath):
				WriteError(w, http.StatusBadRequest, err.Error(), "MISSING_SOURCE_PATH")
			case errors.Is(err, session.ErrRepairInFlight):
				WriteError(w, http.StatusConflict, err.Error(), "REPAIR_IN_FLIGHT")
			case errors.As(err, &backendErr):
				WriteError(w, http.StatusBadGateway, backendErr.Error(), "BACKEND_ERROR")
			default:
				WriteError(w, http.StatusBadGateway, err.Error(), "BACKEND_ERROR")
			}
			return
		}

		WriteJSON(w, http.StatusOK, AttemptToResponse(attempt))
	}
}

func listAttemptsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				limit = n
			}
		}

		attempts, err := cfg.SessionService.Attempts(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		resp := AttemptsResponse{Attempts: make([]AttemptResponse, len(attempts))}
		for i, a := range attempts {
			resp.Attempts[i] = AttemptToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func parseOffsetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ParseOffsetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		fps := req.FrameRate
		if fps <= 0 {
			fps = cfg.DefaultFrameRate
		}

		seconds, err := timecode.ParseOffset(req.Text, fps)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_OFFSET_FORMAT")
			return
		}

		WriteJSON(w, http.StatusOK, ParseOffsetResponse{
			Seconds:        seconds,
			Timecode:       timecode.FormatOffset(seconds, fps),
			TimecodeSigned: timecode.FormatOffsetSigned(seconds, fps),
		})
	}
}

func audioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.SessionService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}

		path := sess.DubPath
		switch role := r.URL.Query().Get("role"); role {
		case "", "dub":
		case "master":
			path = sess.MasterPath
		default:
			WriteError(w, http.StatusBadRequest, "role must be master or dub", "BAD_REQUEST")
			return
		}

		if path == "" {
			WriteError(w, http.StatusNotFound, "no file for requested role", "NOT_FOUND")
			return
		}

		if err := cfg.AudioServer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("audio serve error", "error", err, "session_id", sess.ID)
		}
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}
