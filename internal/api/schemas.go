package api

import (
	"time"

	"github.com/dubalign/dubalign-agent/internal/reconcile"
	"github.com/dubalign/dubalign-agent/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type StatusResponse struct {
	State             string `json:"state"`
	SessionsCount     int    `json:"sessions_count"`
	RepairsRunning    int    `json:"repairs_running"`
	BackendConfigured bool   `json:"backend_configured"`
	LastError         string `json:"last_error,omitempty"`
}

type CreateSessionRequest struct {
	Name         string              `json:"name,omitempty"`
	MasterPath   string              `json:"master_path,omitempty"`
	DubPath      string              `json:"dub_path"`
	SampleRate   int                 `json:"sample_rate,omitempty"`
	FrameRate    float64             `json:"frame_rate,omitempty"`
	KeepDuration bool                `json:"keep_duration,omitempty"`
	OutputPath   string              `json:"output_path,omitempty"`
	Sync         *reconcile.SyncData `json:"sync,omitempty"`
}

type SessionResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	MasterPath   string              `json:"master_path,omitempty"`
	DubPath      string              `json:"dub_path"`
	SampleRate   int                 `json:"sample_rate"`
	FrameRate    float64             `json:"frame_rate"`
	KeepDuration bool                `json:"keep_duration"`
	OutputPath   string              `json:"output_path,omitempty"`
	Sync         *reconcile.SyncData `json:"sync,omitempty"`
	Layout       []reconcile.Track   `json:"layout,omitempty"`
	Status       string              `json:"status"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type LayoutRequest struct {
	Tracks []reconcile.Track `json:"tracks"`
}

type ParseOffsetRequest struct {
	Text      string  `json:"text"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

// ParseOffsetResponse carries both display renderings: the QC view shows the
// sign only when negative, the repair view always shows it.
type ParseOffsetResponse struct {
	Seconds        float64 `json:"seconds"`
	Timecode       string  `json:"timecode"`
	TimecodeSigned string  `json:"timecode_signed"`
}

type RepairRequest struct {
	OutputPath   *string `json:"output_path,omitempty"`
	KeepDuration *bool   `json:"keep_duration,omitempty"`
}

type AttemptResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Success    bool   `json:"success"`
	OutputFile string `json:"output_file,omitempty"`
	OutputSize int64  `json:"output_size,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type AttemptsResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		Name:         s.Name,
		MasterPath:   s.MasterPath,
		DubPath:      s.DubPath,
		SampleRate:   s.SampleRate,
		FrameRate:    s.FrameRate,
		KeepDuration: s.KeepDuration,
		OutputPath:   s.OutputPath,
		Sync:         s.Sync,
		Layout:       s.Layout,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}

func AttemptToResponse(a *session.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:         a.ID,
		SessionID:  a.SessionID,
		Mode:       a.Mode,
		Status:     a.Status,
		Success:    a.Success,
		OutputFile: a.OutputFile,
		OutputSize: a.OutputSize,
		Error:      a.Error,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.Format(time.RFC3339),
	}
}
