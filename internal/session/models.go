// Package session owns review sessions and their repair attempts. A session
// pairs a master reference file with a dub under repair, carries the sync
// payload the backend detected, and remembers the editor's latest track
// layout.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dubalign/dubalign-agent/internal/reconcile"
)

const (
	StatusReview    = "review"
	StatusRepairing = "repairing"
	StatusRepaired  = "repaired"
	StatusFailed    = "failed"

	AttemptRunning   = "running"
	AttemptCompleted = "completed"
	AttemptFailed    = "failed"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrMissingSourcePath = errors.New("no source file path for repair")
	ErrRepairInFlight    = errors.New("a repair is already running for this session")
)

type Session struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	MasterPath   string              `json:"master_path"`
	DubPath      string              `json:"dub_path"`
	SampleRate   int                 `json:"sample_rate"`
	FrameRate    float64             `json:"frame_rate"`
	KeepDuration bool                `json:"keep_duration"`
	OutputPath   string              `json:"output_path,omitempty"`
	Sync         *reconcile.SyncData `json:"sync,omitempty"`
	Layout       []reconcile.Track   `json:"layout,omitempty"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Attempt is one repair submission and its outcome. RequestJSON is the exact
// body sent to the backend, kept for the QC report and postmortems.
type Attempt struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	RequestJSON string    `json:"request_json"`
	Success     bool      `json:"success"`
	OutputFile  string    `json:"output_file,omitempty"`
	OutputSize  int64     `json:"output_size,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
