package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dubalign/dubalign-agent/internal/events"
	"github.com/dubalign/dubalign-agent/internal/media"
	"github.com/dubalign/dubalign-agent/internal/reconcile"
	"github.com/dubalign/dubalign-agent/internal/repair"
	"github.com/dubalign/dubalign-agent/internal/timecode"
)

type SessionService interface {
	Create(ctx context.Context, params CreateParams) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	Delete(ctx context.Context, id string) error
	SetLayout(ctx context.Context, id string, layout []reconcile.Track) (*Session, error)
	Attempts(ctx context.Context, sessionID string, limit int) ([]*Attempt, error)
	Repair(ctx context.Context, id string, overrides RepairOverrides) (*Attempt, error)
	InFlightCount() int
	CountSessions(ctx context.Context) (int, error)
}

type CreateParams struct {
	Name         string
	MasterPath   string
	DubPath      string
	SampleRate   int
	FrameRate    float64
	KeepDuration bool
	OutputPath   string
	Sync         *reconcile.SyncData
}

// RepairOverrides lets a single submission override the session's stored
// output path and keep-duration flag.
type RepairOverrides struct {
	OutputPath   *string
	KeepDuration *bool
}

type Service struct {
	repo   Repository
	client repair.Client
	prober media.Prober
	bus    *events.Bus
	logger *slog.Logger

	defaultFrameRate  float64
	defaultSampleRate int

	// One repair per session at a time; the editor's disabled submit button
	// is advisory, this guard is authoritative.
	inFlight sync.Map
}

func NewService(repo Repository, client repair.Client, prober media.Prober, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		repo:              repo,
		client:            client,
		prober:            prober,
		bus:               bus,
		logger:            logger,
		defaultFrameRate:  timecode.DefaultFrameRate,
		defaultSampleRate: reconcile.DefaultSampleRate,
	}
}

// SetDefaults overrides the fallback frame rate and sample rate applied to
// sessions that do not declare their own.
func (s *Service) SetDefaults(frameRate float64, sampleRate int) {
	if frameRate > 0 {
		s.defaultFrameRate = frameRate
	}
	if sampleRate > 0 {
		s.defaultSampleRate = sampleRate
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Session, error) {
	if strings.TrimSpace(params.DubPath) == "" {
		return nil, fmt.Errorf("dub_path is required")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = params.DubPath
	}

	sampleRate := params.SampleRate
	if sampleRate <= 0 {
		// Probing failure is non-fatal; the editor-supplied or default rate
		// stands in.
		if s.prober != nil {
			if info, err := s.prober.Probe(ctx, params.DubPath); err == nil {
				sampleRate = info.SampleRate
			} else {
				s.logger.Warn("probe failed, using default sample rate",
					"path", params.DubPath, "error", err)
			}
		}
	}
	if sampleRate <= 0 {
		sampleRate = s.defaultSampleRate
	}

	frameRate := params.FrameRate
	if frameRate <= 0 {
		frameRate = s.defaultFrameRate
	}

	now := time.Now()
	sess := &Session{
		ID:           NewID(),
		Name:         name,
		MasterPath:   params.MasterPath,
		DubPath:      params.DubPath,
		SampleRate:   sampleRate,
		FrameRate:    frameRate,
		KeepDuration: params.KeepDuration,
		OutputPath:   params.OutputPath,
		Sync:         params.Sync,
		Status:       StatusReview,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		"session_id", sess.ID,
		"dub_path", sess.DubPath,
		"sample_rate", sess.SampleRate,
		"frame_rate", sess.FrameRate,
	)
	s.publish(events.TypeSessionUpdated, sess.ID, "")
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.repo.ListSessions(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, id)
}

func (s *Service) SetLayout(ctx context.Context, id string, layout []reconcile.Track) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSessionLayout(ctx, id, layout); err != nil {
		return nil, err
	}
	sess.Layout = layout

	s.logger.Debug("layout updated", "session_id", id, "track_count", len(layout))
	s.publish(events.TypeSessionUpdated, id, "")
	return sess, nil
}

func (s *Service) Attempts(ctx context.Context, sessionID string, limit int) ([]*Attempt, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListAttempts(ctx, sessionID, limit)
}

func (s *Service) CountSessions(ctx context.Context) (int, error) {
	return s.repo.CountSessions(ctx)
}

func (s *Service) InFlightCount() int {
	count := 0
	s.inFlight.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Repair builds the request for the session's current state, submits it to
// the backend and records the outcome as an Attempt. The exchange is
// deliberately bare: one request, no retry, no timeout beyond ctx.
func (s *Service) Repair(ctx context.Context, id string, overrides RepairOverrides) (*Attempt, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(sess.DubPath) == "" {
		return nil, ErrMissingSourcePath
	}

	if _, loaded := s.inFlight.LoadOrStore(id, struct{}{}); loaded {
		return nil, ErrRepairInFlight
	}
	defer s.inFlight.Delete(id)

	outputPath := sess.OutputPath
	if overrides.OutputPath != nil {
		outputPath = *overrides.OutputPath
	}
	keepDuration := sess.KeepDuration
	if overrides.KeepDuration != nil {
		keepDuration = *overrides.KeepDuration
	}

	var syncData reconcile.SyncData
	if sess.Sync != nil {
		syncData = *sess.Sync
	}

	req := reconcile.BuildRequest(sess.DubPath, syncData, sess.Layout, outputPath, keepDuration)

	requestJSON, err := marshalRequest(req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt := &Attempt{
		ID:          NewID(),
		SessionID:   id,
		Mode:        string(req.Mode),
		Status:      AttemptRunning,
		RequestJSON: requestJSON,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	s.repo.UpdateSessionStatus(ctx, id, StatusRepairing)

	s.logger.Info("repair started",
		"session_id", id,
		"attempt_id", attempt.ID,
		"mode", attempt.Mode,
	)
	s.publish(events.TypeRepairStarted, id, attempt.ID)

	var resp *repair.Response
	var callErr error
	switch req.Mode {
	case reconcile.ModePerChannel:
		resp, callErr = s.client.RepairPerChannel(ctx, *req.PerChannel)
	default:
		resp, callErr = s.client.RepairStandard(ctx, *req.Standard)
	}

	if callErr != nil {
		attempt.Status = AttemptFailed
		attempt.Error = callErr.Error()
	} else if !resp.Success {
		attempt.Status = AttemptFailed
		attempt.Error = resp.Error
	} else {
		attempt.Status = AttemptCompleted
		attempt.Success = true
		attempt.OutputFile = resp.OutputFile
		attempt.OutputSize = resp.OutputSize
	}

	if err := s.repo.FinalizeAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record attempt outcome", "attempt_id", attempt.ID, "error", err)
	}

	if attempt.Success {
		s.repo.UpdateSessionStatus(ctx, id, StatusRepaired)
		s.logger.Info("repair completed",
			"session_id", id,
			"attempt_id", attempt.ID,
			"output_file", attempt.OutputFile,
			"output_size", attempt.OutputSize,
		)
		s.publish(events.TypeRepairCompleted, id, attempt.ID)
	} else {
		s.repo.UpdateSessionStatus(ctx, id, StatusFailed)
		s.logger.Warn("repair failed",
			"session_id", id,
			"attempt_id", attempt.ID,
			"error", attempt.Error,
		)
		s.publish(events.TypeRepairFailed, id, attempt.ID)
	}

	return attempt, callErr
}

func marshalRequest(req reconcile.Request) (string, error) {
	var body interface{}
	if req.Mode == reconcile.ModePerChannel {
		body = req.PerChannel
	} else {
		body = req.Standard
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal repair request: %w", err)
	}
	return string(data), nil
}

func (s *Service) publish(eventType, sessionID, attemptID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, SessionID: sessionID, AttemptID: attemptID})
}
