package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dubalign/dubalign-agent/internal/reconcile"
	"github.com/dubalign/dubalign-agent/internal/repair"
	"github.com/dubalign/dubalign-agent/internal/session"
)

type fakeSessionService struct {
	sessions map[string]*session.Session
	attempts []*session.Attempt

	repairAttempt *session.Attempt
	repairErr     error
	inFlight      int
}

func (f *fakeSessionService) Create(ctx context.Context, params session.CreateParams) (*session.Session, error) {
	now := time.Now()
	sess := &session.Session{
		ID: "sess-new", Name: params.Name, DubPath: params.DubPath,
		MasterPath: params.MasterPath, SampleRate: 48000, FrameRate: 23.976,
		Sync: params.Sync, Status: session.StatusReview, CreatedAt: now, UpdatedAt: now,
	}
	if f.sessions == nil {
		f.sessions = make(map[string]*session.Session)
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeSessionService) Get(ctx context.Context, id string) (*session.Session, error) {
	if sess, ok := f.sessions[id]; ok {
		return sess, nil
	}
	return nil, session.ErrNotFound
}

func (f *fakeSessionService) List(ctx context.Context) ([]*session.Session, error) {
	out := make([]*session.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionService) Delete(ctx context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionService) SetLayout(ctx context.Context, id string, layout []reconcile.Track) (*session.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	sess.Layout = layout
	return sess, nil
}

func (f *fakeSessionService) Attempts(ctx context.Context, sessionID string, limit int) ([]*session.Attempt, error) {
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, session.ErrNotFound
	}
	return f.attempts, nil
}

func (f *fakeSessionService) Repair(ctx context.Context, id string, overrides session.RepairOverrides) (*session.Attempt, error) {
	return f.repairAttempt, f.repairErr
}

func (f *fakeSessionService) InFlightCount() int { return f.inFlight }

func (f *fakeSessionService) CountSessions(ctx context.Context) (int, error) {
	return len(f.sessions), nil
}

func testRouter(svc *fakeSessionService) http.Handler {
	return NewRouter(ServerConfig{
		Port:             0,
		SessionService:   svc,
		Repository:       &fakeRepo{token: "secret"},
		Logger:           testLogger(),
		StartTime:        time.Now(),
		AgentID:          "agent-1",
		DefaultFrameRate: 23.976,
	})
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer secret")
	return req
}

func seededService() *fakeSessionService {
	return &fakeSessionService{
		sessions: map[string]*session.Session{
			"sess-1": {
				ID: "sess-1", Name: "ep101", DubPath: "/media/dub.wav",
				SampleRate: 48000, FrameRate: 23.976, Status: session.StatusReview,
				CreatedAt: time.Now(), UpdatedAt: time.Now(),
			},
		},
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	router := testRouter(seededService())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.AgentID != "agent-1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	svc := seededService()
	svc.inFlight = 1
	router := testRouter(svc)

	req := authed(httptest.NewRequest("GET", "/status", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "repairing" {
		t.Errorf("state = %s, want repairing", resp.State)
	}
	if resp.SessionsCount != 1 || resp.RepairsRunning != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatus_Unauthorized(t *testing.T) {
	router := testRouter(seededService())

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateSession(t *testing.T) {
	router := testRouter(&fakeSessionService{})

	body, _ := json.Marshal(CreateSessionRequest{
		Name:    "ep102",
		DubPath: "/media/dub2.wav",
	})
	req := authed(httptest.NewRequest("POST", "/sessions", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp SessionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.DubPath != "/media/dub2.wav" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateSession_MissingDubPath(t *testing.T) {
	router := testRouter(&fakeSessionService{})

	req := authed(httptest.NewRequest("POST", "/sessions", bytes.NewReader([]byte(`{"name":"x"}`))))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	router := testRouter(seededService())

	req := authed(httptest.NewRequest("GET", "/sessions/nope", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetLayout(t *testing.T) {
	router := testRouter(seededService())

	body, _ := json.Marshal(LayoutRequest{Tracks: []reconcile.Track{
		{Name: "Master", SampleRate: 48000, Clips: []reconcile.Clip{{StartSamples: 0}}},
		{Name: "Dub_a0", SampleRate: 48000, Clips: []reconcile.Clip{{StartSamples: 24000}}},
	}})
	req := authed(httptest.NewRequest("PUT", "/sessions/sess-1/layout", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp SessionResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Layout) != 2 {
		t.Errorf("layout tracks = %d, want 2", len(resp.Layout))
	}
}

func TestRepair_Success(t *testing.T) {
	svc := seededService()
	svc.repairAttempt = &session.Attempt{
		ID: "att-1", SessionID: "sess-1", Mode: "standard",
		Status: session.AttemptCompleted, Success: true,
		OutputFile: "/out/fixed.wav", OutputSize: 1024,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	router := testRouter(svc)

	req := authed(httptest.NewRequest("POST", "/sessions/sess-1/repair", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp AttemptResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success || resp.OutputFile != "/out/fixed.wav" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRepair_Conflict(t *testing.T) {
	svc := seededService()
	svc.repairErr = session.ErrRepairInFlight
	router := testRouter(svc)

	req := authed(httptest.NewRequest("POST", "/sessions/sess-1/repair", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRepair_MissingSourcePath(t *testing.T) {
	svc := seededService()
	svc.repairErr = session.ErrMissingSourcePath
	router := testRouter(svc)

	req := authed(httptest.NewRequest("POST", "/sessions/sess-1/repair", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "MISSING_SOURCE_PATH" {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRepair_BackendError(t *testing.T) {
	svc := seededService()
	svc.repairErr = &repair.BackendError{StatusCode: 502}
	router := testRouter(svc)

	req := authed(httptest.NewRequest("POST", "/sessions/sess-1/repair", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != "Repair failed: 502" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestParseOffset(t *testing.T) {
	router := testRouter(seededService())

	body := []byte(`{"text":"00:01:29.068"}`)
	req := authed(httptest.NewRequest("POST", "/offset/parse", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp ParseOffsetResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Seconds != 89.068 {
		t.Errorf("seconds = %v, want 89.068", resp.Seconds)
	}
	if resp.Timecode != "00:01:29:01" {
		t.Errorf("timecode = %q, want 00:01:29:01", resp.Timecode)
	}
	if resp.TimecodeSigned != "+00:01:29:01" {
		t.Errorf("signed timecode = %q, want +00:01:29:01", resp.TimecodeSigned)
	}
}

func TestParseOffset_Invalid(t *testing.T) {
	router := testRouter(seededService())

	body := []byte(`{"text":"not a number"}`)
	req := authed(httptest.NewRequest("POST", "/offset/parse", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "INVALID_OFFSET_FORMAT" {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestListAttempts(t *testing.T) {
	svc := seededService()
	svc.attempts = []*session.Attempt{
		{ID: "att-1", SessionID: "sess-1", Mode: "standard", Status: session.AttemptCompleted},
	}
	router := testRouter(svc)

	req := authed(httptest.NewRequest("GET", "/sessions/sess-1/attempts", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp AttemptsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Attempts) != 1 || resp.Attempts[0].ID != "att-1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDeleteSession(t *testing.T) {
	router := testRouter(seededService())

	req := authed(httptest.NewRequest("DELETE", "/sessions/sess-1", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestAudio_BadRole(t *testing.T) {
	router := testRouter(seededService())

	req := authed(httptest.NewRequest("GET", "/sessions/sess-1/audio?role=mixdown", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAudio_NoMasterPath(t *testing.T) {
	router := testRouter(seededService())

	req := authed(httptest.NewRequest("GET", "/sessions/sess-1/audio?role=master", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
