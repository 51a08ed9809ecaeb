package repair

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_RepairStandard_Success(t *testing.T) {
	var receivedReq StandardRequest
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/repair/standard" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		receivedAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedReq)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Response{
			Success:    true,
			OutputFile: "/out/dub_repaired.wav",
			OutputSize: 1024,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	resp, err := client.RepairStandard(context.Background(), StandardRequest{
		FilePath:      "/media/dub.wav",
		OffsetSeconds: -0.125,
		KeepDuration:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success {
		t.Error("expected success response")
	}
	if resp.OutputFile != "/out/dub_repaired.wav" {
		t.Errorf("output_file = %q", resp.OutputFile)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", receivedAuth)
	}
	if receivedReq.OffsetSeconds != -0.125 {
		t.Errorf("offset_seconds = %v, want -0.125", receivedReq.OffsetSeconds)
	}
	if !receivedReq.KeepDuration {
		t.Error("keep_duration not sent")
	}
}

func TestHTTPClient_RepairPerChannel_Success(t *testing.T) {
	var receivedReq PerChannelRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/repair/per-channel" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedReq)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Response{Success: true, OutputFile: "/out/fixed.wav"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	resp, err := client.RepairPerChannel(context.Background(), PerChannelRequest{
		FilePath: "/media/dub.wav",
		PerChannelResults: map[string]ChannelResult{
			"a0": {OffsetSeconds: 0.5, Confidence: 1.0},
			"a1": {OffsetSeconds: -0.25, Confidence: 1.0},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Error("expected success response")
	}
	if len(receivedReq.PerChannelResults) != 2 {
		t.Errorf("channel count = %d, want 2", len(receivedReq.PerChannelResults))
	}
	if got := receivedReq.PerChannelResults["a0"]; got.OffsetSeconds != 0.5 || got.Confidence != 1.0 {
		t.Errorf("a0 result = %+v", got)
	}
}

func TestHTTPClient_NonOK_UsesDetailField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"source file has no audio streams"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	_, err := client.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if backendErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", backendErr.StatusCode)
	}
	if backendErr.Error() != "source file has no audio streams" {
		t.Errorf("message = %q, want backend detail verbatim", backendErr.Error())
	}
}

func TestHTTPClient_NonOK_NoBody_GenericMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	_, err := client.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if backendErr.Error() != "Repair failed: 502" {
		t.Errorf("message = %q, want Repair failed: 502", backendErr.Error())
	}
}

func TestHTTPClient_NonOK_UnparseableBody_GenericMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	_, err := client.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if backendErr.Error() != "Repair failed: 500" {
		t.Errorf("message = %q, want Repair failed: 500", backendErr.Error())
	}
}

func TestHTTPClient_PassesThroughLogicalFailure(t *testing.T) {
	// A 2xx response with success=false is a backend result, not a transport
	// error, and must be handed through unchanged.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Response{Success: false, Error: "ffmpeg exited with code 1"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	resp, err := client.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false passthrough")
	}
	if resp.Error != "ffmpeg exited with code 1" {
		t.Errorf("error = %q, want backend message verbatim", resp.Error)
	}
}

func TestHTTPClient_SendsCorrelationHeaders(t *testing.T) {
	var requestID, agentID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Dubalign-Request-Id")
		agentID = r.Header.Get("X-Dubalign-Agent-Id")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Response{Success: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())
	client.SetAgentID("agent-xyz")

	if _, err := client.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requestID == "" {
		t.Error("expected X-Dubalign-Request-Id header")
	}
	if agentID != "agent-xyz" {
		t.Errorf("agent id header = %q, want agent-xyz", agentID)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Response{Success: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.RepairStandard(ctx, StandardRequest{FilePath: "/media/dub.wav"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestStubClient_ReportsUnconfiguredBackend(t *testing.T) {
	stub := NewStubClient(testLogger())

	resp, err := stub.RepairStandard(context.Background(), StandardRequest{FilePath: "/media/dub.wav"})
	if err != nil {
		t.Fatalf("stub should not error: %v", err)
	}
	if resp.Success {
		t.Error("stub must not report success")
	}
	if resp.Error == "" {
		t.Error("stub should explain why the repair did not run")
	}
}

func TestClients_ImplementInterface(t *testing.T) {
	var _ Client = (*HTTPClient)(nil)
	var _ Client = (*StubClient)(nil)
}
