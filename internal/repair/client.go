// Package repair talks to the remote offset-repair backend. The backend owns
// the FFmpeg work; this package only ships well-formed requests and passes
// results through.
package repair

import (
	"context"
	"log/slog"
)

type Client interface {
	RepairStandard(ctx context.Context, req StandardRequest) (*Response, error)
	RepairPerChannel(ctx context.Context, req PerChannelRequest) (*Response, error)
}

// StubClient stands in when no backend is configured. It never performs a
// repair; every submission comes back as a failed response so the editor
// shows a clear message instead of hanging.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) RepairStandard(ctx context.Context, req StandardRequest) (*Response, error) {
	c.logger.Info("repair stub: standard repair requested",
		"file_path", req.FilePath,
		"offset_seconds", req.OffsetSeconds,
	)
	return &Response{Success: false, Error: "repair backend not configured"}, nil
}

func (c *StubClient) RepairPerChannel(ctx context.Context, req PerChannelRequest) (*Response, error) {
	c.logger.Info("repair stub: per-channel repair requested",
		"file_path", req.FilePath,
		"channel_count", len(req.PerChannelResults),
	)
	return &Response{Success: false, Error: "repair backend not configured"}, nil
}
