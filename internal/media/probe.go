// Package media probes source audio files and serves them to the browser
// editor with HTTP range support.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Info is what session creation needs to know about a source file.
type Info struct {
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	Format          string  `json:"format"`
}

type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFProber reads WAV headers directly and shells out to ffprobe for every
// other container.
type FFProber struct {
	logger *slog.Logger
}

func NewProber(logger *slog.Logger) *FFProber {
	return &FFProber{logger: logger}
}

func (p *FFProber) Probe(ctx context.Context, path string) (*Info, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return p.probeWAV(path)
	}
	return p.probeFFmpeg(ctx, path)
}

func (p *FFProber) probeWAV(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat wav: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	info := &Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		SizeBytes:  stat.Size(),
		Format:     "wav",
	}

	if duration, err := decoder.Duration(); err == nil {
		info.DurationSeconds = duration.Seconds()
	}

	p.logger.Debug("probed wav file",
		"path", path,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
	)
	return info, nil
}

type probeData struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func (p *FFProber) probeFFmpeg(ctx context.Context, path string) (*Info, error) {
	data, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probed probeData
	if err := json.Unmarshal([]byte(data), &probed); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &Info{Format: probed.Format.FormatName}
	if d := strings.TrimSpace(probed.Format.Duration); d != "" {
		info.DurationSeconds, _ = strconv.ParseFloat(d, 64)
	}
	if s := strings.TrimSpace(probed.Format.Size); s != "" {
		info.SizeBytes, _ = strconv.ParseInt(s, 10, 64)
	}

	for _, stream := range probed.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
		info.Channels = stream.Channels
		break
	}

	if info.SampleRate == 0 {
		return nil, fmt.Errorf("no audio stream in %s", path)
	}

	p.logger.Debug("probed file via ffprobe",
		"path", path,
		"format", info.Format,
		"sample_rate", info.SampleRate,
	)
	return info, nil
}
