// Package reconcile converts the editor's track/clip layout and stored sync
// data into a repair request for the backend. Track 0 is always the
// master/reference track.
package reconcile

import (
	"github.com/dubalign/dubalign-agent/internal/channel"
	"github.com/dubalign/dubalign-agent/internal/repair"
)

// DefaultSampleRate applies when the editor omits a track's sample rate.
const DefaultSampleRate = 44100

// Clip is one clip on an editor track. Start is in sample frames, as
// reported by the editor after a drag or trim.
type Clip struct {
	StartSamples float64 `json:"start_samples"`
}

// Track mirrors the editor's track layout.
type Track struct {
	Name       string `json:"name"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Clips      []Clip `json:"clips"`
}

// SyncData is the alignment payload the backend detected for a session. Its
// shape decides standard vs per-channel mode.
type SyncData struct {
	OffsetSeconds     float64                         `json:"offset_seconds"`
	Confidence        float64                         `json:"confidence"`
	Components        []string                        `json:"components,omitempty"`
	PerChannelResults map[string]repair.ChannelResult `json:"per_channel_results,omitempty"`
}

// PerChannel reports whether the sync data carries per-channel results,
// selecting per-channel repair mode.
func (s SyncData) PerChannel() bool {
	return len(s.Components) > 0 || s.PerChannelResults != nil
}

type Mode string

const (
	ModeStandard   Mode = "standard"
	ModePerChannel Mode = "per_channel"
)

// Request is a mode-tagged repair request; exactly one of Standard and
// PerChannel is set.
type Request struct {
	Mode       Mode
	Standard   *repair.StandardRequest
	PerChannel *repair.PerChannelRequest
}

// firstClipSeconds converts a track's first clip start to seconds. A track
// with no clips contributes offset 0.
func firstClipSeconds(t Track) float64 {
	if len(t.Clips) == 0 {
		return 0
	}
	rate := t.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return t.Clips[0].StartSamples / float64(rate)
}

// AdjustedOffsets maps every non-master track's role to its current offset.
// The master track (index 0) is the reference and never appears in the
// output. Confidence is reported as 1.0: a user-adjusted position is ground
// truth and overrides any machine-detected confidence. When two tracks
// resolve to the same role, the later track wins.
func AdjustedOffsets(tracks []Track) map[string]repair.ChannelResult {
	results := make(map[string]repair.ChannelResult)
	for i, t := range tracks {
		if i == 0 {
			continue
		}
		results[channel.RoleForTrack(t.Name)] = repair.ChannelResult{
			OffsetSeconds: firstClipSeconds(t),
			Confidence:    1.0,
		}
	}
	return results
}

// StandardOffset is the scalar offset for a standard repair: the second
// track's first clip start in seconds. With fewer than two tracks there is
// no dub track on screen and the offset is 0.
func StandardOffset(tracks []Track) float64 {
	if len(tracks) < 2 {
		return 0
	}
	return firstClipSeconds(tracks[1])
}

// BuildRequest constructs the repair request for the current session state.
// Mode selection is mechanical: per-channel iff the sync data carries
// component results, else standard. When the editor has not pushed a layout
// yet, the detected sync values stand in for user adjustments.
func BuildRequest(filePath string, sync SyncData, tracks []Track, outputPath string, keepDuration bool) Request {
	if sync.PerChannel() {
		results := AdjustedOffsets(tracks)
		if len(tracks) == 0 && sync.PerChannelResults != nil {
			results = sync.PerChannelResults
		}
		return Request{
			Mode: ModePerChannel,
			PerChannel: &repair.PerChannelRequest{
				FilePath:          filePath,
				PerChannelResults: results,
				OutputPath:        outputPath,
				KeepDuration:      keepDuration,
			},
		}
	}

	offset := StandardOffset(tracks)
	if len(tracks) == 0 {
		offset = sync.OffsetSeconds
	}
	return Request{
		Mode: ModeStandard,
		Standard: &repair.StandardRequest{
			FilePath:      filePath,
			OffsetSeconds: offset,
			OutputPath:    outputPath,
			KeepDuration:  keepDuration,
		},
	}
}
