package repair

// ChannelResult is one channel's alignment result, keyed by canonical role
// in a per-channel request. Confidence is 1.0 for user-adjusted offsets.
type ChannelResult struct {
	OffsetSeconds float64 `json:"offset_seconds"`
	Confidence    float64 `json:"confidence"`
}

// StandardRequest applies one global offset to the whole dub file.
type StandardRequest struct {
	FilePath      string  `json:"file_path"`
	OffsetSeconds float64 `json:"offset_seconds"`
	OutputPath    string  `json:"output_path,omitempty"`
	KeepDuration  bool    `json:"keep_duration"`
}

// PerChannelRequest applies an independent offset to each channel/component.
type PerChannelRequest struct {
	FilePath          string                   `json:"file_path"`
	PerChannelResults map[string]ChannelResult `json:"per_channel_results"`
	OutputPath        string                   `json:"output_path,omitempty"`
	KeepDuration      bool                     `json:"keep_duration"`
}

// Response is the backend's repair result, passed through to the editor
// verbatim.
type Response struct {
	Success    bool   `json:"success"`
	OutputFile string `json:"output_file,omitempty"`
	OutputSize int64  `json:"output_size,omitempty"`
	Error      string `json:"error,omitempty"`
}
