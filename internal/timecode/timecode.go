// Package timecode converts between offsets in seconds and their textual
// timecode representations as used by the review editor.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultFrameRate is used when no frame rate is configured for a session.
const DefaultFrameRate = 23.976

// ErrInvalidFormat is returned when text matches neither the decimal-seconds
// nor the timecode grammar. Callers must leave their offset state unchanged.
var ErrInvalidFormat = errors.New("invalid offset format")

// [±]HH:MM:SS:FF or [±]HH:MM:SS.mmm. The separator before the last field and
// its width decide frames vs milliseconds.
var timecodeRe = regexp.MustCompile(`^([+-])?(\d{1,2}):(\d{2}):(\d{2})[:.](\d{1,3})$`)

// ParseOffset parses user-entered offset text into signed seconds.
// Accepted forms, in order:
//  1. a plain signed decimal number of seconds
//  2. a timecode where the final field is milliseconds when exactly 3 digits
//     wide, and a frame count otherwise (divided by fps)
//
// A 1-2 digit final field is always frames, even when it exceeds the
// frame-rate-implied maximum; no bounds validation happens here.
func ParseOffset(text string, fps float64) (float64, error) {
	if fps <= 0 {
		fps = DefaultFrameRate
	}

	s := strings.TrimSpace(text)
	if s == "" {
		return 0, ErrInvalidFormat
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrInvalidFormat
		}
		return v, nil
	}

	m := timecodeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidFormat
	}

	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])

	total := float64(hours*3600 + minutes*60 + seconds)

	frac, _ := strconv.Atoi(m[5])
	if len(m[5]) == 3 {
		// Millisecond form, independent of frame rate. Known ambiguity: a
		// genuine 3-digit frame count at very high frame rates is
		// misclassified here. Preserved deliberately.
		total += float64(frac) / 1000.0
	} else {
		total += float64(frac) / fps
	}

	if m[1] == "-" {
		total = -total
	}
	return total, nil
}

// FormatOffset renders seconds as HH:MM:SS:FF, prefixed with "-" only for
// negative offsets. The frame field is truncated, never rounded: a sub-frame
// remainder must not bump the displayed frame number.
func FormatOffset(seconds, fps float64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
	}
	return sign + formatAbs(math.Abs(seconds), fps)
}

// FormatOffsetSigned renders seconds as HH:MM:SS:FF with an explicit "+" or
// "-" prefix for both signs.
func FormatOffsetSigned(seconds, fps float64) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
	}
	return sign + formatAbs(math.Abs(seconds), fps)
}

func formatAbs(abs, fps float64) string {
	if fps <= 0 {
		fps = DefaultFrameRate
	}

	whole := int(abs)
	frames := int((abs - float64(whole)) * fps)

	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
