// Package report renders a QC report workbook for a session: the per-channel
// offsets currently on the timeline next to the detected sync values, plus
// the repair attempt history.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/dubalign/dubalign-agent/internal/channel"
	"github.com/dubalign/dubalign-agent/internal/reconcile"
	"github.com/dubalign/dubalign-agent/internal/session"
	"github.com/dubalign/dubalign-agent/internal/timecode"
)

const (
	sheetChannels = "Channels"
	sheetAttempts = "Attempts"
)

type Generator struct {
	logger *slog.Logger
}

func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger}
}

// channelRow pairs a role with its detected and adjusted offsets. Detected
// values come from the stored sync data, adjusted values from the editor's
// track layout. Either side may be absent.
type channelRow struct {
	Role          string
	Detected      *float64
	DetectedConf  *float64
	Adjusted      *float64
	AdjustedDelta *float64
}

// Write renders the workbook for a session into w.
func (g *Generator) Write(w io.Writer, sess *session.Session, attempts []*session.Attempt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := g.writeChannels(f, sess); err != nil {
		return err
	}
	if err := g.writeAttempts(f, attempts); err != nil {
		return err
	}

	// Drop the default sheet and make Channels the entry point.
	f.DeleteSheet("Sheet1")
	idx, err := f.GetSheetIndex(sheetChannels)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write report workbook: %w", err)
	}

	g.logger.Debug("report generated", "session_id", sess.ID, "attempt_count", len(attempts))
	return nil
}

func (g *Generator) writeChannels(f *excelize.File, sess *session.Session) error {
	if _, err := f.NewSheet(sheetChannels); err != nil {
		return err
	}

	header := []interface{}{
		"Channel", "Detected Offset (s)", "Detected Timecode",
		"Adjusted Offset (s)", "Adjusted Timecode", "Confidence", "Delta (s)",
	}
	if err := f.SetSheetRow(sheetChannels, "A1", &header); err != nil {
		return err
	}

	fps := sess.FrameRate
	rows := buildChannelRows(sess)

	var adjusted, confidences []float64
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		values := make([]interface{}, 7)
		values[0] = row.Role
		if row.Detected != nil {
			values[1] = *row.Detected
			values[2] = timecode.FormatOffsetSigned(*row.Detected, fps)
		}
		if row.Adjusted != nil {
			values[3] = *row.Adjusted
			values[4] = timecode.FormatOffsetSigned(*row.Adjusted, fps)
			adjusted = append(adjusted, *row.Adjusted)
		}
		if row.DetectedConf != nil {
			values[5] = *row.DetectedConf
			confidences = append(confidences, *row.DetectedConf)
		}
		if row.AdjustedDelta != nil {
			values[6] = *row.AdjustedDelta
		}
		if err := f.SetSheetRow(sheetChannels, cell, &values); err != nil {
			return err
		}
	}

	// Summary block: mean and spread of the adjusted offsets across channels.
	// A large spread on a per-channel session flags channels drifting apart.
	base := len(rows) + 3
	if len(adjusted) > 0 {
		mean := stat.Mean(adjusted, nil)
		spread := 0.0
		if len(adjusted) > 1 {
			spread = stat.StdDev(adjusted, nil)
		}
		summary := [][]interface{}{
			{"Channels", len(adjusted)},
			{"Mean offset (s)", mean},
			{"Offset spread (s)", spread},
		}
		if len(confidences) > 0 {
			summary = append(summary, []interface{}{"Mean confidence", stat.Mean(confidences, nil)})
		}
		for i, row := range summary {
			cell := fmt.Sprintf("A%d", base+i)
			if err := f.SetSheetRow(sheetChannels, cell, &row); err != nil {
				return err
			}
		}
	}

	return nil
}

func buildChannelRows(sess *session.Session) []channelRow {
	byRole := make(map[string]*channelRow)
	var order []string

	ensure := func(role string) *channelRow {
		if row, ok := byRole[role]; ok {
			return row
		}
		row := &channelRow{Role: role}
		byRole[role] = row
		order = append(order, role)
		return row
	}

	if sess.Sync != nil {
		if sess.Sync.PerChannelResults != nil {
			for role, res := range sess.Sync.PerChannelResults {
				row := ensure(role)
				detected := res.OffsetSeconds
				conf := res.Confidence
				row.Detected = &detected
				row.DetectedConf = &conf
			}
		} else {
			row := ensure("all")
			detected := sess.Sync.OffsetSeconds
			conf := sess.Sync.Confidence
			row.Detected = &detected
			row.DetectedConf = &conf
		}
	}

	if len(sess.Layout) > 0 {
		if sess.Sync != nil && sess.Sync.PerChannel() {
			for role, res := range reconcile.AdjustedOffsets(sess.Layout) {
				row := ensure(role)
				adjusted := res.OffsetSeconds
				row.Adjusted = &adjusted
				if row.Detected != nil {
					delta := adjusted - *row.Detected
					row.AdjustedDelta = &delta
				}
			}
		} else {
			row := ensure("all")
			adjusted := reconcile.StandardOffset(sess.Layout)
			row.Adjusted = &adjusted
			if row.Detected != nil {
				delta := adjusted - *row.Detected
				row.AdjustedDelta = &delta
			}
		}
	}

	rows := make([]channelRow, 0, len(order))
	for _, role := range sortedRoles(order) {
		rows = append(rows, *byRole[role])
	}
	return rows
}

// sortedRoles orders roles deterministically: layout components (a0, a1, ...)
// numerically first, everything else lexically after.
func sortedRoles(roles []string) []string {
	out := make([]string, len(roles))
	copy(out, roles)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && channel.RoleLess(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (g *Generator) writeAttempts(f *excelize.File, attempts []*session.Attempt) error {
	if _, err := f.NewSheet(sheetAttempts); err != nil {
		return err
	}

	header := []interface{}{
		"Attempt", "Mode", "Status", "Output File", "Output Size", "Error", "Started",
	}
	if err := f.SetSheetRow(sheetAttempts, "A1", &header); err != nil {
		return err
	}

	for i, a := range attempts {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			a.ID, a.Mode, a.Status, a.OutputFile, a.OutputSize, a.Error,
			a.CreatedAt.Format(time.RFC3339),
		}
		if err := f.SetSheetRow(sheetAttempts, cell, &row); err != nil {
			return err
		}
	}

	return nil
}
