package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportHandler streams a QC report workbook for a session. The workbook is
// rendered into memory first so a generation failure can still produce a
// clean JSON error.
func reportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sess, err := cfg.SessionService.Get(r.Context(), id)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		attempts, err := cfg.SessionService.Attempts(r.Context(), id, 100)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := cfg.Reports.Write(&buf, sess, attempts); err != nil {
			cfg.Logger.Error("report generation failed", "session_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "report generation failed", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "qc-report-"+sess.ID+".xlsx"))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}
