package http

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/analytics"
	"bilancio/internal/log"
	"bilancio/internal/report"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// handleReport serves /api/reports/{period}.{xlsx|pdf}. The date query
// parameter picks the reference day as on the chart endpoints.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	ext := strings.TrimPrefix(path.Ext(file), ".")
	period, err := analytics.ParsePeriod(strings.TrimSuffix(file, path.Ext(file)))
	if err != nil {
		NotFoundError("unknown report period").Write(w)
		return
	}
	if ext != "xlsx" && ext != "pdf" {
		NotFoundError("report format must be xlsx or pdf").Write(w)
		return
	}
	if ext == "pdf" && len(s.reportFont) == 0 {
		ErrorResponse(http.StatusNotImplemented, report.ErrNoFont.Error()).Write(w)
		return
	}

	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	data, err := s.dashboard.Report(ctx, period, p.Ref)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	contentType := contentTypeXLSX
	if ext == "pdf" {
		contentType = contentTypePDF
		err = report.WritePDF(&buf, data, s.reportFont)
	} else {
		err = report.WriteExcel(&buf, data)
	}
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.reportsGenerated, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Report generated",
		log.FieldPeriod, string(period),
		"format", ext,
		"bytes", buf.Len())

	NewResponse().
		Bytes(contentType, buf.Bytes()).
		Attachment(data.Filename(ext)).
		Write(w)
}
