package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/go-quotes/httpx"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves per-user action statistics.
type ReportHandler struct {
	svc *services.ActionService
	log *zap.Logger
	now func() time.Time
}

func NewReportHandler(svc *services.ActionService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, log: log, now: time.Now}
}

type actionsReport struct {
	From  *time.Time            `json:"from,omitempty"`
	To    *time.Time            `json:"to,omitempty"`
	Stats []services.ActionStat `json:"stats"`
}

func (h *ReportHandler) Actions(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	stats, err := h.svc.Stats(r.Context(), from, to)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	rep := actionsReport{Stats: stats}
	if !from.IsZero() {
		rep.From = &from
	}
	if !to.IsZero() {
		rep.To = &to
	}
	httpx.JSON(w, http.StatusOK, rep)
}

// ActionsXLSX downloads the same statistics as a workbook.
func (h *ReportHandler) ActionsXLSX(w http.ResponseWriter, r *http.Request) {
	from, to, err := reportRange(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	data, err := h.svc.Export(r.Context(), from, to)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	name := "actions-" + h.now().UTC().Format("20060102") + ".xlsx"
	httpx.Attachment(w, xlsxContentType, name, data)
}

// reportRange reads ?from= and ?to=. A bare date for to covers that whole day.
func reportRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	v := validation.Violations{}
	from, _ := parseBound("from", q.Get("from"), v)
	to, dateOnly := parseBound("to", q.Get("to"), v)
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		v["to"] = "before_from"
	}
	return from, to, v.Err()
}

func parseBound(field, raw string, v validation.Violations) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	v[field] = "invalid_time"
	return time.Time{}, false
}
