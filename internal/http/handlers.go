package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"andamento/internal/core"
	applog "andamento/internal/log"
	"andamento/internal/report"
	"andamento/internal/services"
)

const maxReceiptBytes = 64 << 10

// reportQuery holds the parameters of GET /api/report.
type reportQuery struct {
	Account string
	Preset  report.Preset
	Fill    bool
}

// parseReportQuery reads account, preset and fill. A missing preset means
// 1M. An unknown preset is an error, never a default.
func parseReportQuery(r *http.Request) (reportQuery, error) {
	q := r.URL.Query()
	rq := reportQuery{Account: sanitizeInput(q.Get("account"))}

	raw := strings.TrimSpace(q.Get("preset"))
	if raw == "" {
		raw = string(report.Preset1M)
	}
	p, err := report.ParsePreset(raw)
	if err != nil {
		return reportQuery{}, err
	}
	rq.Preset = p

	if v := strings.TrimSpace(q.Get("fill")); v != "" {
		fill, err := strconv.ParseBool(v)
		if err != nil {
			return reportQuery{}, fmt.Errorf("invalid fill value %q", v)
		}
		rq.Fill = fill
	}
	return rq, nil
}

// sanitizeInput trims and removes control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady runs every readiness check under one timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks)+1)

	for name, check := range s.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	checks["rate_limiter"] = fmt.Sprintf("ok (%d clients)", s.limiter.activeClients())

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, presetViews())
}

// handleReport returns the report JSON for a charting client.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	rep, err := s.reports.Report(ctx, q.Account, q.Preset)
	if err != nil {
		status := statusForReportError(err)
		if status >= http.StatusInternalServerError {
			s.events.LogError(ctx, "Report failed", err, applog.ComponentHTTP, applog.OpCompute,
				applog.NewFields().WithReport(q.Account, q.Preset.String()))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newReportView(q.Account, rep, q.Fill))
}

func statusForReportError(err error) int {
	switch {
	case errors.Is(err, report.ErrInvalidPreset):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleReceipt stores a receipt-scanner payload as an expense.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if s.receipts == nil {
		writeError(w, http.StatusServiceUnavailable, "receipt capture is not configured")
		return
	}

	account := sanitizeInput(r.URL.Query().Get("account"))
	if account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}

	var scan core.ReceiptScan
	dec := json.NewDecoder(io.LimitReader(r.Body, maxReceiptBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&scan); err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt payload")
		return
	}
	scan.Description = sanitizeInput(scan.Description)
	scan.Category = sanitizeInput(scan.Category)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	id, err := s.receipts.RecordReceipt(ctx, account, scan)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.events.LogError(ctx, "Receipt save failed", err, applog.ComponentHTTP, applog.OpAppend,
			applog.LogFields{applog.FieldAccountID: account})
		writeError(w, http.StatusInternalServerError, "failed to save receipt")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "account": account})
}
