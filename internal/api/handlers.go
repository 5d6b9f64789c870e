// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package api exposes the HTTP surface: scan ingestion, alert review,
// and the dashboard and geographic analytics read models.
package api

import (
	"database/sql"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/detection"
	"github.com/Danproc/QR-Verify-sub002/internal/geoip"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
	"github.com/Danproc/QR-Verify-sub002/internal/store"
)

// maxRequestBody caps ingestion request bodies at 64KB.
const maxRequestBody = 64 << 10

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	engine   *detection.Engine
	store    *store.Store
	validate *validator.Validate
}

// NewHandler creates the handler set.
func NewHandler(engine *detection.Engine, st *store.Store) *Handler {
	return &Handler{
		engine:   engine,
		store:    st,
		validate: validator.New(),
	}
}

// scanRequest is the ingestion payload posted by the verification
// redirect frontend. The frontend has already resolved the code, so it
// supplies the display fields alerts denormalize.
type scanRequest struct {
	CodeKey    string `json:"code_key" validate:"required,max=128"`
	StrainRef  string `json:"strain_ref" validate:"max=128"`
	BatchLabel string `json:"batch_label" validate:"max=256"`
	OwnerRef   string `json:"owner_ref" validate:"max=128"`
	ClientIP   string `json:"client_ip" validate:"required,max=64"`
	UserAgent  string `json:"user_agent"`
	Referer    string `json:"referer"`
}

// RecordScan handles POST /api/v1/scans.
func (h *Handler) RecordScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	ip := geoip.NormalizeIP(req.ClientIP)
	if net.ParseIP(ip) == nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "client_ip is not a valid IP address", nil)
		return
	}

	event, err := h.engine.RecordScan(r.Context(), detection.ScanRequest{
		CodeKey:    req.CodeKey,
		StrainRef:  req.StrainRef,
		BatchLabel: req.BatchLabel,
		OwnerRef:   req.OwnerRef,
		ClientIP:   ip,
		UserAgent:  req.UserAgent,
		Referer:    req.Referer,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SCAN_RECORD_FAILED", "Failed to record scan", err)
		return
	}

	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status: "success",
		Data:   event,
	})
}

// analyticsScope builds the read-model scope from query parameters.
// owner_ref and strain_ref restrict the view to one tenant's data.
func analyticsScope(r *http.Request, days int) store.AnalyticsScope {
	return store.AnalyticsScope{
		OwnerRef:  r.URL.Query().Get("owner_ref"),
		StrainRef: r.URL.Query().Get("strain_ref"),
		Window:    time.Duration(days) * 24 * time.Hour,
	}
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "days must be between 1 and 365", nil)
		return
	}

	dashboard, err := h.store.Dashboard(r.Context(), analyticsScope(r, days), 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to build dashboard", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   dashboard,
	})
}

// AnalyticsGeographic handles GET /api/v1/analytics/geographic.
func (h *Handler) AnalyticsGeographic(w http.ResponseWriter, r *http.Request) {
	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "days must be between 1 and 365", nil)
		return
	}

	analytics, err := h.store.GeographicAnalytics(r.Context(), analyticsScope(r, days))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to build geographic analytics", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   analytics,
	})
}

// alertListResponse pairs one page of alerts with the total match count
// for pagination.
type alertListResponse struct {
	Alerts []models.SecurityAlert `json:"alerts"`
	Total  int                    `json:"total"`
}

// ListAlerts handles GET /api/v1/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := models.AlertFilter{
		OwnerRef:       r.URL.Query().Get("owner_ref"),
		StrainRef:      r.URL.Query().Get("strain_ref"),
		CodeKey:        r.URL.Query().Get("code_key"),
		Resolved:       getBoolParam(r, "resolved"),
		StartDate:      getTimeParam(r, "start_date"),
		EndDate:        getTimeParam(r, "end_date"),
		Limit:          getIntParam(r, "limit", 50),
		Offset:         getIntParam(r, "offset", 0),
		OrderBy:        r.URL.Query().Get("order_by"),
		OrderDirection: r.URL.Query().Get("order_dir"),
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	for _, at := range splitListParam(r, "alert_type") {
		filter.AlertTypes = append(filter.AlertTypes, models.AlertType(at))
	}
	for _, sev := range splitListParam(r, "severity") {
		filter.Severities = append(filter.Severities, models.Severity(sev))
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list alerts", err)
		return
	}

	total, err := h.store.CountAlerts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to count alerts", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   alertListResponse{Alerts: alerts, Total: total},
	})
}

// GetAlert handles GET /api/v1/alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to get alert", err)
		return
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   alert,
	})
}

// ResolveAlert handles POST /api/v1/alerts/{id}/resolve.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	h.setAlertResolved(w, r, true)
}

// UnresolveAlert handles POST /api/v1/alerts/{id}/unresolve. Resolution
// is reversible; reopening an alert is a supported review action.
func (h *Handler) UnresolveAlert(w http.ResponseWriter, r *http.Request) {
	h.setAlertResolved(w, r, false)
}

func (h *Handler) setAlertResolved(w http.ResponseWriter, r *http.Request, resolved bool) {
	id := chi.URLParam(r, "id")

	err := h.store.SetAlertResolved(r.Context(), id, resolved)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update alert", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]any{"id": id, "resolved": resolved},
	})
}

// Health handles GET /healthz. Reports database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DB().PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"status": "ok"},
	})
}
