// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

const alertColumns = `id, code_key, COALESCE(batch_label, ''), COALESCE(owner_ref, ''),
	COALESCE(strain_ref, ''), alert_type, severity, risk_score, flags,
	COALESCE(location_summary, ''), resolved, created_at`

// InsertAlert persists a new security alert.
func (s *Store) InsertAlert(ctx context.Context, alert *models.SecurityAlert) error {
	start := time.Now()

	// Empty array rather than a nil slice: DuckDB's JSON type rejects
	// the empty string a nil []byte binds as.
	flags := []byte("[]")
	if len(alert.Flags) > 0 {
		b, err := json.Marshal(alert.Flags)
		if err != nil {
			return fmt.Errorf("failed to marshal alert flags: %w", err)
		}
		flags = b
	}

	query := `INSERT INTO security_alerts
		(id, code_key, batch_label, owner_ref, strain_ref, alert_type,
		 severity, risk_score, flags, location_summary, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		alert.ID,
		alert.CodeKey,
		alert.BatchLabel,
		alert.OwnerRef,
		alert.StrainRef,
		string(alert.AlertType),
		string(alert.Severity),
		alert.RiskScore,
		flags,
		alert.LocationSummary,
		alert.Resolved,
		alert.CreatedAt,
	)
	metrics.ObserveDBQuery("insert", "security_alerts", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// GetAlert retrieves an alert by ID. Returns nil without error when the
// alert does not exist.
func (s *Store) GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM security_alerts WHERE id = ?`

	alert := &models.SecurityAlert{}
	err := scanAlertRow(s.db.QueryRowContext(ctx, query, id), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// ListAlerts retrieves alerts with optional filtering. All user values
// are parameterized; ORDER BY columns are whitelisted.
func (s *Store) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.SecurityAlert, error) {
	start := time.Now()
	query, args := buildAlertQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("select", "security_alerts", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.SecurityAlert
	for rows.Next() {
		var alert models.SecurityAlert
		if err := scanAlertRow(rows, &alert); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// CountAlerts returns the number of alerts matching the filter,
// ignoring pagination.
func (s *Store) CountAlerts(ctx context.Context, filter models.AlertFilter) (int, error) {
	query := `SELECT COUNT(*) FROM security_alerts WHERE 1=1`
	query, args := applyAlertFilters(query, nil, filter)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// SetAlertResolved marks an alert resolved or unresolved. Returns
// sql.ErrNoRows when the alert does not exist.
func (s *Store) SetAlertResolved(ctx context.Context, id string, resolved bool) error {
	start := time.Now()

	res, err := s.db.ExecContext(ctx,
		`UPDATE security_alerts SET resolved = ? WHERE id = ?`, resolved, id)
	metrics.ObserveDBQuery("update", "security_alerts", start, err)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected row count: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AlertSummary aggregates alert counts for the dashboard within the
// scope.
func (s *Store) AlertSummary(ctx context.Context, scope AnalyticsScope) (*models.AlertSummary, error) {
	summary := &models.AlertSummary{
		BySeverity: make(map[models.Severity]int),
		ByType:     make(map[models.AlertType]int),
	}

	where, args := scope.where("created_at")
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, alert_type, resolved, COUNT(*)
		FROM security_alerts`+where+`
		GROUP BY severity, alert_type, resolved`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity, alertType string
		var resolved bool
		var count int
		if err := rows.Scan(&severity, &alertType, &resolved, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert summary row: %w", err)
		}
		summary.Total += count
		if !resolved {
			summary.Unresolved += count
		}
		summary.BySeverity[models.Severity(severity)] += count
		summary.ByType[models.AlertType(alertType)] += count
	}
	return summary, rows.Err()
}

func buildAlertQuery(filter models.AlertFilter) (string, []interface{}) {
	query := `SELECT ` + alertColumns + ` FROM security_alerts WHERE 1=1`
	args := make([]interface{}, 0)

	query, args = applyAlertFilters(query, args, filter)
	query = applyAlertOrdering(query, filter)
	query, args = applyAlertPagination(query, args, filter)

	return query, args
}

func applyAlertFilters(query string, args []interface{}, filter models.AlertFilter) (string, []interface{}) {
	if filter.OwnerRef != "" {
		query += " AND owner_ref = ?"
		args = append(args, filter.OwnerRef)
	}

	if filter.StrainRef != "" {
		query += " AND strain_ref = ?"
		args = append(args, filter.StrainRef)
	}

	if filter.CodeKey != "" {
		query += " AND code_key = ?"
		args = append(args, filter.CodeKey)
	}

	if len(filter.AlertTypes) > 0 {
		query += fmt.Sprintf(" AND alert_type IN (%s)", buildPlaceholders(len(filter.AlertTypes)))
		for _, at := range filter.AlertTypes {
			args = append(args, string(at))
		}
	}

	if len(filter.Severities) > 0 {
		query += fmt.Sprintf(" AND severity IN (%s)", buildPlaceholders(len(filter.Severities)))
		for _, sev := range filter.Severities {
			args = append(args, string(sev))
		}
	}

	if filter.Resolved != nil {
		query += " AND resolved = ?"
		args = append(args, *filter.Resolved)
	}

	if filter.StartDate != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.StartDate)
	}

	if filter.EndDate != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.EndDate)
	}

	return query, args
}

// validAlertOrderColumns whitelists ORDER BY columns to prevent SQL
// injection through the filter.
var validAlertOrderColumns = map[string]bool{
	"id":         true,
	"code_key":   true,
	"alert_type": true,
	"severity":   true,
	"risk_score": true,
	"resolved":   true,
	"created_at": true,
}

func applyAlertOrdering(query string, filter models.AlertFilter) string {
	orderBy := "created_at"
	if filter.OrderBy != "" && validAlertOrderColumns[filter.OrderBy] {
		orderBy = filter.OrderBy
	}

	orderDir := "DESC"
	if filter.OrderDirection != "" {
		upperDir := strings.ToUpper(filter.OrderDirection)
		if upperDir == "ASC" || upperDir == "DESC" {
			orderDir = upperDir
		}
	}

	return query + fmt.Sprintf(" ORDER BY %s %s", orderBy, orderDir)
}

func applyAlertPagination(query string, args []interface{}, filter models.AlertFilter) (string, []interface{}) {
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return query, args
}

func scanAlertRow(scanner interface {
	Scan(dest ...interface{}) error
}, alert *models.SecurityAlert) error {
	var alertType, severity string
	var flags interface{}

	if err := scanner.Scan(
		&alert.ID,
		&alert.CodeKey,
		&alert.BatchLabel,
		&alert.OwnerRef,
		&alert.StrainRef,
		&alertType,
		&severity,
		&alert.RiskScore,
		&flags,
		&alert.LocationSummary,
		&alert.Resolved,
		&alert.CreatedAt,
	); err != nil {
		return err
	}

	alert.AlertType = models.AlertType(alertType)
	alert.Severity = models.Severity(severity)
	alert.Flags = decodeFlags(flags)

	return nil
}
