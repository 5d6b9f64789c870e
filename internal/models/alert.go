// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package models

import "time"

// AlertType classifies what kind of fraud a SecurityAlert points at,
// derived from which flag families fired on the triggering scan.
type AlertType string

const (
	AlertCounterfeitSuspected AlertType = "counterfeit_suspected"
	AlertBotActivity          AlertType = "bot_activity"
	AlertDuplicationSuspected AlertType = "duplication_suspected"
	AlertGeneralSuspicious    AlertType = "general_suspicious"
)

// SecurityAlert is a persisted, reviewable record created when a scan's
// risk score crosses the suspicious threshold. Alerts are never
// auto-deleted; they form the audit trail. BatchLabel is denormalized so
// the alert stays displayable even if the code itself is later removed.
type SecurityAlert struct {
	ID         string    `json:"id"`
	CodeKey    string    `json:"code_key"`
	BatchLabel string    `json:"batch_label,omitempty"`
	OwnerRef   string    `json:"owner_ref,omitempty"`
	StrainRef  string    `json:"strain_ref,omitempty"`
	AlertType  AlertType `json:"alert_type"`
	Severity   Severity  `json:"severity"`
	RiskScore  int       `json:"risk_score"`

	// Flags is a copy of the triggering ScanEvent's flags.
	Flags []Flag `json:"flags,omitempty"`

	// LocationSummary is a formatted "city, region, country" string for
	// display; best-effort, may be "Unknown".
	LocationSummary string `json:"location_summary,omitempty"`

	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertFilter defines filtering options for alert queries.
type AlertFilter struct {
	OwnerRef       string      `json:"owner_ref,omitempty"`
	StrainRef      string      `json:"strain_ref,omitempty"`
	CodeKey        string      `json:"code_key,omitempty"`
	AlertTypes     []AlertType `json:"alert_types,omitempty"`
	Severities     []Severity  `json:"severities,omitempty"`
	Resolved       *bool       `json:"resolved,omitempty"`
	StartDate      *time.Time  `json:"start_date,omitempty"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	Limit          int         `json:"limit,omitempty"`
	Offset         int         `json:"offset,omitempty"`
	OrderBy        string      `json:"order_by,omitempty"`
	OrderDirection string      `json:"order_direction,omitempty"`
}

// AlertSummary aggregates alert counts for the dashboard read model.
type AlertSummary struct {
	Total      int               `json:"total"`
	Unresolved int               `json:"unresolved"`
	BySeverity map[Severity]int  `json:"by_severity"`
	ByType     map[AlertType]int `json:"by_type"`
}
