// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package models defines the shared domain types for the scan-fraud
// detection engine: scan events, risk flags, security alerts, and
// geolocation records. These types are persisted by internal/store,
// produced by internal/detection, and serialized by internal/api.
package models
