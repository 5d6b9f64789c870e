// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package api

import (
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "newline escaped", input: "line1\nline2", want: "line1\\x0aline2"},
		{name: "carriage return escaped", input: "a\rb", want: "a\\x0db"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogValue(tt.input); got != tt.want {
				t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "absent", query: "", want: 30},
		{name: "valid", query: "days=7", want: 7},
		{name: "garbage", query: "days=abc", want: 30},
		{name: "negative passes through", query: "days=-1", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/?"+tt.query, nil)
			if got := getIntParam(r, "days", 30); got != tt.want {
				t.Errorf("getIntParam() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetTimeParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?start=2026-03-10T12:00:00Z", nil)
	got := getTimeParam(r, "start")
	if got == nil || got.Hour() != 12 {
		t.Errorf("getTimeParam() = %v", got)
	}

	r = httptest.NewRequest("GET", "/?start=yesterday", nil)
	if got := getTimeParam(r, "start"); got != nil {
		t.Errorf("malformed time = %v, want nil", got)
	}
}

func TestGetBoolParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?resolved=true", nil)
	if got := getBoolParam(r, "resolved"); got == nil || !*got {
		t.Errorf("getBoolParam(true) = %v", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	if got := getBoolParam(r, "resolved"); got != nil {
		t.Errorf("absent param = %v, want nil", got)
	}

	r = httptest.NewRequest("GET", "/?resolved=maybe", nil)
	if got := getBoolParam(r, "resolved"); got != nil {
		t.Errorf("malformed bool = %v, want nil", got)
	}
}

func TestSplitListParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/?severity=high,%20medium,,low", nil)
	got := splitListParam(r, "severity")
	want := []string{"high", "medium", "low"}
	if len(got) != len(want) {
		t.Fatalf("splitListParam() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
