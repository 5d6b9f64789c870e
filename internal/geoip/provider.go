// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

// Package geoip resolves client IP addresses to approximate geographic
// locations. The engine depends only on the output shape: resolution is
// best-effort and degrades to an "Unknown" location rather than surfacing
// errors into the scan-ingestion path.
package geoip

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/Danproc/QR-Verify-sub002/internal/models"
)

// Provider is a geolocation lookup backend. Implementations use external
// web services; lookups must honour ctx cancellation.
type Provider interface {
	// Lookup returns geolocation data for the given IP address.
	Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error)

	// Name returns the provider name for logging and metrics.
	Name() string

	// IsAvailable reports whether the provider is configured and usable.
	IsAvailable() bool
}

// ========================================
// ip-api.com provider (free, no API key)
// ========================================

// IPAPIProvider implements Provider using the free ip-api.com service.
// Free tier allows 45 requests per minute; the limiter refuses lookups
// beyond that budget instead of queueing them, keeping the scan path fast.
type IPAPIProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

type ipAPIResponse struct {
	Status     string  `json:"status"` // "success" or "fail"
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Timezone   string  `json:"timezone"`
	ISP        string  `json:"isp"`
	Query      string  `json:"query"`
}

// NewIPAPIProvider creates an ip-api.com provider capped at
// requestsPerMinute lookups.
func NewIPAPIProvider(requestsPerMinute int) *IPAPIProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 45
	}
	return &IPAPIProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		baseURL: "http://ip-api.com/json",
	}
}

// Name returns the provider name.
func (p *IPAPIProvider) Name() string { return "ip-api.com" }

// IsAvailable returns true; ip-api.com requires no credentials.
func (p *IPAPIProvider) IsAvailable() bool { return true }

// Lookup queries ip-api.com for geolocation data.
func (p *IPAPIProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	if !p.limiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded for ip-api.com")
	}
	if net.ParseIP(ipAddress) == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipAddress)
	}

	url := fmt.Sprintf("%s/%s?fields=status,message,country,regionName,city,lat,lon,timezone,isp,query",
		p.baseURL, ipAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip-api.com: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api.com returned status %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode ip-api.com response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("ip-api.com lookup failed: %s", result.Message)
	}

	return &models.Geolocation{
		IPAddress:   ipAddress,
		Country:     result.Country,
		Region:      result.RegionName,
		City:        result.City,
		Latitude:    result.Lat,
		Longitude:   result.Lon,
		Timezone:    result.Timezone,
		ISP:         result.ISP,
		LastUpdated: time.Now().UTC(),
	}, nil
}

// ========================================
// MaxMind GeoLite2 web service provider
// ========================================

// MaxMindProvider implements Provider using MaxMind's GeoLite2 city web
// service. Requires a free account ID and license key; preferred over
// ip-api.com when configured.
type MaxMindProvider struct {
	client     *http.Client
	accountID  string
	licenseKey string
	baseURL    string
}

type maxMindResponse struct {
	City struct {
		Names map[string]string `json:"names"`
	} `json:"city"`
	Country struct {
		Names map[string]string `json:"names"`
	} `json:"country"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		TimeZone  string  `json:"time_zone"`
	} `json:"location"`
	Subdivisions []struct {
		Names map[string]string `json:"names"`
	} `json:"subdivisions"`
	Traits struct {
		ISP string `json:"isp"`
	} `json:"traits"`
}

type maxMindError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewMaxMindProvider creates a MaxMind GeoLite2 provider.
func NewMaxMindProvider(accountID, licenseKey string) *MaxMindProvider {
	return &MaxMindProvider{
		client:     &http.Client{Timeout: 10 * time.Second},
		accountID:  accountID,
		licenseKey: licenseKey,
		baseURL:    "https://geolite.info/geoip/v2.1/city",
	}
}

// Name returns the provider name.
func (p *MaxMindProvider) Name() string { return "maxmind-geolite2" }

// IsAvailable returns true if credentials are configured.
func (p *MaxMindProvider) IsAvailable() bool {
	return p.accountID != "" && p.licenseKey != ""
}

// Lookup queries the GeoLite2 city endpoint.
func (p *MaxMindProvider) Lookup(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("maxmind credentials not configured")
	}
	if net.ParseIP(ipAddress) == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipAddress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s", p.baseURL, ipAddress), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// MaxMind uses basic auth: account ID as username, license key as password.
	req.SetBasicAuth(p.accountID, p.licenseKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query maxmind: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp maxMindError
		if decErr := json.NewDecoder(resp.Body).Decode(&errResp); decErr == nil && errResp.Error != "" {
			return nil, fmt.Errorf("maxmind error (%s): %s", errResp.Code, errResp.Error)
		}
		return nil, fmt.Errorf("maxmind returned status %d", resp.StatusCode)
	}

	var result maxMindResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode maxmind response: %w", err)
	}

	geo := &models.Geolocation{
		IPAddress:   ipAddress,
		Country:     result.Country.Names["en"],
		City:        result.City.Names["en"],
		Latitude:    result.Location.Latitude,
		Longitude:   result.Location.Longitude,
		Timezone:    result.Location.TimeZone,
		ISP:         result.Traits.ISP,
		LastUpdated: time.Now().UTC(),
	}
	if len(result.Subdivisions) > 0 {
		geo.Region = result.Subdivisions[0].Names["en"]
	}

	return geo, nil
}

// ========================================
// IP classification helpers
// ========================================

// privateCIDRs are ranges that can never be geolocated externally.
// RFC 1918 plus loopback, link-local, and the IPv6 equivalents.
var privateCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

// IsPrivateIP reports whether the IP is in a private, loopback, or
// link-local range.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range privateCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsLoopbackIP reports whether the IP is a loopback address.
func IsLoopbackIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.IsLoopback()
}

// NormalizeIP strips a port and IPv6 brackets from a client address.
func NormalizeIP(addr string) string {
	if strings.HasPrefix(addr, "[") {
		// IPv6 with port: [::1]:8480 -> ::1
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		return strings.Trim(addr, "[]")
	}

	// IPv4 with port only when there is exactly one colon; a bare IPv6
	// address has several.
	if strings.Count(addr, ":") == 1 {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
	}
	return addr
}

// LocalCountry is the synthetic country recorded for private-range scans
// so that local testing never silently bypasses the scorer.
const LocalCountry = "Local Development"

// UnknownCountry is recorded when every lookup source fails.
const UnknownCountry = "Unknown"

// NewLocalGeolocation builds the synthetic geolocation for private IPs.
func NewLocalGeolocation(ipAddress string) *models.Geolocation {
	return &models.Geolocation{
		IPAddress:   ipAddress,
		Country:     LocalCountry,
		City:        "Local Network",
		LastUpdated: time.Now().UTC(),
	}
}

// NewUnknownGeolocation builds the fallback geolocation for failed lookups.
// The (0,0) sentinel coordinates are filtered out by the scorer and the
// map read models.
func NewUnknownGeolocation(ipAddress string) *models.Geolocation {
	return &models.Geolocation{
		IPAddress:   ipAddress,
		Country:     UnknownCountry,
		LastUpdated: time.Now().UTC(),
	}
}
