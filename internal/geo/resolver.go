// Package geo resolves client IP addresses to coarse geolocation data via
// an ip-api style HTTP endpoint. Lookups are best-effort: any failure
// yields a nil location, never an error the caller has to handle inline.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/sync/singleflight"

	"security-monitor/internal/config"
	"security-monitor/internal/model"
	"security-monitor/internal/util"
)

// Resolver looks up the geolocation for an IP address. A nil result with
// a nil error means the address could not be resolved (private range,
// provider miss) and the event's geolocation stays unset.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*model.GeoLocation, error)
}

// HTTPResolver queries a configurable lookup endpoint. Concurrent lookups
// for the same IP are collapsed through singleflight so a burst from one
// client costs a single upstream call.
type HTTPResolver struct {
	endpoint string
	client   *http.Client
	group    singleflight.Group
}

func NewHTTPResolver(cfg config.GeoConfig) *HTTPResolver {
	return &HTTPResolver{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type lookupResponse struct {
	Status     string  `json:"status"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*model.GeoLocation, error) {
	if r.endpoint == "" || !isPublicIP(ip) {
		return nil, nil
	}

	result, err, _ := r.group.Do(ip, func() (interface{}, error) {
		return r.lookup(ctx, ip)
	})
	if err != nil {
		return nil, err
	}
	loc, _ := result.(*model.GeoLocation)
	return loc, nil
}

func (r *HTTPResolver) lookup(ctx context.Context, ip string) (*model.GeoLocation, error) {
	url := fmt.Sprintf("%s/%s", r.endpoint, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo lookup request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo lookup response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return nil, nil
	}

	util.Debug("Resolved geolocation",
		util.String("ip", ip),
		util.String("country", body.Country),
	)

	return &model.GeoLocation{
		Country: body.Country,
		Region:  body.RegionName,
		City:    body.City,
		Lat:     body.Lat,
		Lon:     body.Lon,
	}, nil
}

// NoopResolver is used when no lookup endpoint is configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(ctx context.Context, ip string) (*model.GeoLocation, error) {
	return nil, nil
}

func isPublicIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !parsed.IsLoopback() && !parsed.IsPrivate() && !parsed.IsUnspecified() && !parsed.IsLinkLocalUnicast()
}

var (
	_ Resolver = (*HTTPResolver)(nil)
	_ Resolver = NoopResolver{}
)
