package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		os      string
		browser string
		devType string
	}{
		{
			"windows chrome",
			"Mozilla/5.0 (Windows NT 10.0; Win64) AppleWebKit/537.36 Chrome/122.0 Safari/537.36",
			"Windows", "Chrome", "desktop",
		},
		{
			"mac safari",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15",
			"macOS", "Safari", "desktop",
		},
		{
			"iphone",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15",
			"iOS", "Unknown", "mobile",
		},
		{
			"android firefox",
			"Mozilla/5.0 (Android 14; Mobile; rv:123.0) Gecko/123.0 Firefox/123.0",
			"Android", "Firefox", "mobile",
		},
		{
			"edge on windows",
			"Mozilla/5.0 (Windows NT 10.0) Chrome/122.0 Safari/537.36 Edg/122.0",
			"Windows", "Edge", "desktop",
		},
		{"empty", "", "Unknown", "Unknown", "Unknown"},
		{"garbage", "x", "Unknown", "Unknown", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseDevice(tt.ua)
			assert.Equal(t, tt.os, info.OS)
			assert.Equal(t, tt.browser, info.Browser)
			assert.Equal(t, tt.devType, info.Type)
		})
	}
}
