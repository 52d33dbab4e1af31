package util

import "strings"

// Header keys that must never reach an event's details bag.
var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
}

// SanitizeHeaders returns a copy of headers with credential-bearing keys
// removed. Matching is case-insensitive; the original map is untouched.
func SanitizeHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			continue
		}
		out[k] = v
	}
	return out
}

// Truncate caps s at max bytes. Evidence fields carry at most the first
// 500 characters of suspicious content.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
