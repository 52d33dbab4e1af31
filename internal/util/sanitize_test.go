package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHeadersStripsCredentials(t *testing.T) {
	in := map[string]string{
		"Authorization": "Bearer abc",
		"Cookie":        "session=xyz",
		"X-API-Key":     "k-123",
		"x-api-key":     "k-456",
		"Accept":        "application/json",
		"User-Agent":    "curl/8.0",
	}

	out := SanitizeHeaders(in)

	assert.NotContains(t, out, "Authorization")
	assert.NotContains(t, out, "Cookie")
	assert.NotContains(t, out, "X-API-Key")
	assert.NotContains(t, out, "x-api-key")
	assert.Equal(t, "application/json", out["Accept"])
	assert.Equal(t, "curl/8.0", out["User-Agent"])

	// input map is left alone
	assert.Equal(t, "Bearer abc", in["Authorization"])
}

func TestSanitizeHeadersNil(t *testing.T) {
	assert.Nil(t, SanitizeHeaders(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("", 5))
}
