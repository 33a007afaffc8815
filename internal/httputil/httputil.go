// Package httputil carries the HTTP plumbing shared by the Plex, Radarr
// and Sonarr clients: timeout defaults, endpoint URL validation and
// response hygiene helpers.
package httputil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// IntegrationTimeout bounds every call to an external media service.
// Plex section listings on large libraries are the slow case.
const IntegrationTimeout = 30 * time.Second

// MaxResponseBody caps how much of an upstream response is read.
const MaxResponseBody = 2 << 20 // 2 MiB

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// DrainBody consumes and closes a response body so the underlying
// connection goes back to the keep-alive pool.
func DrainBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// ValidateIntegrationURL rejects base URLs that cannot address a media
// service: empty, unparseable, non-http(s), or missing a host.
func ValidateIntegrationURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// Truncate renders an upstream body for an error message, cut to
// maxRunes runes with an ellipsis. Rune-safe so multi-byte titles in
// error payloads don't get split.
func Truncate(b []byte, maxRunes int) string {
	r := []rune(string(b))
	if len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return string(r)
}
