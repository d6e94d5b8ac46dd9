package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS so the portal can run over plain HTTP locally.
	IsDevelopment bool
	// HSTSMaxAge defaults to one year.
	HSTSMaxAge time.Duration
}

// Security sets the response headers every portal response carries. The API
// serves JSON to the portal frontend only, so nothing may frame it, cache it
// or load it from another site.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	maxAge := cfg.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hsts)
			}

			// Responses carry profiles and message history.
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects declared oversize bodies with the standard error
// envelope and caps streamed ones with http.MaxBytesReader.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
