package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twopelicans/portal/internal/model"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// caller is filled in by Auth further down the chain so the access log
// line can name who made the request.
type caller struct {
	userID string
	role   model.Role
}

type callerKey struct{}

func withCaller(ctx context.Context) (context.Context, *caller) {
	c := &caller{}
	return context.WithValue(ctx, callerKey{}, c), c
}

// recordCaller attributes the request to p. No-op outside Logger.
func recordCaller(ctx context.Context, p *model.Principal) {
	c, ok := ctx.Value(callerKey{}).(*caller)
	if !ok || p == nil || p.Profile == nil {
		return
	}
	c.userID = p.Profile.ID
	c.role = p.Profile.Role
}

// sensitiveParams are replaced before a query string is logged.
var sensitiveParams = []string{"token", "access_token", "password", "email", SessionCookie}

// redactQuery returns the raw query with credential values masked.
// Headers and cookies are never logged at all.
func redactQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "[unparseable]"
	}
	for key := range values {
		for _, s := range sensitiveParams {
			if strings.EqualFold(key, s) {
				values[key] = []string{"redacted"}
			}
		}
	}
	return values.Encode()
}

// Logger returns a middleware that writes one access log line per request,
// attributed to the portal user when the session resolved.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, who := withCaller(r.Context())
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if q := redactQuery(r.URL); q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			if traceID := GetTraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			if who.userID != "" {
				attrs = append(attrs,
					slog.String("user_id", who.userID),
					slog.String("role", string(who.role)),
				)
			}

			level := slog.LevelInfo
			switch {
			case wrapped.status >= 500:
				level = slog.LevelError
			case wrapped.status >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(ctx, level, "http request", attrs...)
		})
	}
}
