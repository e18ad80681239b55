package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose value is always masked. Most of
// them are request headers a site config may set for a crawl behind a
// login.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"private_key":         true,
	"secret_key":          true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
	"jsessionid":          true,
}

// sensitiveKeywords mask any key that contains them. The bare word "key"
// is not among them; it matches too much ("primary_key", "monkey").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitivePatterns mask a string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// Long opaque strings, typical of API keys
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	// AWS access key id
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler wraps an slog.Handler to sanitize sensitive information.
// It intercepts log records and sanitizes attribute values that match
// sensitive key names or value patterns before passing them to the
// underlying handler.
//
// URLs are logged on almost every crawl event, so a URL value is not masked
// as a whole: only its user info and the values of sensitive query
// parameters are replaced, keeping the page it names readable.
type SecureHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler

	// extraKeys are lower-cased keys masked in addition to sensitiveKeys,
	// typically the custom header names of a site config.
	extraKeys map[string]bool
}

// SecureOption configures a SecureHandler.
type SecureOption func(*SecureHandler)

// WithSensitiveKeys masks attributes with any of the given keys
// (case-insensitive). Use it for custom header names from the site config,
// such as "X-Staging-Key", that the built-in rules do not recognize.
func WithSensitiveKeys(keys ...string) SecureOption {
	return func(h *SecureHandler) {
		for _, k := range keys {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				h.extraKeys[k] = true
			}
		}
	}
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, the returned SecureHandler will use slog.Default().Handler().
func NewSecureHandler(handler slog.Handler, opts ...SecureOption) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &SecureHandler{handler: handler, extraKeys: make(map[string]bool)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SecureHandler{handler: h.handler.WithAttrs(h.sanitizeAttrs(attrs)), extraKeys: h.extraKeys}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), extraKeys: h.extraKeys}
}

func (h *SecureHandler) sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = h.sanitizeAttr(a)
	}
	return out
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(h.sanitizeAttrs(a.Value.Group())...)}
	}

	if h.isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	value := a.Value.String()
	if isSensitiveValue(value) {
		return slog.String(a.Key, MaskValue)
	}
	if redacted, ok := redactURL(value); ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

func (h *SecureHandler) isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return sensitiveKeys[key] || h.extraKeys[key] || containsSensitiveKeyword(key)
}

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// redactURL masks the user info and sensitive query values of an absolute
// http(s) URL. ok is false when value is not such a URL or has nothing to
// mask.
func redactURL(value string) (string, bool) {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", false
	}

	changed := false
	if u.User != nil {
		u.User = url.User(MaskValue)
		changed = true
	}

	if u.RawQuery != "" {
		query := u.Query()
		for name := range query {
			lower := strings.ToLower(name)
			if sensitiveKeys[lower] || containsSensitiveKeyword(lower) {
				query.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

// logLevel maps the verbose flag to a charmbracelet/log level.
func logLevel(verbose bool) charmlog.Level {
	if verbose {
		return charmlog.DebugLevel
	}
	return charmlog.WarnLevel
}

// NewSecureLogger returns a logger that masks sensitive attributes and
// renders lines with charmbracelet/log: Debug and above when verbose,
// otherwise Warn and above.
func NewSecureLogger(w io.Writer, verbose bool, opts ...SecureOption) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           logLevel(verbose),
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "headingscan",
	})
	return slog.New(NewSecureHandler(handler, opts...))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line,
// for log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool, opts ...SecureOption) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           logLevel(verbose),
		ReportTimestamp: true,
		Formatter:       charmlog.JSONFormatter,
	})
	return slog.New(NewSecureHandler(handler, opts...))
}
