package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// credentialKeys contains attribute keys whose values are always
// masked. The crawler carries an opaque session token as a cookie, and
// those values must never reach log output.
var credentialKeys = map[string]bool{
	"cookie":        true,
	"set-cookie":    true,
	"authorization": true,
	"session":       true,
	"session_token": true,
	"token":         true,
	"credential":    true,
	"client_id":     true,
	"client_secret": true,
	"password":      true,
	"secret":        true,
}

// credentialPatterns matches values that look like credentials
// regardless of the attribute key they arrive under.
var credentialPatterns = []*regexp.Regexp{
	// Session cookie assignments ("reddit_session=...").
	regexp.MustCompile(`(?i)^[a-z_]*session[a-z_]*=.+`),

	// Bearer and basic authorization values.
	regexp.MustCompile(`(?i)^(bearer|basic)\s+.+`),

	// Long opaque alphanumeric tokens.
	regexp.MustCompile(`^[A-Za-z0-9%_-]{40,}$`),
}

// MaskValue is the string used to replace masked values.
const MaskValue = "***REDACTED***"

// MaskingHandler wraps an slog.Handler and masks credential material in
// attribute values before records reach the underlying handler. It
// integrates with standard slog APIs and works with any underlying
// handler, text or JSON.
type MaskingHandler struct {
	// handler is the underlying slog handler that receives masked records.
	handler slog.Handler
}

// NewMaskingHandler creates a MaskingHandler wrapping the given
// handler. A nil handler falls back to slog.Default().Handler().
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given
// level. It delegates to the underlying handler.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added,
// masked first.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr masks a single attribute, recursively handling groups.
func (h *MaskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if credentialKeys[keyLower] || strings.Contains(keyLower, "token") || strings.Contains(keyLower, "secret") {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString && isCredentialValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}

	return a
}

// isCredentialValue checks if a value matches credential patterns.
func isCredentialValue(value string) bool {
	for _, pattern := range credentialPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger creates an slog.Logger whose output is credential-masked.
// Verbose selects LevelDebug; otherwise LevelInfo, so per-unit skip
// warnings always reach the operator.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskingHandler(textHandler))
}
