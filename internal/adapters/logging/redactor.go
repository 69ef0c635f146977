// Package logging provides secure logging utilities with automatic redaction of sensitive data.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder for redacted sensitive data.
const RedactedValue = "[REDACTED]"

// defaultSensitiveFields are matched against lower-cased attribute keys, both
// exactly and as substrings. Identifiers such as certificate_name, key_id,
// thumbprint and secret_name are deliberately absent: operators need them.
var defaultSensitiveFields = []string{
	"password",
	"passphrase",
	"token",
	"private_key",
	"privatekey",
	"private-key",
	"secret_value",
	"credentials",
	"bearer",
	"authorization",
	"pfx",
	"plaintext",
}

// RedactorHandler wraps an slog.Handler to automatically redact sensitive fields.
type RedactorHandler struct {
	handler         slog.Handler
	sensitiveFields map[string]bool
}

// NewRedactorHandler creates a new handler that redacts sensitive fields.
// extra adds field names to the default set.
func NewRedactorHandler(handler slog.Handler, extra ...string) *RedactorHandler {
	fields := make(map[string]bool, len(defaultSensitiveFields)+len(extra))
	for _, f := range defaultSensitiveFields {
		fields[f] = true
	}
	for _, f := range extra {
		fields[strings.ToLower(f)] = true
	}

	return &RedactorHandler{
		handler:         handler,
		sensitiveFields: fields,
	}
}

// Enabled implements slog.Handler.
func (h *RedactorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler with sensitive data redaction.
//
//nolint:gocritic // Required by slog.Handler interface
func (h *RedactorHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(h.redactAttr(attr))
		return true
	})

	if err := h.handler.Handle(ctx, newRecord); err != nil {
		return fmt.Errorf("redactor handle failed: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *RedactorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redactedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redactedAttrs[i] = h.redactAttr(attr)
	}
	return &RedactorHandler{
		handler:         h.handler.WithAttrs(redactedAttrs),
		sensitiveFields: h.sensitiveFields,
	}
}

// WithGroup implements slog.Handler.
func (h *RedactorHandler) WithGroup(name string) slog.Handler {
	return &RedactorHandler{
		handler:         h.handler.WithGroup(name),
		sensitiveFields: h.sensitiveFields,
	}
}

// redactAttr redacts sensitive attributes recursively.
func (h *RedactorHandler) redactAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()

	if h.isSensitiveField(attr.Key) {
		return slog.String(attr.Key, RedactedValue)
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		redactedAttrs := make([]slog.Attr, len(group))
		for i, groupAttr := range group {
			redactedAttrs[i] = h.redactAttr(groupAttr)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redactedAttrs...)}

	case slog.KindString:
		return slog.String(attr.Key, redactSensitiveStrings(attr.Value.String()))
	}

	return attr
}

// isSensitiveField checks if a field name indicates sensitive data.
func (h *RedactorHandler) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)

	if h.sensitiveFields[lower] {
		return true
	}

	for sensitive := range h.sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}

	return false
}

// redactSensitiveStrings redacts PEM blocks and compact JOSE tokens wherever
// they appear, whatever the attribute is called.
func redactSensitiveStrings(value string) string {
	if strings.Contains(value, "-----BEGIN ") {
		return RedactedValue
	}

	// Compact JWS has three segments and compact JWE five.
	if dots := strings.Count(value, "."); (dots == 2 || dots == 4) && len(value) > 50 && !strings.ContainsAny(value, " /:") {
		return RedactedValue
	}

	return value
}

// NewSecureSlogLogger creates a new slog.Logger with automatic sensitive data redaction.
func NewSecureSlogLogger(handler slog.Handler) *slog.Logger {
	return slog.New(NewRedactorHandler(handler))
}
