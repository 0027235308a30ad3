package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped values set by the API middleware.
type ContextKey string

const (
	// SubmitterContextKey holds the authenticated token subject.
	SubmitterContextKey ContextKey = "submitter"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithSubmitter records the authenticated subject on the context.
func WithSubmitter(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, SubmitterContextKey, subject)
}

// GetSubmitter returns the authenticated subject, if any.
func GetSubmitter(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubmitterContextKey).(string)
	return subject, ok && subject != ""
}

// generateTraceID returns 32 hex characters. If crypto/rand fails it falls
// back to a random UUID with the dashes removed.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "uuid")
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b)
}
