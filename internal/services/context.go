package services

import "context"

type contextKey string

const (
	entryIDKey   contextKey = "entry_id"
	sessionIDKey contextKey = "session_id"
	workflowKey  contextKey = "workflow"
)

// WithEntryID annotates context with the queue entry identifier.
func WithEntryID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, entryIDKey, id)
}

// EntryIDFromContext extracts the queue entry identifier if present.
func EntryIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(entryIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithSessionID annotates context with the owning scan session.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the scan session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(sessionIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithWorkflow annotates context with the running workflow name
// (scan/review/process/precache).
func WithWorkflow(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowKey, name)
}

// WorkflowFromContext returns the workflow name if present.
func WorkflowFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(workflowKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
