package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	documentKey contextKey = "document"
	stageKey    contextKey = "stage"
)

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDocument annotates context with the document currently being processed,
// relative to the document root.
func WithDocument(ctx context.Context, doc string) context.Context {
	if doc == "" {
		return ctx
	}
	return context.WithValue(ctx, documentKey, doc)
}

// DocumentFromContext returns the document path if present.
func DocumentFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(documentKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
