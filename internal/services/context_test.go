package services_test

import (
	"context"
	"testing"

	"imgsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithDocument(ctx, "guide/intro.md")
	ctx = services.WithStage(ctx, "fetch")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if doc, ok := services.DocumentFromContext(ctx); !ok || doc != "guide/intro.md" {
		t.Fatalf("unexpected document: %v %v", doc, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "fetch" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithDocument(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.DocumentFromContext(ctx); ok {
		t.Fatal("expected no document value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
