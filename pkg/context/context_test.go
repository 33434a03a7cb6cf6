package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	pctx "github.com/dorkodu/pharpub/pkg/context"
)

func TestBuildID(t *testing.T) {
	ctx := context.Background()
	if got := pctx.GetBuildID(ctx); got != "unknown-build" {
		t.Errorf("expected unknown-build, got %s", got)
	}

	ctx = pctx.WithBuildID(ctx, "")
	if id := pctx.GetBuildID(ctx); !strings.HasPrefix(id, "build_") {
		t.Errorf("expected generated build ID, got %s", id)
	}

	ctx = pctx.WithBuildID(context.Background(), "fixed")
	if id := pctx.GetBuildID(ctx); id != "fixed" {
		t.Errorf("expected fixed, got %s", id)
	}
}

func TestJob(t *testing.T) {
	ctx := pctx.WithJob(context.Background(), "app.phar")
	if got := pctx.GetJob(ctx); got != "app.phar" {
		t.Errorf("expected app.phar, got %s", got)
	}
	if got := pctx.GetJob(context.Background()); got != "unknown-job" {
		t.Errorf("expected unknown-job, got %s", got)
	}
}

func TestEnrichContext(t *testing.T) {
	parent := pctx.WithBuildID(context.Background(), "keep-me")
	ctx := pctx.EnrichContext(parent)

	if pctx.GetBuildID(ctx) != "keep-me" {
		t.Error("existing build ID must be preserved")
	}
	if time.Since(pctx.GetStartTime(ctx)) > time.Minute {
		t.Error("start time should be recent")
	}

	fields := pctx.TracingFields(ctx)
	if len(fields) != 2 || fields[0].Key != "build_id" || fields[0].Value != "keep-me" {
		t.Errorf("unexpected tracing fields %+v", fields)
	}
}

func TestValuesDoNotOverwriteEachOther(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	ctx := pctx.WithBuildID(context.Background(), "build_1")
	ctx = pctx.WithStartTime(ctx, start)
	ctx = pctx.WithJob(ctx, "app.phar")

	if got := pctx.GetBuildID(ctx); got != "build_1" {
		t.Errorf("expected build_1, got %s", got)
	}
	if got := pctx.GetJob(ctx); got != "app.phar" {
		t.Errorf("expected app.phar, got %s", got)
	}
	if !pctx.GetStartTime(ctx).Equal(start) {
		t.Errorf("expected start time %v, got %v", start, pctx.GetStartTime(ctx))
	}
	if pctx.GetDuration(ctx) < time.Hour {
		t.Errorf("expected duration of at least an hour, got %v", pctx.GetDuration(ctx))
	}
}
