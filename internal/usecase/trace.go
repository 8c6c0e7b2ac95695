package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
)

var syncTracer = otel.Tracer("league-sync/internal/usecase")

// startSyncSpan opens a child span for one reconciler operation. Without a recording parent
// the context is returned unchanged so library callers pay nothing for tracing.
func startSyncSpan(ctx context.Context, op string, src source.Source, kind entity.Kind) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, parent
	}
	attrs := []attribute.KeyValue{attribute.String("sync.source", src.String())}
	if kind != "" {
		attrs = append(attrs, attribute.String("sync.kind", kind.String()))
	}
	return syncTracer.Start(ctx, "usecase.Reconciler."+op, trace.WithAttributes(attrs...))
}

// annotateSpan copies the report counters onto the active span and marks it failed on err.
func annotateSpan(ctx context.Context, rep Report, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Int("sync.batches", rep.Batches),
		attribute.Int("sync.added", rep.Added),
		attribute.Int("sync.updated", rep.Updated),
		attribute.Int("sync.skipped", rep.Skipped),
		attribute.Int("sync.completed", rep.Completed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
