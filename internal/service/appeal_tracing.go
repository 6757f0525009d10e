package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

const tracerName = "github.com/noah-isme/sma-appeals-api/internal/service"

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) AppealServiceOption {
	return func(s *AppealService) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (s *AppealService) startSpan(ctx context.Context, operation Operation, principal *models.Principal, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("appeal.operation", string(operation))}
	if key != "" {
		attrs = append(attrs, attribute.String("appeal.key", key))
	}
	if principal != nil {
		attrs = append(attrs, attribute.String("appeal.actor_role", string(principal.Role)))
	}
	return s.tracer.Start(ctx, "appeal."+string(operation), trace.WithAttributes(attrs...))
}

// endSpan marks server-side failures as span errors; client errors only carry their code.
func endSpan(span trace.Span, err error) {
	if err != nil {
		appErr := appErrors.FromError(err)
		span.SetAttributes(attribute.String("appeal.error_code", appErr.Code))
		if appErr.Status >= 500 {
			span.RecordError(err)
			span.SetStatus(codes.Error, appErr.Message)
		}
	}
	span.End()
}
