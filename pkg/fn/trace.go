package fn

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/LuisaMG01/course-vectorization/pkg/fn"

// Traced runs f inside a span called name. A returned error is recorded
// on the span and marks it failed.
func Traced[T any](ctx context.Context, name string, f func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	defer span.End()
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	v, err := f(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}
