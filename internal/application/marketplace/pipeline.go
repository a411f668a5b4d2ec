// backend/internal/application/marketplace/pipeline.go
package marketplace

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// errStageSkipped lets an optional stage report that it had nothing to do.
var errStageSkipped = errors.New("stage skipped")

// stage is one step of an ordered mutation. Only required stages can abort
// the pipeline; an optional stage that fails leaves its output unset.
type stage[S any] struct {
	name     string
	required bool
	run      func(ctx context.Context, st *S) error
}

// runStages executes stages in order and returns the first required failure.
func runStages[S any](ctx context.Context, op string, stages []stage[S], st *S) error {
	for _, s := range stages {
		sctx, span := tracer.Start(ctx, op+"."+s.name)
		span.SetAttributes(attribute.Bool("stage.required", s.required))
		start := time.Now()

		err := s.run(sctx, st)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			log.Printf("[%s] stage=%s ok elapsed=%s", op, s.name, elapsed)
		case errors.Is(err, errStageSkipped):
			span.SetAttributes(attribute.Bool("stage.skipped", true))
			log.Printf("[%s] stage=%s skipped", op, s.name)
		case !s.required:
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("stage.degraded", true))
			log.Printf("[%s] stage=%s degraded elapsed=%s err=%v", op, s.name, elapsed, err)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			log.Printf("[%s] stage=%s abort elapsed=%s err=%v", op, s.name, elapsed, err)
			return err
		}
		span.End()
	}
	return nil
}
