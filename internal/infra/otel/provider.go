// backend/internal/infra/otel/provider.go
package otel

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options は tracing 初期化の設定です。
type Options struct {
	ServiceName string
	// OTLP/HTTP の送信先 URL。空なら tracing 無効
	Endpoint string
	// 0 < ratio <= 1。範囲外は 1（全件）として扱う
	SampleRatio float64
}

// ShutdownFunc flushes pending spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Setup は OTLP/HTTP exporter 付きの TracerProvider をグローバルに登録します。
// Endpoint が空の場合は何もせず no-op の ShutdownFunc を返します。
func Setup(ctx context.Context, o Options) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	endpoint := strings.TrimSpace(o.Endpoint)
	if endpoint == "" {
		log.Printf("[otel] tracing disabled (no endpoint)")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(o.ServiceName)))
	if err != nil {
		return noop, err
	}

	ratio := o.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Printf("[otel] export error: %v", err)
	}))

	log.Printf("[otel] tracing enabled service=%s endpoint=%s ratio=%.2f", o.ServiceName, endpoint, ratio)
	return func(ctx context.Context) error {
		log.Printf("[otel] flushing spans")
		return tp.Shutdown(ctx)
	}, nil
}
