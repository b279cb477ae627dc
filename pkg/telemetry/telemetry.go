// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

// System exposes the process tracer and flushes spans on shutdown.
type System interface {
	Tracer() trace.Tracer
	Start(lc *lifecycle.Coordinator) error
}

type disabled struct {
	tracer trace.Tracer
}

func (d *disabled) Tracer() trace.Tracer               { return d.tracer }
func (d *disabled) Start(*lifecycle.Coordinator) error { return nil }

type otelSystem struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New builds the tracing system. A disabled config yields a no-op tracer;
// otherwise spans are batched to the OTLP/HTTP endpoint, or to stdout when
// no endpoint is set. The provider and propagators are installed globally.
func New(ctx context.Context, cfg *Config, version string, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "telemetry")

	if !cfg.Enabled {
		return &disabled{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		logger.Warn("tracing to stdout, no OTLP endpoint configured")
	}

	return &otelSystem{
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
		logger:   logger,
	}, nil
}

func (s *otelSystem) Tracer() trace.Tracer {
	return s.tracer
}

func (s *otelSystem) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting telemetry system")

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.provider.Shutdown(ctx); err != nil {
			s.logger.Error("tracer provider shutdown failed", "error", err)
			return
		}
		s.logger.Info("telemetry flushed")
	})

	return nil
}

func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}
