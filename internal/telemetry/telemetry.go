// Package telemetry initializes OpenTelemetry tracing for the server.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/originate-group/common-mcp-server/internal/logger"
)

// Service owns the tracer provider lifecycle.
type Service struct {
	serviceName    string
	serviceVersion string
	otlpEndpoint   string
	tp             *sdktrace.TracerProvider
}

// NewService creates a telemetry service. An empty otlpEndpoint disables
// the exporter; spans are still created but not shipped anywhere.
func NewService(serviceName, serviceVersion, otlpEndpoint string) *Service {
	return &Service{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		otlpEndpoint:   otlpEndpoint,
	}
}

// Initialize sets up the global tracer provider.
func (s *Service) Initialize(ctx context.Context) error {
	// Empty schema URL avoids conflicts when merging with the default resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(s.serviceName),
			semconv.ServiceVersion(s.serviceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if s.otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(s.otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("exporting traces to %s", s.otlpEndpoint)
	}

	s.tp = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(s.tp)
	return nil
}

// Tracer returns a named tracer from the configured provider.
func (s *Service) Tracer(name string) trace.Tracer {
	if s.tp == nil {
		return otel.Tracer(name)
	}
	return s.tp.Tracer(name)
}

// Shutdown flushes and stops the tracer provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.tp.Shutdown(ctx)
}
