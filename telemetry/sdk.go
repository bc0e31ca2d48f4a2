// SDK wiring: ConfigureSDK installs a real OpenTelemetry MeterProvider and
// TracerProvider as the process-wide otel defaults, in place of the no-op
// implementations Counter/Histogram/StartSpan otherwise fall back to.
// Grounded on the teacher's telemetry/otel.go NewOTelProvider (resource +
// sdktrace.NewTracerProvider(WithBatcher) + sdkmetric.NewMeterProvider(WithReader)
// + otel.Set*Provider), scaled down to a CLI process with no OTLP collector
// to push to: traces export to a writer via the teacher's own stdouttrace
// dependency (reinstated here rather than dropped) and metrics collect
// in-process via a ManualReader a future status/metrics surface could read.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SDK holds the constructed providers so a caller can flush and close them
// on process exit.
type SDK struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// ConfigureSDK installs serviceName-scoped metric and trace providers as the
// process-wide otel defaults. traceOut receives exported spans; pass nil to
// leave tracing on the no-op default (a dry-run or test process that
// doesn't want span output).
func ConfigureSDK(serviceName string, traceOut io.Writer) (*SDK, error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	sdk := &SDK{meterProvider: mp}

	if traceOut != nil {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithoutTimestamps())
		if err != nil {
			return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		sdk.tracerProvider = tp
	}

	return sdk, nil
}

// Shutdown flushes and closes every provider ConfigureSDK installed.
func (s *SDK) Shutdown(ctx context.Context) error {
	var errs []error
	if s.meterProvider != nil {
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.tracerProvider != nil {
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry: shutdown errors: %v", errs)
	}
	return nil
}
