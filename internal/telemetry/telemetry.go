// Package telemetry installs the tracer provider for one dcms run and holds
// the span helpers the CLI, API client and complaint service share.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dcms-nepal/dcms/internal/faults"
)

// ServiceName identifies dcms spans in a collector.
const ServiceName = "dcms"

const (
	cliTracer    = "dcms/cli"
	flushTimeout = 5 * time.Second
	maxBatch     = 512
)

// ServiceVersion is copied from the binary's Version before Init.
var ServiceVersion = "dev"

var newExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	if path := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_CERTIFICATE")); path != "" {
		pool, err := certPool(path)
		if err != nil {
			return nil, err
		}
		options = append(options, otlptracehttp.WithTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool}))
	}
	return otlptracehttp.New(ctx, options...)
}

// Init installs the global tracer provider. Spans go to
// OTEL_EXPORTER_OTLP_ENDPOINT, else to the configured otel_endpoint. With
// neither, spans are still created for log correlation but never leave the
// process. The returned shutdown flushes pending spans and is safe to call twice.
func Init(ctx context.Context, configured string) (func(), error) {
	options := []sdktrace.TracerProviderOption{sdktrace.WithResource(runResource())}
	if endpoint := exportEndpoint(configured); endpoint != "" {
		exporter, err := newExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter for %s: %w", endpoint, err)
		}
		options = append(options, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(flushTimeout),
			sdktrace.WithMaxExportBatchSize(maxBatch),
		))
	}

	provider := sdktrace.NewTracerProvider(options...)
	otel.SetTracerProvider(provider)

	return sync.OnceFunc(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			otel.Handle(err)
		}
	}), nil
}

// StartCommand opens the root span of one CLI invocation. args must already
// be redacted.
func StartCommand(ctx context.Context, command string, args []string, runID string) (context.Context, trace.Span) {
	return otel.Tracer(cliTracer).Start(ctx, "cli."+command, trace.WithAttributes(
		attribute.String("args_redacted", strings.Join(args, " ")),
		attribute.String("run_id", runID),
	))
}

// RecordError marks span failed with a redacted message and the fault kind of err.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	message := Redact(err.Error())
	span.AddEvent("exception", trace.WithAttributes(attribute.String("exception.message", message)))
	span.SetStatus(codes.Error, message)
	span.SetAttributes(attribute.String("fault_kind", string(faults.KindOf(err))))
}

func runResource() *resource.Resource {
	version := strings.TrimSpace(ServiceVersion)
	if version == "" {
		version = "dev"
	}
	environment := strings.ToLower(strings.TrimSpace(os.Getenv("DCMS_ENV")))
	if environment == "" {
		environment = "dev"
	}
	return resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
		attribute.String("deployment.environment", environment),
	)
}

func exportEndpoint(configured string) string {
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	endpoint := strings.TrimSpace(configured)
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return endpoint
}

func certPool(path string) (*x509.CertPool, error) {
	// #nosec G304 -- path comes from OTEL_EXPORTER_OTLP_CERTIFICATE.
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read otlp certificate %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("otlp certificate %q holds no certificates", path)
	}
	return pool, nil
}
