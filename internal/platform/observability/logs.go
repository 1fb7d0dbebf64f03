package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap/zapcore"

	"github.com/georgemunganga/shopledger/internal/platform/config"
)

// SetupLogs installs a global OTLP/HTTP logger provider and returns a zap core
// that forwards records to it. Without an endpoint the core is nil.
func SetupLogs(ctx context.Context, cfg *config.Config) (zapcore.Core, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if cfg.OtelEndpoint == "" {
		return nil, noop, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.OtelEndpoint),
		otlploghttp.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)

	core := otelzap.NewCore(config.ServiceName, otelzap.WithLoggerProvider(provider))
	return core, provider.Shutdown, nil
}
