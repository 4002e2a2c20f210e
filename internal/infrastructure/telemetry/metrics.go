package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MeterName is the instrumentation scope for settlement metrics
const MeterName = "settlement-engine"

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates a MeterProvider exporting over OTLP/gRPC on a periodic reader.
// If metrics are disabled, Meter falls back to the global no-op meter.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger, config: cfg}

	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exportInterval := cfg.ExportInterval
	if exportInterval == 0 {
		exportInterval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", exportInterval),
	)
	return mp, nil
}

// Shutdown flushes pending metrics and stops the reader.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp == nil || mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// Metric attribute keys
var (
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrCurrency  = attribute.Key("currency")
	AttrStatus    = attribute.Key("status")
)

// SettlementMetrics holds the counters recorded by the settlement engine and
// the side-effect dispatcher.
type SettlementMetrics struct {
	obligationsCreated metric.Int64Counter
	paymentsApplied    metric.Int64Counter
	operationFailures  metric.Int64Counter
	versionConflicts   metric.Int64Counter
	dispatchDropped    metric.Int64Counter
	dispatchFailed     metric.Int64Counter
}

// NewSettlementMetrics creates the settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	m := &SettlementMetrics{}
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.obligationsCreated, "ledger.obligations.created", "Obligations created"},
		{&m.paymentsApplied, "ledger.payments.applied", "Payments applied to obligations"},
		{&m.operationFailures, "ledger.operations.failed", "Settlement operations rejected or failed, by error kind"},
		{&m.versionConflicts, "ledger.version_conflicts", "Optimistic version checks that lost a race"},
		{&m.dispatchDropped, "ledger.side_effects.dropped", "Side-effect jobs dropped because the queue was full"},
		{&m.dispatchFailed, "ledger.side_effects.failed", "Side-effect handlers that returned an error or panicked"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("{count}"))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}
	return m, nil
}

// NewNopSettlementMetrics returns instruments bound to the global meter provider,
// which is a no-op unless a provider was installed.
func NewNopSettlementMetrics() *SettlementMetrics {
	m, err := NewSettlementMetrics(otel.GetMeterProvider().Meter(MeterName))
	if err != nil {
		panic(err)
	}
	return m
}

// ObligationCreated counts a new obligation
func (m *SettlementMetrics) ObligationCreated(ctx context.Context, currency string) {
	m.obligationsCreated.Add(ctx, 1, metric.WithAttributes(AttrCurrency.String(currency)))
}

// PaymentApplied counts a committed payment by the obligation's resulting status
func (m *SettlementMetrics) PaymentApplied(ctx context.Context, currency, status string) {
	m.paymentsApplied.Add(ctx, 1, metric.WithAttributes(AttrCurrency.String(currency), AttrStatus.String(status)))
}

// OperationFailed counts a rejected or failed operation by error kind
func (m *SettlementMetrics) OperationFailed(ctx context.Context, operation, kind string) {
	m.operationFailures.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation), AttrOutcome.String(kind)))
}

// VersionConflict counts a lost compare-and-swap
func (m *SettlementMetrics) VersionConflict(ctx context.Context, operation string) {
	m.versionConflicts.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

// SideEffectDropped counts a job rejected by a full dispatcher queue
func (m *SettlementMetrics) SideEffectDropped(ctx context.Context, kind string) {
	m.dispatchDropped.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(kind)))
}

// SideEffectFailed counts a handler failure
func (m *SettlementMetrics) SideEffectFailed(ctx context.Context, kind string) {
	m.dispatchFailed.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(kind)))
}
