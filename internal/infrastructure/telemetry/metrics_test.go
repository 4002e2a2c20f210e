package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestSettlementMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewSettlementMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.ObligationCreated(ctx, "USD")
	m.PaymentApplied(ctx, "USD", "PARTIAL")
	m.PaymentApplied(ctx, "USD", "PAID")
	m.OperationFailed(ctx, "apply_payment", "VALIDATION")
	m.VersionConflict(ctx, "apply_payment")
	m.SideEffectDropped(ctx, "emit")
	m.SideEffectFailed(ctx, "audit")

	totals := collectSums(t, reader)
	assert.Equal(t, int64(1), totals["ledger.obligations.created"])
	assert.Equal(t, int64(2), totals["ledger.payments.applied"])
	assert.Equal(t, int64(1), totals["ledger.operations.failed"])
	assert.Equal(t, int64(1), totals["ledger.version_conflicts"])
	assert.Equal(t, int64(1), totals["ledger.side_effects.dropped"])
	assert.Equal(t, int64(1), totals["ledger.side_effects.failed"])
}

func TestNewNopSettlementMetrics(t *testing.T) {
	m := NewNopSettlementMetrics()
	assert.NotPanics(t, func() { m.PaymentApplied(context.Background(), "EUR", "PAID") })
}

func TestMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, mp.Meter(MeterName))
	assert.NoError(t, mp.Shutdown(context.Background()))

	var nilProvider *MeterProvider
	assert.NotNil(t, nilProvider.Meter(MeterName))
}
