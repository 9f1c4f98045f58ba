package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	ledgerEntries      metric.Int64Counter
	reconcileRuns      metric.Int64Counter
	reconcileDrift     metric.Int64Counter
	stampQueries       metric.Int64Counter
	cancellations      metric.Int64Counter
	tierChanges        metric.Int64Counter
	notificationsSent  metric.Int64Counter
	notificationErrors metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "stampkit"
	}
	meter := provider.Meter(name)

	ledgerEntries, err := meter.Int64Counter("stampkit_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	reconcileRuns, err := meter.Int64Counter("stampkit_reconcile_runs_total")
	if err != nil {
		return nil, err
	}
	reconcileDrift, err := meter.Int64Counter("stampkit_reconcile_drift_total")
	if err != nil {
		return nil, err
	}
	stampQueries, err := meter.Int64Counter("stampkit_stamp_queries_total")
	if err != nil {
		return nil, err
	}
	cancellations, err := meter.Int64Counter("stampkit_transaction_cancellations_total")
	if err != nil {
		return nil, err
	}
	tierChanges, err := meter.Int64Counter("stampkit_tier_changes_total")
	if err != nil {
		return nil, err
	}
	notificationsSent, err := meter.Int64Counter("stampkit_notifications_sent_total")
	if err != nil {
		return nil, err
	}
	notificationErrors, err := meter.Int64Counter("stampkit_notification_errors_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerEntries:      ledgerEntries,
		reconcileRuns:      reconcileRuns,
		reconcileDrift:     reconcileDrift,
		stampQueries:       stampQueries,
		cancellations:      cancellations,
		tierChanges:        tierChanges,
		notificationsSent:  notificationsSent,
		notificationErrors: notificationErrors,
	}, nil
}

// RecordLedgerEntry increments ledger entry counts by entry type.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, entryType, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entry_type", strings.TrimSpace(entryType)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileRun increments reconciliation runs, split by mode.
func (m *Metrics) RecordReconcileRun(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.reconcileRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileDrift counts customers whose cached balance drifted.
func (m *Metrics) RecordReconcileDrift(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.reconcileDrift.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStampQuery increments stamp progress computations.
func (m *Metrics) RecordStampQuery(ctx context.Context) {
	if m == nil {
		return
	}
	m.stampQueries.Add(ctx, 1)
}

// RecordCancellation increments transaction cancellation counts.
func (m *Metrics) RecordCancellation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.cancellations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTierChange increments tier transition counts.
func (m *Metrics) RecordTierChange(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("direction", strings.TrimSpace(direction)))
	m.tierChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification counts push deliveries and failures.
func (m *Metrics) RecordNotification(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.notificationsSent.Add(ctx, 1)
		return
	}
	m.notificationErrors.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"entry_type": {},
	"source":     {},
	"mode":       {},
	"status":     {},
	"outcome":    {},
	"direction":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
