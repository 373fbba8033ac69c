package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"wagerledger/config"
	"wagerledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the wagering services
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	betsCounter          metric.Int64Counter
	stakedCounter        metric.Float64Counter
	paidOutCounter       metric.Float64Counter
	lockBusyCounter      metric.Int64Counter
	ledgerGroupsCounter  metric.Int64Counter
	ledgerOpsCounter     metric.Int64Counter
	natsPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return mp.markInitialized()
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case ExporterStdout:
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		log.Info("Using stdout metric exporter")

	case ExporterOTLP:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case ExporterNone:
		log.Info("Metrics export disabled (exporter_type='none')")
		return mp.markInitialized()

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMS)*time.Millisecond),
	)
	return mp.start(reader)
}

// start builds the meter provider over reader and creates the instruments
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	// Schemaless so the merge never conflicts with the SDK's default schema URL
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("wagerledger")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) markInitialized() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.betsCounter, err = mp.meter.Int64Counter(
		BetsTotal,
		metric.WithDescription("Total number of settled rounds"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bets counter: %w", err)
	}

	// Amounts are exported as floats; the ledger keeps the exact values
	mp.stakedCounter, err = mp.meter.Float64Counter(
		StakedAmount,
		metric.WithDescription("Total amount staked on settled rounds"),
	)
	if err != nil {
		return fmt.Errorf("failed to create staked counter: %w", err)
	}

	mp.paidOutCounter, err = mp.meter.Float64Counter(
		PaidOutAmount,
		metric.WithDescription("Total amount paid out on settled rounds"),
	)
	if err != nil {
		return fmt.Errorf("failed to create paid out counter: %w", err)
	}

	mp.lockBusyCounter, err = mp.meter.Int64Counter(
		LockBusyTotal,
		metric.WithDescription("Requests refused because the game lock was held"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create lock busy counter: %w", err)
	}

	mp.ledgerGroupsCounter, err = mp.meter.Int64Counter(
		LedgerGroupsTotal,
		metric.WithDescription("Total number of ledger operation groups applied directly"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger groups counter: %w", err)
	}

	mp.ledgerOpsCounter, err = mp.meter.Int64Counter(
		LedgerOperationsTotal,
		metric.WithDescription("Total number of ledger operations applied directly"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger operations counter: %w", err)
	}

	mp.natsPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBet records a settled round
func (mp *MetricsProvider) RecordBet(ctx context.Context, gameType models.GameType, status models.RoundStatus, asset string, stake, payout decimal.Decimal) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelGame, string(gameType)),
		attribute.String(LabelStatus, string(status)),
		attribute.String(LabelAsset, asset),
	)
	mp.betsCounter.Add(ctx, 1, attrs)
	mp.stakedCounter.Add(ctx, stake.InexactFloat64(), attrs)
	mp.paidOutCounter.Add(ctx, payout.InexactFloat64(), attrs)
}

// RecordLockBusy records a request refused on lock contention
func (mp *MetricsProvider) RecordLockBusy(ctx context.Context, gameType models.GameType) {
	if !mp.isEnabled() {
		return
	}

	mp.lockBusyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(LabelGame, string(gameType)),
	))
}

// RecordLedgerGroup records a directly applied operation group
func (mp *MetricsProvider) RecordLedgerGroup(ctx context.Context, operations int, alreadyApplied bool) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelAlreadyApplied, strconv.FormatBool(alreadyApplied)),
	)
	mp.ledgerGroupsCounter.Add(ctx, 1, attrs)
	mp.ledgerOpsCounter.Add(ctx, int64(operations), attrs)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsPublishedCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(LabelEventType, eventType),
	))
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
