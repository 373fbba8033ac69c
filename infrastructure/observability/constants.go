package observability

// Metric name prefixes
const (
	MetricPrefix = "wagerledger"
)

// Metric names
const (
	// Wagering metrics
	BetsTotal     = MetricPrefix + ".bets.total"
	StakedAmount  = MetricPrefix + ".bets.staked"
	PaidOutAmount = MetricPrefix + ".bets.paid_out"
	LockBusyTotal = MetricPrefix + ".lock.busy_total"

	// Ledger metrics
	LedgerGroupsTotal     = MetricPrefix + ".ledger.groups_total"
	LedgerOperationsTotal = MetricPrefix + ".ledger.operations_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelGame           = "game"
	LabelStatus         = "status"
	LabelAsset          = "asset"
	LabelAlreadyApplied = "already_applied"
	LabelEventType      = "event_type"
)

// Exporter types
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)
