package service

import (
	"context"

	"wagerledger/models"

	"github.com/shopspring/decimal"
)

// NoopMetrics discards all measurements
type NoopMetrics struct{}

func (NoopMetrics) RecordBet(context.Context, models.GameType, models.RoundStatus, string, decimal.Decimal, decimal.Decimal) {
}

func (NoopMetrics) RecordLockBusy(context.Context, models.GameType) {}

func (NoopMetrics) RecordLedgerGroup(context.Context, int, bool) {}
