package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypeRoundSettled  EventType = "round_settled"
	EventTypeSeedRotated   EventType = "seed_rotated"
)

// Event is the base interface for all events. Key is stable across retries
// of the same logical change and is used for downstream dedupe.
type Event interface {
	Type() EventType
	Key() string
}

// BalanceChangeEvent is emitted once per applied ledger operation
type BalanceChangeEvent struct {
	OperationID string          `json:"operation_id"`
	UserID      int64           `json:"user_id"`
	Asset       string          `json:"asset"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	OldBalance  decimal.Decimal `json:"old_balance"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	RoundID     *uuid.UUID      `json:"round_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

func (e BalanceChangeEvent) Key() string {
	return fmt.Sprintf("%s:%s", EventTypeBalanceChange, e.OperationID)
}

// RoundSettledEvent is emitted when a round reaches a terminal status
type RoundSettledEvent struct {
	RoundID    uuid.UUID       `json:"round_id"`
	UserID     int64           `json:"user_id"`
	GameType   string          `json:"game_type"`
	Asset      string          `json:"asset"`
	Stake      decimal.Decimal `json:"stake"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Status     string          `json:"status"`
}

func (e RoundSettledEvent) Type() EventType {
	return EventTypeRoundSettled
}

func (e RoundSettledEvent) Key() string {
	return fmt.Sprintf("%s:%s", EventTypeRoundSettled, e.RoundID)
}

// SeedRotatedEvent is emitted when a user's seed pair is retired and replaced
type SeedRotatedEvent struct {
	UserID             int64  `json:"user_id"`
	RevealedSeedPairID int64  `json:"revealed_seed_pair_id"`
	RevealedServerSeed string `json:"revealed_server_seed"`
	NextSeedPairID     int64  `json:"next_seed_pair_id"`
	NextServerSeedHash string `json:"next_server_seed_hash"`
}

func (e SeedRotatedEvent) Type() EventType {
	return EventTypeSeedRotated
}

func (e SeedRotatedEvent) Key() string {
	return fmt.Sprintf("%s:%d", EventTypeSeedRotated, e.RevealedSeedPairID)
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range []EventType{EventTypeBalanceChange, EventTypeRoundSettled, EventTypeSeedRotated} {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers. Handlers run
// asynchronously and a panicking handler does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"eventKey":     event.Key(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the events queued so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events to main event bus")

	// Handlers outlive the request, so they must not inherit its cancellation
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		if b.real != nil {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
