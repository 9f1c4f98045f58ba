package events

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Event is a domain signal delivered synchronously to subscribers.
type Event interface {
	Name() string
}

// TransactionCompleted fires after a sale is recorded and its loyalty side
// effects (point credit, aggregates, tier check) have been applied.
type TransactionCompleted struct {
	RestaurantID  snowflake.ID
	TransactionID snowflake.ID
	CustomerID    snowflake.ID
	OrderNumber   string
	TotalAmount   int64
	PointsEarned  int64
	PointsUsed    int64
}

func (TransactionCompleted) Name() string { return "transaction.completed" }

// TierChanged fires when a customer's tier reference moves.
type TierChanged struct {
	RestaurantID snowflake.ID
	CustomerID   snowflake.ID
	OldTierID    snowflake.ID
	NewTierID    snowflake.ID
	OldTierName  string
	NewTierName  string
	Upgrade      bool
}

func (TierChanged) Name() string { return "tier.changed" }

// PointsAdjusted fires on manual ledger appends and reconciliation
// corrections of the cached balance.
type PointsAdjusted struct {
	RestaurantID snowflake.ID
	CustomerID   snowflake.ID
	Delta        int64
	NewBalance   int64
	Source       string
}

func (PointsAdjusted) Name() string { return "points.adjusted" }

// Handler processes one event. Handler errors are logged, never propagated;
// publishing must not fail the operation that emitted the event.
type Handler func(ctx context.Context, event Event)

// Bus is a synchronous in-process event bus. Subscribers run on the
// publisher's goroutine, after the emitting transaction has committed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

// NewBus builds an empty bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log.Named("events.bus"),
	}
}

// Subscribe registers a handler for the named event.
func (b *Bus) Subscribe(name string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], handler)
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber in registration order.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	handlers := b.handlers[event.Name()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked",
						zap.String("event", event.Name()),
						zap.Any("panic", r),
					)
				}
			}()
			handler(ctx, event)
		}()
	}
}
