package events

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var order []int
	bus.Subscribe("transaction.completed", func(ctx context.Context, e Event) {
		order = append(order, 1)
	})
	bus.Subscribe("transaction.completed", func(ctx context.Context, e Event) {
		order = append(order, 2)
	})
	bus.Subscribe("tier.changed", func(ctx context.Context, e Event) {
		t.Fatalf("unrelated handler invoked")
	})

	bus.Publish(context.Background(), TransactionCompleted{OrderNumber: "ORD-1"})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers in registration order, got %v", order)
	}
}

func TestBusRecoversFromPanickingHandler(t *testing.T) {
	bus := NewBus(zap.NewNop())

	delivered := false
	bus.Subscribe("points.adjusted", func(ctx context.Context, e Event) {
		panic("boom")
	})
	bus.Subscribe("points.adjusted", func(ctx context.Context, e Event) {
		delivered = true
	})

	bus.Publish(context.Background(), PointsAdjusted{Delta: -10})

	if !delivered {
		t.Fatalf("second handler should still run after a panic")
	}
}
