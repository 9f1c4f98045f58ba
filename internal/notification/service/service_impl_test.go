package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/events"
	"github.com/stampkit/stampkit/internal/notification/domain"
	"github.com/stampkit/stampkit/internal/notification/repository"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordedPush struct {
	token string
	title string
	body  string
	data  map[string]string
}

type fakeSender struct {
	sent []recordedPush
}

func (f *fakeSender) Send(_ context.Context, token, title, body string, data map[string]string) error {
	f.sent = append(f.sent, recordedPush{token: token, title: title, body: body, data: data})
	return nil
}

func setupNotification(t *testing.T) (*Service, *fakeSender, *snowflake.Node, context.Context, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.PushSubscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	sender := &fakeSender{}
	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)),
		Repo:   repository.Provide(),
		Sender: sender,
	}).(*Service)

	restaurantID := node.Generate()
	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(restaurantID))
	return svc, sender, node, ctx, restaurantID
}

func TestSubscribeNotifyUnsubscribe(t *testing.T) {
	svc, sender, node, ctx, restaurantID := setupNotification(t)
	customerID := node.Generate()

	if _, err := svc.Subscribe(ctx, domain.SubscribeRequest{
		CustomerID: customerID,
		Token:      "device-token-1",
		Platform:   "Android",
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := svc.Subscribe(ctx, domain.SubscribeRequest{
		CustomerID: customerID,
		Token:      "device-token-2",
		Platform:   "ios",
	}); err != nil {
		t.Fatalf("subscribe second device: %v", err)
	}

	svc.NotifyCustomer(ctx, restaurantID, customerID, "Hello", "World", nil)
	if len(sender.sent) != 2 {
		t.Fatalf("expected delivery to both devices, got %d", len(sender.sent))
	}

	if err := svc.Unsubscribe(ctx, "device-token-1"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := svc.Unsubscribe(ctx, "device-token-1"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second unsubscribe, got %v", err)
	}

	sender.sent = nil
	svc.NotifyCustomer(ctx, restaurantID, customerID, "Hello", "Again", nil)
	if len(sender.sent) != 1 || sender.sent[0].token != "device-token-2" {
		t.Fatalf("expected delivery to the remaining device, got %+v", sender.sent)
	}
}

func TestTierChangedEventTriggersPush(t *testing.T) {
	svc, sender, node, ctx, restaurantID := setupNotification(t)
	customerID := node.Generate()

	if _, err := svc.Subscribe(ctx, domain.SubscribeRequest{
		CustomerID: customerID,
		Token:      "device-token-1",
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus := events.NewBus(zap.NewNop())
	RegisterSubscribers(bus, svc)

	bus.Publish(ctx, events.TierChanged{
		RestaurantID: restaurantID,
		CustomerID:   customerID,
		NewTierName:  "Gold",
		Upgrade:      true,
	})

	if len(sender.sent) != 1 {
		t.Fatalf("expected one push, got %d", len(sender.sent))
	}
	push := sender.sent[0]
	if push.title != "Congratulations!" || push.data["new_tier"] != "Gold" {
		t.Fatalf("unexpected push content: %+v", push)
	}
}
