package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/internal/reward/domain"
	"github.com/stampkit/stampkit/internal/reward/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupReward(t *testing.T) (*Service, *snowflake.Node, context.Context, snowflake.ID) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.CustomerReward{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)

	restaurantID := node.Generate()
	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(restaurantID))
	return svc, node, ctx, restaurantID
}

func TestGrantRedeemLifecycle(t *testing.T) {
	svc, node, ctx, _ := setupReward(t)
	customerID := node.Generate()

	granted, err := svc.Grant(ctx, domain.GrantRewardRequest{
		CustomerID: customerID,
		Name:       "Free Espresso",
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if granted.Status != domain.StatusAvailable {
		t.Fatalf("expected AVAILABLE, got %s", granted.Status)
	}

	redeemed, err := svc.Redeem(ctx, granted.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.Status != domain.StatusRedeemed || redeemed.RedeemedAt == nil {
		t.Fatalf("expected REDEEMED with timestamp, got %+v", redeemed)
	}

	if _, err := svc.Redeem(ctx, granted.ID); err != domain.ErrNotRedeemable {
		t.Fatalf("double redeem should fail, got %v", err)
	}
}

func TestRevokeByTransactionSparesRedeemedRewards(t *testing.T) {
	svc, node, ctx, restaurantID := setupReward(t)
	customerID := node.Generate()
	transactionID := node.Generate()

	available, err := svc.Grant(ctx, domain.GrantRewardRequest{
		CustomerID:    customerID,
		TransactionID: &transactionID,
		Name:          "Free Croissant",
	})
	if err != nil {
		t.Fatalf("grant available: %v", err)
	}

	consumed, err := svc.Grant(ctx, domain.GrantRewardRequest{
		CustomerID:    customerID,
		TransactionID: &transactionID,
		Name:          "Free Latte",
	})
	if err != nil {
		t.Fatalf("grant consumed: %v", err)
	}
	if _, err := svc.Redeem(ctx, consumed.ID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	revoked, err := svc.RevokeByTransaction(ctx, nil, restaurantID, transactionID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("expected exactly 1 revoked, got %d", revoked)
	}

	rewards, err := svc.ListByCustomer(ctx, customerID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	statuses := map[snowflake.ID]domain.Status{}
	for _, reward := range rewards {
		statuses[reward.ID] = reward.Status
	}
	if statuses[available.ID] != domain.StatusRevoked {
		t.Fatalf("available reward should be revoked, got %s", statuses[available.ID])
	}
	if statuses[consumed.ID] != domain.StatusRedeemed {
		t.Fatalf("redeemed reward must stay redeemed, got %s", statuses[consumed.ID])
	}
}
