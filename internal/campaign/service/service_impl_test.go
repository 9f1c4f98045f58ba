package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/campaign/domain"
	"github.com/stampkit/stampkit/internal/campaign/repository"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	transactiondomain "github.com/stampkit/stampkit/internal/transaction/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type campaignFixture struct {
	db           *gorm.DB
	node         *snowflake.Node
	clock        *clock.FakeClock
	svc          *Service
	restaurantID snowflake.ID
	ctx          context.Context
}

func setupCampaign(t *testing.T) *campaignFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Campaign{},
		&domain.CampaignProduct{},
		&domain.TransactionCampaignUsage{},
		&transactiondomain.Transaction{},
		&transactiondomain.TransactionItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)

	restaurantID := node.Generate()
	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(restaurantID))

	return &campaignFixture{
		db:           db,
		node:         node,
		clock:        fake,
		svc:          svc,
		restaurantID: restaurantID,
		ctx:          ctx,
	}
}

type seededItem struct {
	productID snowflake.ID
	quantity  int64
	isFree    bool
}

func (f *campaignFixture) seedTransaction(t *testing.T, customerID snowflake.ID, status transactiondomain.Status, items ...seededItem) snowflake.ID {
	t.Helper()

	txn := transactiondomain.Transaction{
		ID:           f.node.Generate(),
		RestaurantID: f.restaurantID,
		CustomerID:   customerID,
		OrderNumber:  fmt.Sprintf("ORD-%d", f.node.Generate()),
		Status:       status,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	for _, item := range items {
		txn.Items = append(txn.Items, transactiondomain.TransactionItem{
			ID:        f.node.Generate(),
			ProductID: item.productID,
			Quantity:  item.quantity,
			IsFree:    item.isFree,
		})
	}
	if err := f.db.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn.ID
}

func (f *campaignFixture) createCampaign(t *testing.T, buyQty int64, maxUsage *int64, productIDs ...snowflake.ID) domain.Campaign {
	t.Helper()

	campaign, err := f.svc.Create(f.ctx, domain.CreateCampaignRequest{
		Name:                "Coffee Card",
		BuyQuantity:         buyQty,
		MaxUsagePerCustomer: maxUsage,
		ProductIDs:          productIDs,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return campaign
}

func TestProgressBuyFiveCard(t *testing.T) {
	f := setupCampaign(t)
	campaign := f.createCampaign(t, 5, nil)
	customerID := f.node.Generate()
	product := f.node.Generate()

	// 23 qualifying items across three completed sales.
	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: product, quantity: 10})
	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: product, quantity: 9})
	txnID := f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: product, quantity: 4})

	// 3 stamps already redeemed.
	if err := f.db.Create(&domain.TransactionCampaignUsage{
		ID:            f.node.Generate(),
		RestaurantID:  f.restaurantID,
		CampaignID:    campaign.ID,
		CustomerID:    customerID,
		TransactionID: txnID,
		StampsUsed:    3,
		CreatedAt:     f.clock.Now(),
	}).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}

	if progress.TotalPurchased != 23 {
		t.Fatalf("expected 23 purchased, got %d", progress.TotalPurchased)
	}
	if progress.StampsEarned != 4 {
		t.Fatalf("expected 4 earned, got %d", progress.StampsEarned)
	}
	if progress.StampsUsed != 3 {
		t.Fatalf("expected 3 used, got %d", progress.StampsUsed)
	}
	if progress.StampsAvailable != 1 {
		t.Fatalf("expected 1 available, got %d", progress.StampsAvailable)
	}
	if progress.Progress != 3 || progress.Remaining != 2 {
		t.Fatalf("expected progress 3/remaining 2, got %d/%d", progress.Progress, progress.Remaining)
	}
	if !progress.CanEarnMore {
		t.Fatalf("no usage limit set, CanEarnMore must be true")
	}
}

func TestProgressZeroBuyQuantityDefaultsToOne(t *testing.T) {
	f := setupCampaign(t)
	campaign := f.createCampaign(t, 0, nil)
	customerID := f.node.Generate()

	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: f.node.Generate(), quantity: 7})

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.BuyQuantity != 1 {
		t.Fatalf("buyQuantity 0 must behave as 1, got %d", progress.BuyQuantity)
	}
	if progress.StampsEarned != 7 {
		t.Fatalf("expected 7 earned, got %d", progress.StampsEarned)
	}
}

func TestProgressExcludesFreeItemsAndCancelledSales(t *testing.T) {
	f := setupCampaign(t)
	campaign := f.createCampaign(t, 2, nil)
	customerID := f.node.Generate()
	product := f.node.Generate()

	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted,
		seededItem{productID: product, quantity: 4},
		seededItem{productID: product, quantity: 2, isFree: true},
	)
	f.seedTransaction(t, customerID, transactiondomain.StatusCancelled,
		seededItem{productID: product, quantity: 6},
	)

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TotalPurchased != 4 {
		t.Fatalf("free and cancelled items must not count, got %d", progress.TotalPurchased)
	}
	if progress.StampsEarned != 2 {
		t.Fatalf("expected 2 earned, got %d", progress.StampsEarned)
	}
}

func TestProgressProductFilter(t *testing.T) {
	f := setupCampaign(t)
	coffee := f.node.Generate()
	tea := f.node.Generate()
	campaign := f.createCampaign(t, 3, nil, coffee)
	customerID := f.node.Generate()

	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted,
		seededItem{productID: coffee, quantity: 5},
		seededItem{productID: tea, quantity: 8},
	)

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TotalPurchased != 5 {
		t.Fatalf("only filtered products count, got %d", progress.TotalPurchased)
	}
	if progress.StampsEarned != 1 {
		t.Fatalf("expected 1 earned, got %d", progress.StampsEarned)
	}
}

func TestProgressUsageLimitCapsAvailability(t *testing.T) {
	f := setupCampaign(t)
	limit := int64(2)
	campaign := f.createCampaign(t, 1, &limit)
	customerID := f.node.Generate()

	txnID := f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: f.node.Generate(), quantity: 10})
	if err := f.db.Create(&domain.TransactionCampaignUsage{
		ID:            f.node.Generate(),
		RestaurantID:  f.restaurantID,
		CampaignID:    campaign.ID,
		CustomerID:    customerID,
		TransactionID: txnID,
		StampsUsed:    2,
		CreatedAt:     f.clock.Now(),
	}).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.CanEarnMore {
		t.Fatalf("limit reached, CanEarnMore must be false")
	}
	if progress.StampsAvailable != 0 {
		t.Fatalf("availability must cap at the usage limit, got %d", progress.StampsAvailable)
	}
}

func TestRedeemAndCancelUsageRoundTrip(t *testing.T) {
	f := setupCampaign(t)
	campaign := f.createCampaign(t, 2, nil)
	customerID := f.node.Generate()

	txnID := f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: f.node.Generate(), quantity: 6})

	usage, err := f.svc.Redeem(f.ctx, domain.RedeemStampsRequest{
		CampaignID:    campaign.ID,
		CustomerID:    customerID,
		TransactionID: txnID,
		Stamps:        2,
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if usage.StampsUsed != 2 {
		t.Fatalf("expected 2 stamps used, got %d", usage.StampsUsed)
	}

	progress, err := f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.StampsAvailable != 1 {
		t.Fatalf("expected 1 available after redeem, got %d", progress.StampsAvailable)
	}

	// Over-redemption is rejected.
	if _, err := f.svc.Redeem(f.ctx, domain.RedeemStampsRequest{
		CampaignID:    campaign.ID,
		CustomerID:    customerID,
		TransactionID: txnID,
		Stamps:        5,
	}); err != domain.ErrInsufficientStamps {
		t.Fatalf("expected ErrInsufficientStamps, got %v", err)
	}

	usages, returned, err := f.svc.CancelUsageByTransaction(f.ctx, nil, f.restaurantID, txnID)
	if err != nil {
		t.Fatalf("cancel usage: %v", err)
	}
	if usages != 1 || returned != 2 {
		t.Fatalf("expected 1 usage cancelled returning 2 stamps, got %d/%d", usages, returned)
	}

	progress, err = f.svc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress after cancel: %v", err)
	}
	if progress.StampsUsed != 0 || progress.StampsAvailable != 3 {
		t.Fatalf("expected usage cleared, got used=%d available=%d", progress.StampsUsed, progress.StampsAvailable)
	}
}

func TestProgressSummaryTotalsAcrossCampaigns(t *testing.T) {
	f := setupCampaign(t)
	customerID := f.node.Generate()
	product := f.node.Generate()

	f.createCampaign(t, 2, nil)
	f.createCampaign(t, 5, nil)
	f.seedTransaction(t, customerID, transactiondomain.StatusCompleted, seededItem{productID: product, quantity: 10})

	summary, err := f.svc.ProgressSummary(f.ctx, customerID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Campaigns) != 2 {
		t.Fatalf("expected 2 campaign records, got %d", len(summary.Campaigns))
	}
	// 10/2 = 5 stamps plus 10/5 = 2 stamps.
	if summary.TotalStampsAvailable != 7 {
		t.Fatalf("expected 7 total available, got %d", summary.TotalStampsAvailable)
	}
}

func TestCreateRejectsInvalidDateRange(t *testing.T) {
	f := setupCampaign(t)

	start := f.clock.Now()
	end := start.Add(-time.Hour)
	_, err := f.svc.Create(f.ctx, domain.CreateCampaignRequest{
		Name:        "Backwards",
		BuyQuantity: 1,
		StartDate:   &start,
		EndDate:     &end,
	})
	if err != domain.ErrInvalidDateRange {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}
