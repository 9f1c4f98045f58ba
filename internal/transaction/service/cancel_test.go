package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/stampkit/stampkit/internal/campaign/domain"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	rewarddomain "github.com/stampkit/stampkit/internal/reward/domain"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	"github.com/stampkit/stampkit/internal/transaction/domain"
	"gorm.io/gorm"
)

var allSteps = domain.CancelSteps{
	RefundPoints:        true,
	CancelCampaignUsage: true,
	CancelStamps:        true,
	CancelRewards:       true,
	CheckTierDowngrade:  true,
}

func TestCancelRestoresPreTransactionBalance(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	if _, err := f.ledgerSvc.Append(f.ctx, ledgerdomain.AppendRequest{
		CustomerID: customerID,
		EntryType:  ledgerdomain.EntryEarned,
		Amount:     50,
		Source:     "signup",
	}); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	balanceBefore := f.customer(t, customerID).Points

	txn, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-5001",
		PointsUsed:  30,
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Dinner", Quantity: 1, UnitPrice: 8000},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{
		TransactionID: txn.ID,
		Reason:        "order voided at register",
		Steps:         allSteps,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if result.PointsRevoked != 80 || result.PointsRefunded != 30 {
		t.Fatalf("expected revoked=80 refunded=30, got revoked=%d refunded=%d", result.PointsRevoked, result.PointsRefunded)
	}
	if result.NewPointsBalance != balanceBefore {
		t.Fatalf("balance must return to %d, got %d", balanceBefore, result.NewPointsBalance)
	}
	if got := f.customer(t, customerID).Points; got != balanceBefore {
		t.Fatalf("cached balance must return to %d, got %d", balanceBefore, got)
	}
	if result.Transaction.Status != domain.StatusCancelled || result.Transaction.CancelledAt == nil {
		t.Fatalf("transaction not marked cancelled: %+v", result.Transaction)
	}
	if result.Transaction.CancelReason != "order voided at register" {
		t.Fatalf("reason not recorded, got %q", result.Transaction.CancelReason)
	}

	customer := f.customer(t, customerID)
	if customer.TotalSpent != 0 || customer.VisitCount != 0 {
		t.Fatalf("aggregates must be restored, got spent=%d visits=%d", customer.TotalSpent, customer.VisitCount)
	}
}

func TestCancelTwiceIsAnError(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	txn, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-5002",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Tea", Quantity: 1, UnitPrice: 1500},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{TransactionID: txn.ID, Steps: allSteps}); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{TransactionID: txn.ID, Steps: allSteps}); err != domain.ErrAlreadyCancelled {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}

	if _, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{TransactionID: f.node.Generate(), Steps: allSteps}); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestCancelByOrderNumber(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	if _, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-5003",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Tea", Quantity: 1, UnitPrice: 1500},
		},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{
		OrderNumber: "ORD-5003",
		Steps:       domain.CancelSteps{RefundPoints: true},
	})
	if err != nil {
		t.Fatalf("cancel by order number: %v", err)
	}
	if result.Transaction.OrderNumber != "ORD-5003" {
		t.Fatalf("wrong transaction cancelled: %+v", result.Transaction)
	}
}

func TestCancelReturnsStampsAndRevokesRewards(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	campaign, err := f.campaignSvc.Create(f.ctx, campaigndomain.CreateCampaignRequest{
		Name:        "Coffee Card",
		BuyQuantity: 2,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	// Earn stamps with one sale, then redeem them on a second sale that
	// also grants a reward.
	if _, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-6001",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Coffee", Quantity: 4, UnitPrice: 2000},
		},
	}); err != nil {
		t.Fatalf("first sale: %v", err)
	}

	second, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-6002",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Coffee", Quantity: 1, UnitPrice: 2000},
		},
		Redemptions: []domain.StampRedemption{{CampaignID: campaign.ID, Stamps: 2}},
	})
	if err != nil {
		t.Fatalf("second sale: %v", err)
	}
	if _, err := f.rewardSvc.Grant(f.ctx, rewarddomain.GrantRewardRequest{
		CustomerID:    customerID,
		CampaignID:    &campaign.ID,
		TransactionID: &second.ID,
		Name:          "Free Coffee",
	}); err != nil {
		t.Fatalf("grant reward: %v", err)
	}

	result, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{
		TransactionID: second.ID,
		Steps:         allSteps,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if result.UsagesCancelled != 1 || result.StampsReturned != 2 {
		t.Fatalf("expected 1 usage/2 stamps returned, got %d/%d", result.UsagesCancelled, result.StampsReturned)
	}
	if result.RewardsRevoked != 1 {
		t.Fatalf("expected 1 reward revoked, got %d", result.RewardsRevoked)
	}

	progress, err := f.campaignSvc.Progress(f.ctx, campaign.ID, customerID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	// The cancelled sale's items no longer qualify and its redemption is
	// gone: 4 purchased, 2 stamps earned, none used.
	if progress.TotalPurchased != 4 || progress.StampsUsed != 0 || progress.StampsAvailable != 2 {
		t.Fatalf("unexpected progress after cancel: %+v", progress)
	}
}

func TestCancelAppliesTierDowngrade(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	minSpent := int64(0)
	bronze, err := f.tierSvc.Create(f.ctx, tierdomain.CreateTierRequest{
		Name:          "Bronze",
		Level:         0,
		MinTotalSpent: &minSpent,
	})
	if err != nil {
		t.Fatalf("create bronze: %v", err)
	}
	silverSpend := int64(5000)
	silver, err := f.tierSvc.Create(f.ctx, tierdomain.CreateTierRequest{
		Name:          "Silver",
		Level:         1,
		MinTotalSpent: &silverSpend,
	})
	if err != nil {
		t.Fatalf("create silver: %v", err)
	}

	txn, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-7001",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Banquet", Quantity: 1, UnitPrice: 6000},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.customer(t, customerID).TierID; got == nil || *got != silver.ID {
		t.Fatalf("expected Silver before cancel")
	}

	result, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{
		TransactionID: txn.ID,
		Steps:         allSteps,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !result.TierDowngraded {
		t.Fatalf("expected a downgrade")
	}
	if got := f.customer(t, customerID).TierID; got == nil || *got != bronze.ID {
		t.Fatalf("expected Bronze after cancel, got %v", got)
	}
}

// failingRewardService forces the reward step to error so rollback can be
// observed.
type failingRewardService struct {
	rewarddomain.Service
}

func (f *failingRewardService) RevokeByTransaction(ctx context.Context, tx *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, error) {
	return 0, errors.New("reward store unavailable")
}

func TestCancelIsAtomicWhenAStepFails(t *testing.T) {
	f := setup(t)
	customerID := f.seedCustomer(t)

	txn, err := f.svc.Create(f.ctx, domain.CreateTransactionRequest{
		CustomerID:  customerID,
		OrderNumber: "ORD-8001",
		Items: []domain.CreateTransactionItem{
			{ProductID: f.node.Generate(), Name: "Dinner", Quantity: 1, UnitPrice: 8000},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	balanceBefore := f.customer(t, customerID).Points

	f.svc.rewardSvc = &failingRewardService{Service: f.rewardSvc}

	if _, err := f.svc.Cancel(f.ctx, domain.CancelTransactionRequest{
		TransactionID: txn.ID,
		Steps:         allSteps,
	}); err == nil {
		t.Fatalf("expected cancel to fail")
	}

	// Nothing from the earlier steps may persist.
	if got := f.customer(t, customerID).Points; got != balanceBefore {
		t.Fatalf("points reversal leaked through rollback: %d != %d", got, balanceBefore)
	}
	reloaded, err := f.svc.GetByID(f.ctx, txn.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != domain.StatusCompleted {
		t.Fatalf("status must remain COMPLETED after rollback, got %s", reloaded.Status)
	}
	entries, err := f.ledgerSvc.List(f.ctx, customerID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("no compensation entries may persist, got %d", len(entries))
	}
}
