package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/clock"
	customerdomain "github.com/stampkit/stampkit/internal/customer/domain"
	customerrepository "github.com/stampkit/stampkit/internal/customer/repository"
	"github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/ledger/repository"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db           *gorm.DB
	node         *snowflake.Node
	clock        *clock.FakeClock
	svc          *Service
	customerRepo customerdomain.Repository
	restaurantID snowflake.ID
	ctx          context.Context
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&customerdomain.Customer{}, &domain.PointLedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	customerRepo := customerrepository.Provide()

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Repo:         repository.Provide(),
		CustomerRepo: customerRepo,
	}).(*Service)

	restaurantID := node.Generate()
	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(restaurantID))

	return &ledgerFixture{
		db:           db,
		node:         node,
		clock:        fake,
		svc:          svc,
		customerRepo: customerRepo,
		restaurantID: restaurantID,
		ctx:          ctx,
	}
}

func (f *ledgerFixture) seedCustomer(t *testing.T, points int64) snowflake.ID {
	t.Helper()

	customer := customerdomain.Customer{
		ID:           f.node.Generate(),
		RestaurantID: f.restaurantID,
		Name:         "Dina",
		Points:       points,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	if err := f.customerRepo.Insert(f.ctx, f.db, &customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer.ID
}

// seedEntry inserts a raw ledger row with whatever balance snapshot the test
// wants, bypassing the service so drift can be staged deliberately.
func (f *ledgerFixture) seedEntry(t *testing.T, customerID snowflake.ID, entryType domain.EntryType, amount, balance int64) {
	t.Helper()

	entry := domain.PointLedgerEntry{
		ID:           f.node.Generate(),
		RestaurantID: f.restaurantID,
		CustomerID:   customerID,
		EntryType:    entryType,
		Amount:       amount,
		Balance:      balance,
		Source:       "test",
		CreatedAt:    f.clock.Now(),
	}
	f.clock.Advance(time.Second)
	if err := f.db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func (f *ledgerFixture) cachedPoints(t *testing.T, customerID snowflake.ID) int64 {
	t.Helper()

	customer, err := f.customerRepo.FindByID(f.ctx, f.db, f.restaurantID, customerID)
	if err != nil {
		t.Fatalf("load customer: %v", err)
	}
	return customer.Points
}

func TestRecalculateClampsNegativeRunAndRepairsSnapshots(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, -10)

	// A raw sum of -10: the expiry overdrew the balance and the stored
	// snapshot went negative with it.
	f.seedEntry(t, customerID, domain.EntryEarned, 50, 50)
	f.seedEntry(t, customerID, domain.EntrySpent, -20, 30)
	f.seedEntry(t, customerID, domain.EntryExpired, -40, -10)

	result, err := f.svc.Recalculate(f.ctx, customerID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	if result.NewBalance != 0 {
		t.Fatalf("expected clamped balance 0, got %d", result.NewBalance)
	}
	if result.OldBalance != -10 || result.Delta != 10 {
		t.Fatalf("expected old=-10 delta=10, got old=%d delta=%d", result.OldBalance, result.Delta)
	}
	if result.Status != domain.ReconcileIncreased {
		t.Fatalf("expected INCREASED, got %s", result.Status)
	}
	if result.ClampedSteps != 1 {
		t.Fatalf("expected 1 clamped step, got %d", result.ClampedSteps)
	}
	if result.CorrectedEntries != 1 {
		t.Fatalf("expected the expired entry's snapshot corrected, got %d", result.CorrectedEntries)
	}
	if result.TotalEarned != 50 || result.TotalSpent != -20 || result.TotalExpired != -40 {
		t.Fatalf("unexpected type totals: %+v", result)
	}

	if got := f.cachedPoints(t, customerID); got != 0 {
		t.Fatalf("cached balance not synced, got %d", got)
	}

	entries, err := f.svc.List(f.ctx, customerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries[2].Balance != 0 {
		t.Fatalf("expired entry snapshot should read 0, got %d", entries[2].Balance)
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 999)

	f.seedEntry(t, customerID, domain.EntryEarned, 100, 100)
	f.seedEntry(t, customerID, domain.EntrySpent, -30, 70)

	first, err := f.svc.Recalculate(f.ctx, customerID)
	if err != nil {
		t.Fatalf("first recalculate: %v", err)
	}
	if first.NewBalance != 70 || first.Status != domain.ReconcileDecreased {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := f.svc.Recalculate(f.ctx, customerID)
	if err != nil {
		t.Fatalf("second recalculate: %v", err)
	}
	if second.Status != domain.ReconcileUnchanged || second.Delta != 0 || second.CorrectedEntries != 0 {
		t.Fatalf("second run should be a no-op: %+v", second)
	}
}

func TestRecalculateEmptyLedgerZeroesBalance(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 120)

	result, err := f.svc.Recalculate(f.ctx, customerID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if result.NewBalance != 0 || result.EntriesReplayed != 0 {
		t.Fatalf("empty ledger should reconcile to 0, got %+v", result)
	}
	if got := f.cachedPoints(t, customerID); got != 0 {
		t.Fatalf("cached balance should be 0, got %d", got)
	}
}

func TestRecalculateUnknownCustomer(t *testing.T) {
	f := setupLedger(t)
	if _, err := f.svc.Recalculate(f.ctx, f.node.Generate()); err != domain.ErrCustomerNotFound {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

// failingCustomerRepo wraps the real repository but refuses to lock one
// specific customer, simulating a mid-batch failure.
type failingCustomerRepo struct {
	customerdomain.Repository
	failID snowflake.ID
}

func (r *failingCustomerRepo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*customerdomain.Customer, error) {
	if id == r.failID {
		return nil, errors.New("lock wait timeout")
	}
	return r.Repository.FindByIDForUpdate(ctx, db, restaurantID, id)
}

func TestRecalculateAllCollectsFailuresWithoutAborting(t *testing.T) {
	f := setupLedger(t)

	healthy := f.seedCustomer(t, 5)
	f.seedEntry(t, healthy, domain.EntryEarned, 40, 40)

	broken := f.seedCustomer(t, 0)
	untouched := f.seedCustomer(t, 10)
	f.seedEntry(t, untouched, domain.EntryEarned, 10, 10)

	f.svc.customerRepo = &failingCustomerRepo{Repository: f.customerRepo, failID: broken}

	batch, err := f.svc.RecalculateAll(f.ctx)
	if err != nil {
		t.Fatalf("recalculate all: %v", err)
	}

	if batch.Processed != 2 {
		t.Fatalf("expected 2 processed, got %d", batch.Processed)
	}
	if batch.Failed != 1 || len(batch.Failures) != 1 || batch.Failures[0].CustomerID != broken {
		t.Fatalf("expected one recorded failure for the broken customer: %+v", batch.Failures)
	}
	if batch.Corrected != 1 || batch.Unchanged != 1 {
		t.Fatalf("expected 1 corrected and 1 unchanged, got corrected=%d unchanged=%d", batch.Corrected, batch.Unchanged)
	}

	if got := f.cachedPoints(t, healthy); got != 40 {
		t.Fatalf("healthy customer balance not corrected, got %d", got)
	}
}
