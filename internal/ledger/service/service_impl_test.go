package service

import (
	"testing"
	"time"

	"github.com/stampkit/stampkit/internal/ledger/domain"
)

func TestAppendUpdatesCachedBalance(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 0)

	earned, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntryEarned,
		Amount:     120,
		Source:     "transaction",
	})
	if err != nil {
		t.Fatalf("append earned: %v", err)
	}
	if earned.Balance != 120 {
		t.Fatalf("expected snapshot 120, got %d", earned.Balance)
	}

	spent, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntrySpent,
		Amount:     -50,
	})
	if err != nil {
		t.Fatalf("append spent: %v", err)
	}
	if spent.Balance != 70 {
		t.Fatalf("expected snapshot 70, got %d", spent.Balance)
	}
	if spent.Source != "manual" {
		t.Fatalf("blank source should default to manual, got %q", spent.Source)
	}

	if got := f.cachedPoints(t, customerID); got != 70 {
		t.Fatalf("cached balance should be 70, got %d", got)
	}
}

func TestAppendClampsOverdraw(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 30)

	entry, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntryExpired,
		Amount:     -40,
		Source:     "expiry",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.Amount != -40 {
		t.Fatalf("movement must stay recorded in full, got %d", entry.Amount)
	}
	if entry.Balance != 0 {
		t.Fatalf("snapshot must clamp at 0, got %d", entry.Balance)
	}
	if got := f.cachedPoints(t, customerID); got != 0 {
		t.Fatalf("cached balance must clamp at 0, got %d", got)
	}
}

func TestAppendRejectsWrongSign(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 0)

	cases := []domain.AppendRequest{
		{CustomerID: customerID, EntryType: domain.EntryEarned, Amount: -5},
		{CustomerID: customerID, EntryType: domain.EntryEarned, Amount: 0},
		{CustomerID: customerID, EntryType: domain.EntrySpent, Amount: 5},
		{CustomerID: customerID, EntryType: domain.EntryExpired, Amount: 5},
		{CustomerID: customerID, EntryType: domain.EntryAdjusted, Amount: 0},
	}
	for _, req := range cases {
		if _, err := f.svc.Append(f.ctx, req); err != domain.ErrInvalidAmount {
			t.Fatalf("%s %d: expected ErrInvalidAmount, got %v", req.EntryType, req.Amount, err)
		}
	}

	if _, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  "BONUS",
		Amount:     10,
	}); err != domain.ErrInvalidEntryType {
		t.Fatalf("expected ErrInvalidEntryType, got %v", err)
	}
}

func TestAppendAdjustedAllowsBothSigns(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 10)

	if _, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntryAdjusted,
		Amount:     25,
		Source:     "support",
	}); err != nil {
		t.Fatalf("positive adjustment: %v", err)
	}
	entry, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntryAdjusted,
		Amount:     -15,
		Source:     "support",
	})
	if err != nil {
		t.Fatalf("negative adjustment: %v", err)
	}
	if entry.Balance != 20 {
		t.Fatalf("expected balance 20, got %d", entry.Balance)
	}
}

func TestExpireDueAppendsExpiredEntries(t *testing.T) {
	f := setupLedger(t)
	customerID := f.seedCustomer(t, 0)

	expiresAt := f.clock.Now().Add(24 * time.Hour)
	if _, err := f.svc.Append(f.ctx, domain.AppendRequest{
		CustomerID: customerID,
		EntryType:  domain.EntryEarned,
		Amount:     80,
		Source:     "transaction",
		ExpiresAt:  &expiresAt,
	}); err != nil {
		t.Fatalf("append earned: %v", err)
	}

	// Not due yet.
	applied, err := f.svc.ExpireDue(f.ctx, f.clock.Now(), 100)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if applied != 0 {
		t.Fatalf("nothing should expire yet, got %d", applied)
	}

	f.clock.Advance(48 * time.Hour)
	applied, err = f.svc.ExpireDue(f.ctx, f.clock.Now(), 100)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 expiry applied, got %d", applied)
	}
	if got := f.cachedPoints(t, customerID); got != 0 {
		t.Fatalf("expired balance should be 0, got %d", got)
	}

	// Already applied entries stay applied.
	applied, err = f.svc.ExpireDue(f.ctx, f.clock.Now(), 100)
	if err != nil {
		t.Fatalf("expire again: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expiry must be applied once, got %d", applied)
	}

	entries, err := f.svc.List(f.ctx, customerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[1].EntryType != domain.EntryExpired || entries[1].Amount != -80 {
		t.Fatalf("expected one EXPIRED -80 entry, got %+v", entries)
	}
}
