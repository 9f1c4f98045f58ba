package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *PointLedgerEntry) error
	ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]PointLedgerEntry, error)
	ListByCustomerForUpdate(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]PointLedgerEntry, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, entryID snowflake.ID, balance int64) error
	ListExpirable(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, before time.Time, limit int) ([]PointLedgerEntry, error)
	MarkExpiryApplied(ctx context.Context, db *gorm.DB, entryID snowflake.ID) error
	SumByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID, entryType EntryType) (int64, error)
}

// AppendRequest describes a manual or system-originated ledger movement.
// Expiry is optional and only meaningful on EARNED entries.
type AppendRequest struct {
	CustomerID    snowflake.ID
	EntryType     EntryType
	Amount        int64
	Source        string
	Description   string
	TransactionID *snowflake.ID
	ExpiresAt     *time.Time
}

// ReconcileStatus summarizes the direction of a balance correction.
type ReconcileStatus string

const (
	ReconcileUnchanged ReconcileStatus = "UNCHANGED"
	ReconcileIncreased ReconcileStatus = "INCREASED"
	ReconcileDecreased ReconcileStatus = "DECREASED"
)

// ReconcileResult reports the outcome of replaying one customer's ledger.
type ReconcileResult struct {
	CustomerID       snowflake.ID    `json:"customer_id,string"`
	OldBalance       int64           `json:"old_balance"`
	NewBalance       int64           `json:"new_balance"`
	Delta            int64           `json:"delta"`
	Status           ReconcileStatus `json:"status"`
	EntriesReplayed  int             `json:"entries_replayed"`
	CorrectedEntries int             `json:"corrected_entries"`
	ClampedSteps     int             `json:"clamped_steps"`
	TotalEarned      int64           `json:"total_earned"`
	TotalSpent       int64           `json:"total_spent"`
	TotalExpired     int64           `json:"total_expired"`
	TotalAdjusted    int64           `json:"total_adjusted"`
}

// BatchFailure records a customer whose reconciliation failed. Failures do
// not abort the batch; the remaining customers are still processed.
type BatchFailure struct {
	CustomerID snowflake.ID `json:"customer_id,string"`
	Error      string       `json:"error"`
}

type BatchReconcileResult struct {
	Processed int               `json:"processed"`
	Corrected int               `json:"corrected"`
	Unchanged int               `json:"unchanged"`
	Failed    int               `json:"failed"`
	Results   []ReconcileResult `json:"results"`
	Failures  []BatchFailure    `json:"failures,omitempty"`
}

type Service interface {
	// Append validates and records a movement, updating the customer's
	// cached balance under a row lock.
	Append(ctx context.Context, req AppendRequest) (PointLedgerEntry, error)

	// AppendTx is Append running inside a caller-owned transaction. The
	// caller must already hold the customer row lock.
	AppendTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req AppendRequest) (PointLedgerEntry, error)

	// Recalculate replays one customer's ledger in chronological order,
	// repairs drifted balance snapshots and the cached customer balance.
	Recalculate(ctx context.Context, customerID snowflake.ID) (ReconcileResult, error)

	// ReconcileTx is Recalculate inside a caller-owned transaction, used
	// by compensation flows that must resync the balance atomically with
	// their own writes.
	ReconcileTx(ctx context.Context, tx *gorm.DB, restaurantID, customerID snowflake.ID) (ReconcileResult, error)

	// RecalculateAll runs Recalculate for every customer of the restaurant.
	// Individual failures are collected, never fatal to the batch.
	RecalculateAll(ctx context.Context) (BatchReconcileResult, error)

	// List returns a customer's ledger entries, oldest first.
	List(ctx context.Context, customerID snowflake.ID) ([]PointLedgerEntry, error)

	// ExpireDue applies expiry to EARNED entries whose ExpiresAt has
	// passed, appending one EXPIRED entry per source entry.
	ExpireDue(ctx context.Context, before time.Time, limit int) (int, error)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidEntryType  = errors.New("invalid_entry_type")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidSource     = errors.New("invalid_source")
	ErrCustomerNotFound  = errors.New("customer_not_found")
)
