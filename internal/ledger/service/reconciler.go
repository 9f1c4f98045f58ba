package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/events"
	"github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recalculate replays the customer's ledger oldest-first and repairs every
// derived value that drifted: per-entry balance snapshots and the cached
// customer balance. The replay clamps at zero after each step, so a ledger
// whose raw sum is negative still reconciles to a non-negative balance.
func (s *Service) Recalculate(ctx context.Context, customerID snowflake.ID) (domain.ReconcileResult, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.ReconcileResult{}, domain.ErrInvalidRestaurant
	}
	if customerID == 0 {
		return domain.ReconcileResult{}, domain.ErrInvalidCustomer
	}

	var result domain.ReconcileResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.ReconcileTx(ctx, tx, restaurantID, customerID)
		return txErr
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	s.metrics.RecordReconcileRun(ctx, "single")
	s.metrics.RecordReconcileDrift(ctx, string(result.Status))

	if result.Delta != 0 {
		s.log.Info("balance corrected",
			zap.String("customer_id", customerID.String()),
			zap.Int64("old_balance", result.OldBalance),
			zap.Int64("new_balance", result.NewBalance),
			zap.Int("corrected_entries", result.CorrectedEntries),
			zap.Int("clamped_steps", result.ClampedSteps))

		if s.bus != nil {
			s.bus.Publish(ctx, events.PointsAdjusted{
				RestaurantID: restaurantID,
				CustomerID:   customerID,
				Delta:        result.Delta,
				NewBalance:   result.NewBalance,
				Source:       "reconcile",
			})
		}
	}

	return result, nil
}

// ReconcileTx performs the replay against a caller-owned transaction. The
// customer row is locked for the duration.
func (s *Service) ReconcileTx(ctx context.Context, tx *gorm.DB, restaurantID, customerID snowflake.ID) (domain.ReconcileResult, error) {
	customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, customerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ReconcileResult{}, domain.ErrCustomerNotFound
		}
		return domain.ReconcileResult{}, err
	}

	entries, err := s.repo.ListByCustomerForUpdate(ctx, tx, restaurantID, customerID)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{
		CustomerID: customerID,
		OldBalance: customer.Points,
	}

	var running int64
	for _, entry := range entries {
		running += entry.Amount
		if running < 0 {
			running = 0
			result.ClampedSteps++
		}

		switch entry.EntryType {
		case domain.EntryEarned:
			result.TotalEarned += entry.Amount
		case domain.EntrySpent:
			result.TotalSpent += entry.Amount
		case domain.EntryExpired:
			result.TotalExpired += entry.Amount
		case domain.EntryAdjusted:
			result.TotalAdjusted += entry.Amount
		}

		if entry.Balance != running {
			if err := s.repo.UpdateBalance(ctx, tx, entry.ID, running); err != nil {
				return domain.ReconcileResult{}, err
			}
			result.CorrectedEntries++
		}
	}

	result.EntriesReplayed = len(entries)
	result.NewBalance = running
	result.Delta = result.NewBalance - result.OldBalance

	switch {
	case result.Delta > 0:
		result.Status = domain.ReconcileIncreased
	case result.Delta < 0:
		result.Status = domain.ReconcileDecreased
	default:
		result.Status = domain.ReconcileUnchanged
	}

	if customer.Points != result.NewBalance {
		customer.Points = result.NewBalance
		customer.UpdatedAt = s.clock.Now()
		if err := s.customerRepo.UpdateAggregates(ctx, tx, customer); err != nil {
			return domain.ReconcileResult{}, err
		}
	}

	return result, nil
}

// RecalculateAll walks every customer of the restaurant in ID-ordered
// batches. A customer that fails to reconcile is recorded and skipped; one
// bad ledger never blocks the rest of the run.
func (s *Service) RecalculateAll(ctx context.Context) (domain.BatchReconcileResult, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.BatchReconcileResult{}, domain.ErrInvalidRestaurant
	}

	batchSize := s.loyalty.Current().ReconcileBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var batch domain.BatchReconcileResult
	var afterID snowflake.ID
	for {
		ids, err := s.customerRepo.ListIDs(ctx, s.db, restaurantID, afterID, batchSize)
		if err != nil {
			return batch, err
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			result, err := s.Recalculate(ctx, id)
			if err != nil {
				batch.Failed++
				batch.Failures = append(batch.Failures, domain.BatchFailure{
					CustomerID: id,
					Error:      err.Error(),
				})
				s.log.Warn("reconcile customer failed",
					zap.String("customer_id", id.String()),
					zap.Error(err))
				continue
			}

			batch.Processed++
			if result.Status == domain.ReconcileUnchanged {
				batch.Unchanged++
			} else {
				batch.Corrected++
			}
			batch.Results = append(batch.Results, result)
		}

		afterID = ids[len(ids)-1]
		if len(ids) < batchSize {
			break
		}
	}

	s.metrics.RecordReconcileRun(ctx, "all")
	return batch, nil
}
