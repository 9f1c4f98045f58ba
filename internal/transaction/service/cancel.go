package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/events"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	"github.com/stampkit/stampkit/internal/transaction/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Cancel reverses a COMPLETED transaction. Every requested compensation
// step runs inside one unit of work; a failure in any step rolls back all
// of them, so partial compensation never persists.
func (s *Service) Cancel(ctx context.Context, req domain.CancelTransactionRequest) (domain.CancelResult, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.CancelResult{}, domain.ErrInvalidRestaurant
	}
	if req.TransactionID == 0 && strings.TrimSpace(req.OrderNumber) == "" {
		return domain.CancelResult{}, domain.ErrNotFound
	}

	var (
		result     domain.CancelResult
		customerID snowflake.ID
		tierChange *events.TierChanged
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.resolveForUpdate(ctx, tx, restaurantID, req)
		if err != nil {
			return err
		}
		if txn.Status == domain.StatusCancelled {
			return domain.ErrAlreadyCancelled
		}
		customerID = txn.CustomerID

		customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, txn.CustomerID)
		if err != nil {
			return err
		}

		if req.Steps.RefundPoints {
			if txn.PointsEarned > 0 {
				if _, err := s.ledgerSvc.AppendTx(ctx, tx, restaurantID, ledgerdomain.AppendRequest{
					CustomerID:    txn.CustomerID,
					EntryType:     ledgerdomain.EntryAdjusted,
					Amount:        -txn.PointsEarned,
					Source:        "cancellation",
					Description:   "earned points revoked for cancelled order " + txn.OrderNumber,
					TransactionID: &txn.ID,
				}); err != nil {
					return err
				}
				result.PointsRevoked = txn.PointsEarned
			}
			if txn.PointsUsed > 0 {
				if _, err := s.ledgerSvc.AppendTx(ctx, tx, restaurantID, ledgerdomain.AppendRequest{
					CustomerID:    txn.CustomerID,
					EntryType:     ledgerdomain.EntryAdjusted,
					Amount:        txn.PointsUsed,
					Source:        "cancellation",
					Description:   "spent points refunded for cancelled order " + txn.OrderNumber,
					TransactionID: &txn.ID,
				}); err != nil {
					return err
				}
				result.PointsRefunded = txn.PointsUsed
			}

			// Resync so the cached balance and every snapshot agree with
			// the ledger after the offsetting entries.
			recon, err := s.ledgerSvc.ReconcileTx(ctx, tx, restaurantID, txn.CustomerID)
			if err != nil {
				return err
			}
			result.NewPointsBalance = recon.NewBalance
		}

		if req.Steps.CancelCampaignUsage || req.Steps.CancelStamps {
			// Stamps themselves are derived from usage rows and COMPLETED
			// purchases; deleting the usages is the entire rollback.
			usages, stamps, err := s.campaignSvc.CancelUsageByTransaction(ctx, tx, restaurantID, txn.ID)
			if err != nil {
				return err
			}
			result.UsagesCancelled = usages
			result.StampsReturned = stamps
		}

		if req.Steps.CancelRewards {
			revoked, err := s.rewardSvc.RevokeByTransaction(ctx, tx, restaurantID, txn.ID)
			if err != nil {
				return err
			}
			result.RewardsRevoked = revoked
		}

		// Reload: the refund step rewrote the cached balance.
		customer, err = s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, txn.CustomerID)
		if err != nil {
			return err
		}

		customer.TotalSpent -= txn.TotalAmount
		if customer.TotalSpent < 0 {
			customer.TotalSpent = 0
		}
		if customer.VisitCount > 0 {
			customer.VisitCount--
		}

		if req.Steps.CheckTierDowngrade {
			eval, err := s.tierSvc.Evaluate(ctx, tx, restaurantID, customer.TierID, tierdomain.Stats{
				TotalSpent: customer.TotalSpent,
				VisitCount: customer.VisitCount,
				Points:     customer.Points,
			})
			if err != nil {
				return err
			}
			if eval.Direction == tierdomain.TransitionDowngrade {
				result.TierDowngraded = true
				result.PreviousTierID = customer.TierID

				change := events.TierChanged{
					RestaurantID: restaurantID,
					CustomerID:   customer.ID,
				}
				if eval.Previous != nil {
					change.OldTierID = eval.Previous.ID
					change.OldTierName = eval.Previous.Name
				}
				if eval.Eligible != nil {
					change.NewTierID = eval.Eligible.ID
					change.NewTierName = eval.Eligible.Name
					customer.TierID = &eval.Eligible.ID
					result.NewTierID = &eval.Eligible.ID
				} else {
					customer.TierID = nil
				}
				tierChange = &change
			}
		}

		now := s.clock.Now()
		customer.UpdatedAt = now
		if err := s.customerRepo.UpdateAggregates(ctx, tx, customer); err != nil {
			return err
		}

		txn.Status = domain.StatusCancelled
		txn.CancelReason = strings.TrimSpace(req.Reason)
		txn.CancelledAt = &now
		txn.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, txn); err != nil {
			return err
		}

		result.Transaction = *txn
		result.CancelledAt = now
		if !req.Steps.RefundPoints {
			result.NewPointsBalance = customer.Points
		}

		return nil
	})
	if err != nil {
		s.metrics.RecordCancellation(ctx, "error")
		return domain.CancelResult{}, err
	}

	s.metrics.RecordCancellation(ctx, "ok")
	s.campaignSvc.InvalidateCustomerProgress(ctx, restaurantID, customerID)

	if tierChange != nil {
		s.metrics.RecordTierChange(ctx, "downgrade")
		if s.bus != nil {
			s.bus.Publish(ctx, *tierChange)
		}
	}

	s.log.Info("transaction cancelled",
		zap.String("transaction_id", result.Transaction.ID.String()),
		zap.String("order_number", result.Transaction.OrderNumber),
		zap.Int64("points_refunded", result.PointsRefunded),
		zap.Int64("points_revoked", result.PointsRevoked),
		zap.Int64("usages_cancelled", result.UsagesCancelled),
		zap.Int64("rewards_revoked", result.RewardsRevoked),
		zap.Bool("tier_downgraded", result.TierDowngraded))

	return result, nil
}

func (s *Service) resolveForUpdate(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req domain.CancelTransactionRequest) (*domain.Transaction, error) {
	id := req.TransactionID
	if id == 0 {
		found, err := s.repo.FindByOrderNumber(ctx, tx, restaurantID, strings.TrimSpace(req.OrderNumber))
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		id = found.ID
	}

	txn, err := s.repo.FindByIDForUpdate(ctx, tx, restaurantID, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return txn, nil
}
