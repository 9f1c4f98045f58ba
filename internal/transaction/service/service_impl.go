package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/stampkit/stampkit/internal/campaign/domain"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/config"
	customerdomain "github.com/stampkit/stampkit/internal/customer/domain"
	"github.com/stampkit/stampkit/internal/events"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/observability/metrics"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	rewarddomain "github.com/stampkit/stampkit/internal/reward/domain"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	"github.com/stampkit/stampkit/internal/transaction/domain"
	"github.com/stampkit/stampkit/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	TierRepo     tierdomain.Repository
	TierSvc      tierdomain.Service
	LedgerSvc    ledgerdomain.Service
	CampaignSvc  campaigndomain.Service
	RewardSvc    rewarddomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
	Bus          *events.Bus      `optional:"true"`
	Loyalty      *config.LoyaltyConfigHolder
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
	tierRepo     tierdomain.Repository
	tierSvc      tierdomain.Service
	ledgerSvc    ledgerdomain.Service
	campaignSvc  campaigndomain.Service
	rewardSvc    rewarddomain.Service
	metrics      *metrics.Metrics
	bus          *events.Bus
	loyalty      *config.LoyaltyConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("transaction.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		tierRepo:     p.TierRepo,
		tierSvc:      p.TierSvc,
		ledgerSvc:    p.LedgerSvc,
		campaignSvc:  p.CampaignSvc,
		rewardSvc:    p.RewardSvc,
		metrics:      p.Metrics,
		bus:          p.Bus,
		loyalty:      p.Loyalty,
	}
}

func validateCreate(req domain.CreateTransactionRequest) error {
	if req.CustomerID == 0 {
		return domain.ErrInvalidCustomer
	}
	if strings.TrimSpace(req.OrderNumber) == "" {
		return domain.ErrInvalidOrderNumber
	}
	if len(req.Items) == 0 {
		return domain.ErrInvalidItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return domain.ErrInvalidItems
		}
	}
	if req.PointsUsed < 0 {
		return domain.ErrInvalidPointsUsed
	}
	return nil
}

// earnedPoints converts a minor-unit total into points. Multiplication with
// the tier multiplier happens before flooring so partial currency units
// still accumulate.
func earnedPoints(total int64, policy config.LoyaltyConfig, multiplier float64) int64 {
	if total <= 0 {
		return 0
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	units := float64(total) / float64(policy.MinorUnitsPerUnit)
	return int64(math.Floor(units * policy.PointsPerUnit * multiplier))
}

func (s *Service) Create(ctx context.Context, req domain.CreateTransactionRequest) (domain.Transaction, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Transaction{}, domain.ErrInvalidRestaurant
	}
	if err := validateCreate(req); err != nil {
		return domain.Transaction{}, err
	}

	policy := s.loyalty.Current()
	now := s.clock.Now()

	var (
		txn        domain.Transaction
		tierChange *events.TierChanged
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, req.CustomerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrInvalidCustomer
			}
			return err
		}
		if req.PointsUsed > customer.Points {
			return domain.ErrInvalidPointsUsed
		}

		var totalAmount int64
		items := make([]domain.TransactionItem, 0, len(req.Items))
		for _, item := range req.Items {
			if !item.IsFree {
				totalAmount += item.Quantity * item.UnitPrice
			}
			items = append(items, domain.TransactionItem{
				ID:        s.genID.Generate(),
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				IsFree:    item.IsFree,
			})
		}

		multiplier := 1.0
		if customer.TierID != nil {
			tier, err := s.tierRepo.FindByID(ctx, tx, restaurantID, *customer.TierID)
			if err == nil {
				multiplier = tier.PointMultiplier
			} else if err != gorm.ErrRecordNotFound {
				return err
			}
		}
		pointsEarned := earnedPoints(totalAmount, policy, multiplier)

		txn = domain.Transaction{
			ID:           s.genID.Generate(),
			RestaurantID: restaurantID,
			CustomerID:   req.CustomerID,
			OrderNumber:  strings.TrimSpace(req.OrderNumber),
			Status:       domain.StatusCompleted,
			TotalAmount:  totalAmount,
			PointsEarned: pointsEarned,
			PointsUsed:   req.PointsUsed,
			Items:        items,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Insert(ctx, tx, &txn); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateOrder
			}
			return err
		}

		if req.PointsUsed > 0 {
			if _, err := s.ledgerSvc.AppendTx(ctx, tx, restaurantID, ledgerdomain.AppendRequest{
				CustomerID:    req.CustomerID,
				EntryType:     ledgerdomain.EntrySpent,
				Amount:        -req.PointsUsed,
				Source:        "transaction",
				Description:   "points spent on order " + txn.OrderNumber,
				TransactionID: &txn.ID,
			}); err != nil {
				return err
			}
		}
		if pointsEarned > 0 {
			appendReq := ledgerdomain.AppendRequest{
				CustomerID:    req.CustomerID,
				EntryType:     ledgerdomain.EntryEarned,
				Amount:        pointsEarned,
				Source:        "transaction",
				Description:   "points earned on order " + txn.OrderNumber,
				TransactionID: &txn.ID,
			}
			if policy.PointExpiryDays > 0 {
				expiresAt := now.AddDate(0, 0, policy.PointExpiryDays)
				appendReq.ExpiresAt = &expiresAt
			}
			if _, err := s.ledgerSvc.AppendTx(ctx, tx, restaurantID, appendReq); err != nil {
				return err
			}
		}

		for _, redemption := range req.Redemptions {
			if _, err := s.campaignSvc.RedeemTx(ctx, tx, restaurantID, campaigndomain.RedeemStampsRequest{
				CampaignID:    redemption.CampaignID,
				CustomerID:    req.CustomerID,
				TransactionID: txn.ID,
				Stamps:        redemption.Stamps,
			}); err != nil {
				return err
			}
		}

		// The ledger appends changed the cached balance; reload before
		// bumping spend and visit aggregates.
		customer, err = s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, req.CustomerID)
		if err != nil {
			return err
		}
		customer.TotalSpent += totalAmount
		customer.VisitCount++
		customer.UpdatedAt = now

		eval, err := s.tierSvc.Evaluate(ctx, tx, restaurantID, customer.TierID, tierdomain.Stats{
			TotalSpent: customer.TotalSpent,
			VisitCount: customer.VisitCount,
			Points:     customer.Points,
		})
		if err != nil {
			return err
		}
		if eval.Direction == tierdomain.TransitionUpgrade && eval.Eligible != nil {
			change := events.TierChanged{
				RestaurantID: restaurantID,
				CustomerID:   customer.ID,
				NewTierID:    eval.Eligible.ID,
				NewTierName:  eval.Eligible.Name,
				Upgrade:      true,
			}
			if eval.Previous != nil {
				change.OldTierID = eval.Previous.ID
				change.OldTierName = eval.Previous.Name
			}
			tierChange = &change
			customer.TierID = &eval.Eligible.ID
		}

		return s.customerRepo.UpdateAggregates(ctx, tx, customer)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.campaignSvc.InvalidateCustomerProgress(ctx, restaurantID, req.CustomerID)
	s.publishCompleted(ctx, restaurantID, txn, tierChange)
	return txn, nil
}

func (s *Service) publishCompleted(ctx context.Context, restaurantID snowflake.ID, txn domain.Transaction, tierChange *events.TierChanged) {
	if tierChange != nil {
		s.metrics.RecordTierChange(ctx, "upgrade")
	}
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.TransactionCompleted{
		RestaurantID:  restaurantID,
		TransactionID: txn.ID,
		CustomerID:    txn.CustomerID,
		OrderNumber:   txn.OrderNumber,
		TotalAmount:   txn.TotalAmount,
		PointsEarned:  txn.PointsEarned,
		PointsUsed:    txn.PointsUsed,
	})
	if tierChange != nil {
		s.bus.Publish(ctx, *tierChange)
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Transaction, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Transaction{}, domain.ErrInvalidRestaurant
	}

	txn, err := s.repo.FindByID(ctx, s.db, restaurantID, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	return *txn, nil
}

func (s *Service) GetByOrderNumber(ctx context.Context, orderNumber string) (domain.Transaction, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Transaction{}, domain.ErrInvalidRestaurant
	}

	txn, err := s.repo.FindByOrderNumber(ctx, s.db, restaurantID, strings.TrimSpace(orderNumber))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	return *txn, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID, limit int) ([]domain.Transaction, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrInvalidRestaurant
	}
	return s.repo.ListByCustomer(ctx, s.db, restaurantID, customerID, limit)
}
