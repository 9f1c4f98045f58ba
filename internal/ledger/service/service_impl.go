package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/config"
	customerdomain "github.com/stampkit/stampkit/internal/customer/domain"
	"github.com/stampkit/stampkit/internal/events"
	"github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/observability/metrics"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSource = "manual"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
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
	metrics      *metrics.Metrics
	bus          *events.Bus
	loyalty      *config.LoyaltyConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		metrics:      p.Metrics,
		bus:          p.Bus,
		loyalty:      p.Loyalty,
	}
}

func validateAppend(req domain.AppendRequest) error {
	if req.CustomerID == 0 {
		return domain.ErrInvalidCustomer
	}
	if !req.EntryType.Valid() {
		return domain.ErrInvalidEntryType
	}
	switch req.EntryType {
	case domain.EntryEarned:
		if req.Amount <= 0 {
			return domain.ErrInvalidAmount
		}
	case domain.EntrySpent, domain.EntryExpired:
		if req.Amount >= 0 {
			return domain.ErrInvalidAmount
		}
	case domain.EntryAdjusted:
		if req.Amount == 0 {
			return domain.ErrInvalidAmount
		}
	}
	return nil
}

func (s *Service) Append(ctx context.Context, req domain.AppendRequest) (domain.PointLedgerEntry, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.PointLedgerEntry{}, domain.ErrInvalidRestaurant
	}

	var entry domain.PointLedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.AppendTx(ctx, tx, restaurantID, req)
		return txErr
	})
	if err != nil {
		return domain.PointLedgerEntry{}, err
	}

	s.publishAdjusted(ctx, restaurantID, entry)
	return entry, nil
}

func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req domain.AppendRequest) (domain.PointLedgerEntry, error) {
	if err := validateAppend(req); err != nil {
		return domain.PointLedgerEntry{}, err
	}

	customer, err := s.customerRepo.FindByIDForUpdate(ctx, tx, restaurantID, req.CustomerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PointLedgerEntry{}, domain.ErrCustomerNotFound
		}
		return domain.PointLedgerEntry{}, err
	}

	// The running balance can never go below zero. An over-large SPENT or
	// EXPIRED movement is recorded in full; only the snapshot is clamped.
	balance := customer.Points + req.Amount
	if balance < 0 {
		balance = 0
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = defaultSource
	}

	now := s.clock.Now()
	entry := domain.PointLedgerEntry{
		ID:            s.genID.Generate(),
		RestaurantID:  restaurantID,
		CustomerID:    req.CustomerID,
		EntryType:     req.EntryType,
		Amount:        req.Amount,
		Balance:       balance,
		Source:        source,
		Description:   strings.TrimSpace(req.Description),
		TransactionID: req.TransactionID,
		ExpiresAt:     req.ExpiresAt,
		CreatedAt:     now,
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		return domain.PointLedgerEntry{}, err
	}

	customer.Points = balance
	customer.UpdatedAt = now
	if err := s.customerRepo.UpdateAggregates(ctx, tx, customer); err != nil {
		return domain.PointLedgerEntry{}, err
	}

	s.metrics.RecordLedgerEntry(ctx, string(entry.EntryType), source)
	return entry, nil
}

func (s *Service) List(ctx context.Context, customerID snowflake.ID) ([]domain.PointLedgerEntry, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrInvalidRestaurant
	}
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	return s.repo.ListByCustomer(ctx, s.db, restaurantID, customerID)
}

func (s *Service) ExpireDue(ctx context.Context, before time.Time, limit int) (int, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return 0, domain.ErrInvalidRestaurant
	}

	due, err := s.repo.ListExpirable(ctx, s.db, restaurantID, before, limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, earned := range due {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, txErr := s.AppendTx(ctx, tx, restaurantID, domain.AppendRequest{
				CustomerID:  earned.CustomerID,
				EntryType:   domain.EntryExpired,
				Amount:      -earned.Amount,
				Source:      "expiry",
				Description: "points expired",
			}); txErr != nil {
				return txErr
			}
			return s.repo.MarkExpiryApplied(ctx, tx, earned.ID)
		})
		if err != nil {
			s.log.Warn("expire entry failed",
				zap.String("entry_id", earned.ID.String()),
				zap.String("customer_id", earned.CustomerID.String()),
				zap.Error(err))
			continue
		}
		applied++
	}

	return applied, nil
}

func (s *Service) publishAdjusted(ctx context.Context, restaurantID snowflake.ID, entry domain.PointLedgerEntry) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.PointsAdjusted{
		RestaurantID: restaurantID,
		CustomerID:   entry.CustomerID,
		Delta:        entry.Amount,
		NewBalance:   entry.Balance,
		Source:       entry.Source,
	})
}
