package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/internal/reward/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reward.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRewardRequest) (domain.CustomerReward, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.CustomerReward{}, domain.ErrInvalidRestaurant
	}
	return s.GrantTx(ctx, s.db, restaurantID, req)
}

func (s *Service) GrantTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req domain.GrantRewardRequest) (domain.CustomerReward, error) {
	if req.CustomerID == 0 {
		return domain.CustomerReward{}, domain.ErrInvalidCustomer
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.CustomerReward{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	reward := domain.CustomerReward{
		ID:            s.genID.Generate(),
		RestaurantID:  restaurantID,
		CustomerID:    req.CustomerID,
		CampaignID:    req.CampaignID,
		TransactionID: req.TransactionID,
		Name:          name,
		Status:        domain.StatusAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, tx, &reward); err != nil {
		return domain.CustomerReward{}, err
	}
	return reward, nil
}

func (s *Service) Redeem(ctx context.Context, rewardID snowflake.ID) (domain.CustomerReward, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.CustomerReward{}, domain.ErrInvalidRestaurant
	}

	var redeemed domain.CustomerReward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reward, err := s.repo.FindByID(ctx, tx, restaurantID, rewardID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrNotFound
			}
			return err
		}
		if reward.Status != domain.StatusAvailable {
			return domain.ErrNotRedeemable
		}

		now := s.clock.Now()
		reward.Status = domain.StatusRedeemed
		reward.RedeemedAt = &now
		reward.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, reward); err != nil {
			return err
		}

		redeemed = *reward
		return nil
	})
	if err != nil {
		return domain.CustomerReward{}, err
	}
	return redeemed, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID, status domain.Status) ([]domain.CustomerReward, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrInvalidRestaurant
	}
	if customerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	return s.repo.ListByCustomer(ctx, s.db, restaurantID, customerID, status)
}

// RevokeByTransaction walks rewards granted by the transaction and revokes
// the ones still AVAILABLE. A reward the customer already redeemed is left
// untouched; consumption is not reversible.
func (s *Service) RevokeByTransaction(ctx context.Context, tx *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, error) {
	if tx == nil {
		tx = s.db
	}

	rewards, err := s.repo.ListByTransaction(ctx, tx, restaurantID, transactionID)
	if err != nil {
		return 0, err
	}

	var revoked int64
	now := s.clock.Now()
	for i := range rewards {
		if rewards[i].Status != domain.StatusAvailable {
			continue
		}
		rewards[i].Status = domain.StatusRevoked
		rewards[i].RevokedAt = &now
		rewards[i].UpdatedAt = now
		if err := s.repo.Update(ctx, tx, &rewards[i]); err != nil {
			return revoked, err
		}
		revoked++
	}

	return revoked, nil
}
