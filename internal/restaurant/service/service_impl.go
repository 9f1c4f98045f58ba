package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurant/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/pkg/db"
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
		log:   p.Log.Named("restaurant.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRestaurantRequest) (*domain.Restaurant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	timezoneName := strings.TrimSpace(req.TimezoneName)
	if timezoneName != "" {
		if _, err := time.LoadLocation(timezoneName); err != nil {
			return nil, domain.ErrInvalidTimezone
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency != "" && len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	now := s.clock.Now()
	restaurant := &domain.Restaurant{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		TimezoneName: timezoneName,
		Currency:     currency,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, restaurant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}

	s.log.Info("restaurant created",
		zap.String("restaurant_id", restaurant.ID.String()),
		zap.String("slug", restaurant.Slug),
	)
	return restaurant, nil
}

func (s *Service) Get(ctx context.Context) (*domain.Restaurant, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrMissingContextID
	}

	restaurant, err := s.repo.FindByID(ctx, s.db, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, domain.ErrNotFound
	}
	return restaurant, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRestaurantRequest) (*domain.Restaurant, error) {
	restaurant, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		restaurant.Name = name
	}
	if timezoneName := strings.TrimSpace(req.TimezoneName); timezoneName != "" {
		if _, err := time.LoadLocation(timezoneName); err != nil {
			return nil, domain.ErrInvalidTimezone
		}
		restaurant.TimezoneName = timezoneName
	}
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" {
		if len(currency) != 3 {
			return nil, domain.ErrInvalidCurrency
		}
		restaurant.Currency = currency
	}

	restaurant.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}
