package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/events"
	"github.com/stampkit/stampkit/internal/notification/domain"
	"github.com/stampkit/stampkit/internal/observability/metrics"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sender delivers one push to one device token.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Sender  Sender           `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	sender  Sender
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("notification.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		sender:  p.Sender,
		metrics: p.Metrics,
	}
}

func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (domain.PushSubscription, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.PushSubscription{}, domain.ErrInvalidRestaurant
	}
	if req.CustomerID == 0 {
		return domain.PushSubscription{}, domain.ErrInvalidCustomer
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return domain.PushSubscription{}, domain.ErrInvalidToken
	}

	sub := domain.PushSubscription{
		ID:           s.genID.Generate(),
		RestaurantID: restaurantID,
		CustomerID:   req.CustomerID,
		Token:        token,
		Platform:     strings.ToLower(strings.TrimSpace(req.Platform)),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, &sub); err != nil {
		return domain.PushSubscription{}, err
	}
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.ErrInvalidRestaurant
	}

	deleted, err := s.repo.DeleteByToken(ctx, s.db, restaurantID, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) NotifyCustomer(ctx context.Context, restaurantID, customerID snowflake.ID, title, body string, data map[string]string) {
	if s.sender == nil {
		return
	}

	subs, err := s.repo.ListByCustomer(ctx, s.db, restaurantID, customerID)
	if err != nil {
		s.log.Warn("list subscriptions failed", zap.Error(err))
		return
	}

	for _, sub := range subs {
		err := s.sender.Send(ctx, sub.Token, title, body, data)
		s.metrics.RecordNotification(ctx, err == nil)
		if err != nil {
			s.log.Warn("push delivery failed",
				zap.String("customer_id", customerID.String()),
				zap.String("platform", sub.Platform),
				zap.Error(err))
		}
	}
}

// RegisterSubscribers wires loyalty events to push delivery.
func RegisterSubscribers(bus *events.Bus, svc domain.Service) {
	bus.Subscribe("tier.changed", func(ctx context.Context, event events.Event) {
		change, ok := event.(events.TierChanged)
		if !ok {
			return
		}

		title := "Tier updated"
		body := "Your membership tier is now " + change.NewTierName + "."
		if change.Upgrade {
			title = "Congratulations!"
			body = "You reached " + change.NewTierName + "."
		}
		svc.NotifyCustomer(ctx, change.RestaurantID, change.CustomerID, title, body, map[string]string{
			"type":     "tier_changed",
			"new_tier": change.NewTierName,
			"upgrade":  strconv.FormatBool(change.Upgrade),
		})
	})

	bus.Subscribe("transaction.completed", func(ctx context.Context, event events.Event) {
		completed, ok := event.(events.TransactionCompleted)
		if !ok || completed.PointsEarned == 0 {
			return
		}
		svc.NotifyCustomer(ctx, completed.RestaurantID, completed.CustomerID,
			"Points earned",
			"You earned "+strconv.FormatInt(completed.PointsEarned, 10)+" points on order "+completed.OrderNumber+".",
			map[string]string{
				"type":         "points_earned",
				"order_number": completed.OrderNumber,
			})
	})
}
