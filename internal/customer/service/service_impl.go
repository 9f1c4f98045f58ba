package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/customer/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Customer{}, domain.ErrInvalidRestaurant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return domain.Customer{}, domain.ErrInvalidPhone
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:           s.genID.Generate(),
		RestaurantID: restaurantID,
		Name:         name,
		Phone:        phone,
		Email:        strings.TrimSpace(req.Email),
		Metadata:     datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.ListCustomerResponse{}, domain.ErrInvalidRestaurant
	}

	filter := domain.ListCustomerFilter{
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}
	if tierID := strings.TrimSpace(req.TierID); tierID != "" {
		parsed, err := snowflake.ParseString(tierID)
		if err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidID
		}
		filter.TierID = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, restaurantID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetCustomerRequest) (domain.Customer, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Customer{}, domain.ErrInvalidRestaurant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || id == 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, restaurantID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}
