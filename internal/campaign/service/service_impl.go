package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/cache"
	"github.com/stampkit/stampkit/internal/campaign/domain"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/observability/metrics"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// progressTTL bounds how stale a cached stamp position may be. Writes that
// change the position invalidate the entry immediately.
const progressTTL = 30 * time.Second

type progressKey struct {
	restaurantID snowflake.ID
	campaignID   snowflake.ID
	customerID   snowflake.ID
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	metrics  *metrics.Metrics
	progress cache.Cache[progressKey, domain.StampProgress]
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("campaign.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		metrics:  p.Metrics,
		progress: cache.NewTTLCache[progressKey, domain.StampProgress](),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Campaign{}, domain.ErrInvalidRestaurant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Campaign{}, domain.ErrInvalidName
	}
	if req.BuyQuantity < 0 {
		return domain.Campaign{}, domain.ErrInvalidBuyQuantity
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return domain.Campaign{}, domain.ErrInvalidDateRange
	}

	now := s.clock.Now()
	campaign := domain.Campaign{
		ID:                  s.genID.Generate(),
		RestaurantID:        restaurantID,
		Name:                name,
		Description:         strings.TrimSpace(req.Description),
		BuyQuantity:         req.BuyQuantity,
		MaxUsagePerCustomer: req.MaxUsagePerCustomer,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, productID := range req.ProductIDs {
		campaign.Products = append(campaign.Products, domain.CampaignProduct{
			CampaignID: campaign.ID,
			ProductID:  productID,
		})
	}

	if err := s.repo.Insert(ctx, s.db, &campaign); err != nil {
		return domain.Campaign{}, err
	}

	return campaign, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Campaign, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrInvalidRestaurant
	}
	return s.repo.List(ctx, s.db, restaurantID, activeOnly)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Campaign, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Campaign{}, domain.ErrInvalidRestaurant
	}

	campaign, err := s.repo.FindByID(ctx, s.db, restaurantID, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, err
	}
	return *campaign, nil
}

func (s *Service) Progress(ctx context.Context, campaignID, customerID snowflake.ID) (domain.StampProgress, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.StampProgress{}, domain.ErrInvalidRestaurant
	}

	key := progressKey{restaurantID: restaurantID, campaignID: campaignID, customerID: customerID}
	if cached, ok := s.progress.Get(key); ok {
		return cached, nil
	}

	result, err := s.ProgressTx(ctx, s.db, restaurantID, campaignID, customerID)
	if err != nil {
		return domain.StampProgress{}, err
	}

	s.progress.Set(key, result, progressTTL)
	return result, nil
}

func (s *Service) ProgressTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, campaignID, customerID snowflake.ID) (domain.StampProgress, error) {
	campaign, err := s.repo.FindByID(ctx, tx, restaurantID, campaignID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.StampProgress{}, domain.ErrNotFound
		}
		return domain.StampProgress{}, err
	}

	purchased, err := s.repo.QualifyingQuantity(ctx, tx, campaign, customerID)
	if err != nil {
		return domain.StampProgress{}, err
	}

	used, err := s.repo.SumStampsUsed(ctx, tx, restaurantID, campaignID, customerID)
	if err != nil {
		return domain.StampProgress{}, err
	}

	s.metrics.RecordStampQuery(ctx)
	return computeProgress(campaign, customerID, purchased, used), nil
}

// computeProgress derives the stamp position. Earned stamps are the floor of
// purchased/buyQuantity; Progress and Remaining describe the partially
// filled card.
func computeProgress(campaign *domain.Campaign, customerID snowflake.ID, purchased, used int64) domain.StampProgress {
	buyQty := campaign.EffectiveBuyQuantity()

	earned := purchased / buyQty
	available := earned - used
	if available < 0 {
		available = 0
	}

	canEarnMore := true
	if campaign.MaxUsagePerCustomer != nil {
		limit := *campaign.MaxUsagePerCustomer
		if earned >= limit {
			canEarnMore = false
		}
		// Availability never exceeds what the usage cap still permits.
		if left := limit - used; available > left {
			if left < 0 {
				left = 0
			}
			available = left
		}
	}

	remaining := buyQty - purchased%buyQty
	if !canEarnMore {
		remaining = 0
	}

	return domain.StampProgress{
		CampaignID:          campaign.ID,
		CustomerID:          customerID,
		TotalPurchased:      purchased,
		BuyQuantity:         buyQty,
		StampsEarned:        earned,
		StampsUsed:          used,
		StampsAvailable:     available,
		Progress:            purchased % buyQty,
		Remaining:           remaining,
		CanEarnMore:         canEarnMore,
		MaxUsagePerCustomer: campaign.MaxUsagePerCustomer,
	}
}

// ProgressSummary computes the customer's stamp position on every active
// campaign, with a grand total of available stamps.
func (s *Service) ProgressSummary(ctx context.Context, customerID snowflake.ID) (domain.CustomerStampSummary, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.CustomerStampSummary{}, domain.ErrInvalidRestaurant
	}

	campaigns, err := s.repo.List(ctx, s.db, restaurantID, true)
	if err != nil {
		return domain.CustomerStampSummary{}, err
	}

	summary := domain.CustomerStampSummary{
		CustomerID: customerID,
		Campaigns:  make([]domain.StampProgress, 0, len(campaigns)),
	}
	for _, campaign := range campaigns {
		progress, err := s.Progress(ctx, campaign.ID, customerID)
		if err != nil {
			return domain.CustomerStampSummary{}, err
		}
		summary.Campaigns = append(summary.Campaigns, progress)
		summary.TotalStampsAvailable += progress.StampsAvailable
	}

	return summary, nil
}

func (s *Service) Redeem(ctx context.Context, req domain.RedeemStampsRequest) (domain.TransactionCampaignUsage, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.TransactionCampaignUsage{}, domain.ErrInvalidRestaurant
	}

	var usage domain.TransactionCampaignUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		usage, txErr = s.RedeemTx(ctx, tx, restaurantID, req)
		return txErr
	})
	if err != nil {
		return domain.TransactionCampaignUsage{}, err
	}
	return usage, nil
}

func (s *Service) RedeemTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req domain.RedeemStampsRequest) (domain.TransactionCampaignUsage, error) {
	if req.Stamps <= 0 {
		return domain.TransactionCampaignUsage{}, domain.ErrInvalidStampCount
	}

	progress, err := s.ProgressTx(ctx, tx, restaurantID, req.CampaignID, req.CustomerID)
	if err != nil {
		return domain.TransactionCampaignUsage{}, err
	}

	if !progress.CanEarnMore {
		return domain.TransactionCampaignUsage{}, domain.ErrUsageLimitExceeded
	}
	if req.Stamps > progress.StampsAvailable {
		return domain.TransactionCampaignUsage{}, domain.ErrInsufficientStamps
	}

	usage := domain.TransactionCampaignUsage{
		ID:            s.genID.Generate(),
		RestaurantID:  restaurantID,
		CampaignID:    req.CampaignID,
		CustomerID:    req.CustomerID,
		TransactionID: req.TransactionID,
		StampsUsed:    req.Stamps,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertUsage(ctx, tx, &usage); err != nil {
		return domain.TransactionCampaignUsage{}, err
	}

	s.invalidateProgress(restaurantID, req.CampaignID, req.CustomerID)
	return usage, nil
}

func (s *Service) CancelUsageByTransaction(ctx context.Context, tx *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, int64, error) {
	if tx == nil {
		tx = s.db
	}

	usages, err := s.repo.ListUsagesByTransaction(ctx, tx, restaurantID, transactionID)
	if err != nil {
		return 0, 0, err
	}
	if len(usages) == 0 {
		return 0, 0, nil
	}

	var returned int64
	if _, err := s.repo.DeleteUsagesByTransaction(ctx, tx, restaurantID, transactionID); err != nil {
		return 0, 0, err
	}
	for _, usage := range usages {
		returned += usage.StampsUsed
		s.invalidateProgress(restaurantID, usage.CampaignID, usage.CustomerID)
	}

	return int64(len(usages)), returned, nil
}

// InvalidateCustomerProgress drops every cached position the customer holds
// across active campaigns. Transaction creation and cancellation call this
// so reads after a write see fresh counts.
func (s *Service) InvalidateCustomerProgress(ctx context.Context, restaurantID, customerID snowflake.ID) {
	campaigns, err := s.repo.List(ctx, s.db, restaurantID, true)
	if err != nil {
		s.log.Warn("invalidate progress cache failed", zap.Error(err))
		return
	}
	for _, campaign := range campaigns {
		s.invalidateProgress(restaurantID, campaign.ID, customerID)
	}
}

func (s *Service) invalidateProgress(restaurantID, campaignID, customerID snowflake.ID) {
	s.progress.Delete(progressKey{
		restaurantID: restaurantID,
		campaignID:   campaignID,
		customerID:   customerID,
	})
}
