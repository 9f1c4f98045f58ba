package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stampkit/stampkit/internal/apikey"
	apikeydomain "github.com/stampkit/stampkit/internal/apikey/domain"
	"github.com/stampkit/stampkit/internal/audit"
	auditdomain "github.com/stampkit/stampkit/internal/audit/domain"
	"github.com/stampkit/stampkit/internal/campaign"
	campaigndomain "github.com/stampkit/stampkit/internal/campaign/domain"
	"github.com/stampkit/stampkit/internal/config"
	"github.com/stampkit/stampkit/internal/customer"
	customerdomain "github.com/stampkit/stampkit/internal/customer/domain"
	"github.com/stampkit/stampkit/internal/events"
	"github.com/stampkit/stampkit/internal/ledger"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/notification"
	notificationdomain "github.com/stampkit/stampkit/internal/notification/domain"
	"github.com/stampkit/stampkit/internal/observability"
	obsmiddleware "github.com/stampkit/stampkit/internal/observability/logger"
	obsmetrics "github.com/stampkit/stampkit/internal/observability/metrics"
	obstracing "github.com/stampkit/stampkit/internal/observability/tracing"
	"github.com/stampkit/stampkit/internal/ratelimit"
	"github.com/stampkit/stampkit/internal/restaurant"
	restaurantdomain "github.com/stampkit/stampkit/internal/restaurant/domain"
	"github.com/stampkit/stampkit/internal/reward"
	rewarddomain "github.com/stampkit/stampkit/internal/reward/domain"
	"github.com/stampkit/stampkit/internal/tier"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	"github.com/stampkit/stampkit/internal/transaction"
	transactiondomain "github.com/stampkit/stampkit/internal/transaction/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	events.Module,
	ratelimit.Module,
	restaurant.Module,
	apikey.Module,
	audit.Module,
	customer.Module,
	tier.Module,
	ledger.Module,
	campaign.Module,
	reward.Module,
	transaction.Module,
	notification.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node
	guard  *ratelimit.PointsGuard

	restaurantSvc   restaurantdomain.Service
	apiKeySvc       apikeydomain.Service
	auditSvc        auditdomain.Service
	customerSvc     customerdomain.Service
	tierSvc         tierdomain.Service
	ledgerSvc       ledgerdomain.Service
	campaignSvc     campaigndomain.Service
	rewardSvc       rewarddomain.Service
	transactionSvc  transactiondomain.Service
	notificationSvc notificationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node
	Guard *ratelimit.PointsGuard `optional:"true"`

	RestaurantSvc   restaurantdomain.Service
	APIKeySvc       apikeydomain.Service
	AuditSvc        auditdomain.Service
	CustomerSvc     customerdomain.Service
	TierSvc         tierdomain.Service
	LedgerSvc       ledgerdomain.Service
	CampaignSvc     campaigndomain.Service
	RewardSvc       rewarddomain.Service
	TransactionSvc  transactiondomain.Service
	NotificationSvc notificationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		guard:           p.Guard,
		restaurantSvc:   p.RestaurantSvc,
		apiKeySvc:       p.APIKeySvc,
		auditSvc:        p.AuditSvc,
		customerSvc:     p.CustomerSvc,
		tierSvc:         p.TierSvc,
		ledgerSvc:       p.LedgerSvc,
		campaignSvc:     p.CampaignSvc,
		rewardSvc:       p.RewardSvc,
		transactionSvc:  p.TransactionSvc,
		notificationSvc: p.NotificationSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APIKeyRequired())

	read := s.RequireScope(apikeydomain.ScopeLoyaltyRead)
	write := s.RequireScope(apikeydomain.ScopeLoyaltyWrite)
	admin := s.RequireScope(apikeydomain.ScopeAdmin)

	// -------- Restaurant --------
	api.GET("/restaurant", read, s.GetRestaurant)
	api.PATCH("/restaurant", admin, s.UpdateRestaurant)

	// -------- Customers --------
	api.GET("/customers", read, s.ListCustomers)
	api.POST("/customers", write, s.CreateCustomer)
	api.GET("/customers/:id", read, s.GetCustomerByID)

	// -------- Points --------
	api.GET("/customers/:id/points", read, s.ListPointEntries)
	api.POST("/customers/:id/points", write, s.AppendPointEntry)
	api.POST("/customers/:id/points/recalculate", write, s.RecalculatePoints)
	api.POST("/points/recalculate", admin, s.RecalculateAllPoints)

	// -------- Tiers --------
	api.GET("/tiers", read, s.ListTiers)
	api.POST("/tiers", admin, s.CreateTier)

	// -------- Campaigns & stamps --------
	api.GET("/campaigns", read, s.ListCampaigns)
	api.POST("/campaigns", admin, s.CreateCampaign)
	api.GET("/campaigns/:id", read, s.GetCampaignByID)
	api.GET("/campaigns/:id/stamps/:customerId", read, s.GetStampProgress)
	api.GET("/customers/:id/stamps", read, s.GetStampSummary)

	// -------- Rewards --------
	api.GET("/customers/:id/rewards", read, s.ListCustomerRewards)
	api.POST("/rewards", write, s.GrantReward)
	api.POST("/rewards/:id/redeem", write, s.RedeemReward)

	// -------- Transactions --------
	api.POST("/transactions", write, s.CreateTransaction)
	api.GET("/transactions", read, s.FindTransaction)
	api.GET("/transactions/:id", read, s.GetTransactionByID)
	api.POST("/transactions/cancel", write, s.CancelTransaction)
	api.POST("/transactions/:id/cancel", write, s.CancelTransactionByID)

	// -------- Push subscriptions --------
	api.POST("/push/subscriptions", write, s.SubscribePush)
	api.DELETE("/push/subscriptions", write, s.UnsubscribePush)

	// -------- API keys & audit --------
	api.GET("/api_keys", admin, s.ListAPIKeys)
	api.POST("/api_keys", admin, s.CreateAPIKey)
	api.POST("/api_keys/:keyId/rotate", admin, s.RotateAPIKey)
	api.DELETE("/api_keys/:keyId", admin, s.RevokeAPIKey)
	api.GET("/audit_logs", admin, s.ListAuditLogs)
}
