package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/stampkit/stampkit/internal/audit/domain"
	"github.com/stampkit/stampkit/internal/clock"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/ratelimit"
	restaurantdomain "github.com/stampkit/stampkit/internal/restaurant/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	LedgerSvc      ledgerdomain.Service
	AuditSvc       auditdomain.Service
	RestaurantRepo restaurantdomain.Repository

	Guard  *ratelimit.PointsGuard `optional:"true"`
	Config Config                 `optional:"true"`
}

// Scheduler drives the recurring loyalty maintenance work: expiring lapsed
// point credit and reconciling every customer balance against the ledger.
type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	cfg            Config
	genID          *snowflake.Node
	clock          clock.Clock
	ledgerSvc      ledgerdomain.Service
	auditSvc       auditdomain.Service
	restaurantRepo restaurantdomain.Repository
	guard          *ratelimit.PointsGuard

	lastReconcileAt time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.LedgerSvc == nil || p.AuditSvc == nil || p.RestaurantRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
		genID:          p.GenID,
		clock:          p.Clock,
		ledgerSvc:      p.LedgerSvc,
		auditSvc:       p.AuditSvc,
		restaurantRepo: p.RestaurantRepo,
		guard:          p.Guard,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	if s.isJobEnabled("expire_points") {
		err = errors.Join(err, s.runJob(parent, "expire_points", 5*time.Minute, s.ExpirePointsJob))
	}
	if s.isJobEnabled("reconcile_all") && s.reconcileDue() {
		err = errors.Join(err, s.runJob(parent, "reconcile_all", 30*time.Minute, s.ReconcileAllJob))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means every job runs (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) reconcileDue() bool {
	if s.lastReconcileAt.IsZero() {
		return true
	}
	return s.clock.Now().Sub(s.lastReconcileAt) >= s.cfg.ReconcileInterval
}

// ExpirePointsJob appends EXPIRED offsets for EARNED credit whose expiry
// date has passed, restaurant by restaurant.
func (s *Scheduler) ExpirePointsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "expire_points")
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	var jobErr error

	err := s.forEachRestaurant(ctx, func(restaurantID snowflake.ID) {
		restCtx := restaurantctx.WithRestaurantID(ctx, int64(restaurantID))
		for {
			if ctx.Err() != nil {
				return
			}
			expired, err := s.ledgerSvc.ExpireDue(restCtx, now, s.cfg.ExpiryBatchSize)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.expire.failed", "expire_points", restaurantID, err)
				return
			}
			run.AddProcessed(expired)
			if expired < s.cfg.ExpiryBatchSize {
				return
			}
		}
	})
	if err != nil {
		jobErr = errors.Join(jobErr, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return jobErr
}

// ReconcileAllJob replays every customer ledger and repairs drifted
// balances. Per-restaurant failures are logged and the sweep continues.
func (s *Scheduler) ReconcileAllJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "reconcile_all")
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	var jobErr error

	err := s.forEachRestaurant(ctx, func(restaurantID snowflake.ID) {
		if ctx.Err() != nil {
			return
		}
		allowed, err := s.guard.AllowRecalcAll(ctx, restaurantID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.reconcile.guard_failed", "reconcile_all", restaurantID, err)
			return
		}
		if !allowed.Allowed {
			s.logger(ctx).Warn("reconcile_all throttled",
				zap.String("restaurant_id", restaurantID.String()),
				zap.Duration("retry_after", allowed.RetryAfter),
			)
			return
		}

		restCtx := s.withLogContext(restaurantctx.WithRestaurantID(ctx, int64(restaurantID)), restaurantID)
		result, err := s.ledgerSvc.RecalculateAll(restCtx)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logSchedulerError(ctx, run, "scheduler.reconcile.failed", "reconcile_all", restaurantID, err)
			return
		}
		run.AddProcessed(result.Processed)
		for range result.Failures {
			run.IncError()
		}
		if result.Corrected > 0 || result.Failed > 0 {
			_ = s.auditSvc.Record(restCtx, &restaurantID, "points.reconcile_all", "restaurant", nil, map[string]any{
				"processed": result.Processed,
				"corrected": result.Corrected,
				"failed":    result.Failed,
			})
		}
	})
	if err != nil {
		jobErr = errors.Join(jobErr, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if jobErr == nil {
		s.lastReconcileAt = s.clock.Now()
	}
	return jobErr
}

func (s *Scheduler) forEachRestaurant(ctx context.Context, fn func(restaurantID snowflake.ID)) error {
	var afterID snowflake.ID
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ids, err := s.restaurantRepo.ListActiveIDs(ctx, s.db, afterID, s.cfg.RestaurantBatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			fn(id)
		}
		afterID = ids[len(ids)-1]
	}
}
