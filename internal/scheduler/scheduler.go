package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	auditdomain "github.com/smallbiznis/pricerules/internal/audit/domain"
	auditcontext "github.com/smallbiznis/pricerules/internal/auditcontext"
	"github.com/smallbiznis/pricerules/internal/clock"
	"github.com/smallbiznis/pricerules/internal/config"
	obsmetrics "github.com/smallbiznis/pricerules/internal/observability/metrics"
	pricerule "github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobStatusSweep = "status_sweep"

var ErrInvalidConfig = errors.New("invalid scheduler config")

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	RuleSvc pricerule.Service
	Pricing *config.PricingConfigHolder `optional:"true"`
	Locker  *ratelimit.Locker           `optional:"true"`
	Metrics *obsmetrics.Metrics         `optional:"true"`
	Config  Config                      `optional:"true"`
}

// Scheduler periodically moves stored rule statuses along their validity
// windows. With a Locker configured only one replica sweeps per interval.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	ruleSvc pricerule.Service
	pricing *config.PricingConfigHolder
	locker  *ratelimit.Locker
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RuleSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		ruleSvc: p.RuleSvc,
		pricing: p.Pricing,
		locker:  p.Locker,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	log := s.log.With(zap.String("job", name))

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if err == nil {
		s.metrics.RecordJobRun(ctx, name, "ok", elapsed)
		return nil
	}

	// deadline is a soft timeout; the next tick picks up where this one stopped
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJobRun(parent, name, "timeout", elapsed)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJobRun(parent, name, "error", elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes a single status sweep, skipping it when another replica
// holds the sweep lock.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if s.locker != nil {
		lease, err := s.locker.Acquire(parent, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		if lease == nil {
			s.metrics.RecordJobRun(parent, jobStatusSweep, "skipped", 0)
			s.log.Debug("status sweep held by another instance")
			return nil
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(parent)); err != nil {
				s.log.Warn("release sweep lock failed", zap.Error(err))
			}
		}()
	}

	return s.runJob(parent, jobStatusSweep, s.cfg.JobTimeout, s.StatusSweepJob)
}

func (s *Scheduler) StatusSweepJob(ctx context.Context) error {
	changed, err := s.ruleSvc.RefreshStatuses(ctx)
	if err != nil {
		return err
	}
	if changed > 0 {
		s.log.Info("status sweep finished", zap.Int("changed", changed))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		timer.Reset(s.interval())
	}
}

// interval follows pricing.yml so a reload takes effect on the next tick.
func (s *Scheduler) interval() time.Duration {
	if s.pricing != nil {
		if d := s.pricing.Get().StatusSweepInterval; d > 0 {
			return d
		}
	}
	return s.cfg.RunInterval
}
