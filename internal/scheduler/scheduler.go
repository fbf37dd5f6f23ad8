package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kolopay/kolopay/internal/clock"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	obsmetrics "github.com/kolopay/kolopay/internal/observability/metrics"
	payoutdomain "github.com/kolopay/kolopay/internal/payout/domain"
	referraldomain "github.com/kolopay/kolopay/internal/referral/domain"
	"github.com/kolopay/kolopay/internal/sweeplock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_job")
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	GatewaySvc  gatewaydomain.Service
	ReferralSvc referraldomain.Service
	PayoutSvc   payoutdomain.Service
	Locker      *sweeplock.Locker `optional:"true"`
	Config      Config            `optional:"true"`
}

// Scheduler drives the periodic sweeps: pay-in polling, commission release,
// and payout reconciliation. When a redis Locker is configured, each job runs
// on at most one replica per tick.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	gatewaySvc  gatewaydomain.Service
	referralSvc referraldomain.Service
	payoutSvc   payoutdomain.Service
	locker      *sweeplock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GatewaySvc == nil || p.ReferralSvc == nil || p.PayoutSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler"),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		gatewaySvc:  p.GatewaySvc,
		referralSvc: p.ReferralSvc,
		payoutSvc:   p.PayoutSvc,
		locker:      p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	token, acquired, err := s.locker.TryLock(ctx, "sweep:lock:"+name, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), "sweep:lock:"+name, token); err != nil {
			s.log.Warn("sweep lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	metrics := obsmetrics.Default()
	metrics.IncJobRun(name)
	start := s.clock.Now()

	processed, err := fn(ctx)
	metrics.ObserveJobDuration(name, time.Since(start))
	metrics.AddBatchProcessed(name, "items", processed)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		metrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	metrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one pass of every enabled sweep. Job failures are joined,
// never fatal: the next tick retries.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (int, error)
	}{
		{"payin_poll", func(ctx context.Context) (int, error) {
			return s.gatewaySvc.PollPendingPayins(ctx, s.cfg.BatchSize)
		}},
		{"commission_release", func(ctx context.Context) (int, error) {
			return s.referralSvc.ReleaseDueCommissions(ctx, s.cfg.BatchSize)
		}},
		{"payout_reconcile", func(ctx context.Context) (int, error) {
			return s.payoutSvc.ReconcileStuckPayouts(ctx)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

// RunJob runs one named sweep on demand, for the admin trigger endpoint.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "payin_poll":
		return s.runJob(ctx, "payin_poll", func(ctx context.Context) (int, error) {
			return s.gatewaySvc.PollPendingPayins(ctx, s.cfg.BatchSize)
		})
	case "commission_release":
		return s.runJob(ctx, "commission_release", func(ctx context.Context) (int, error) {
			return s.referralSvc.ReleaseDueCommissions(ctx, s.cfg.BatchSize)
		})
	case "payout_reconcile":
		return s.runJob(ctx, "payout_reconcile", func(ctx context.Context) (int, error) {
			return s.payoutSvc.ReconcileStuckPayouts(ctx)
		})
	default:
		return ErrUnknownJob
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list means every job runs.
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
