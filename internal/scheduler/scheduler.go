// Package scheduler runs the recurring-invoice generation pass.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/facturo/facturo/internal/clock"
	obsmetrics "github.com/facturo/facturo/internal/observability/metrics"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service
	Config       Config `optional:"true"`
}

// Scheduler materializes invoices for due recurring profiles.
type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	recurringSvc recurringdomain.Service
}

// PassSummary reports the outcome of one generation pass.
type PassSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
	}, nil
}

// RunOnce executes one generation pass as of the current clock date. Profile
// failures are isolated: one broken profile never blocks the rest, and the
// pass itself only errors when the due-profile query fails.
func (s *Scheduler) RunOnce(ctx context.Context) (PassSummary, error) {
	start := s.clock.Now()
	today := start
	schedMetrics := obsmetrics.Scheduler()

	var summary PassSummary
	profiles, err := s.recurringSvc.ListDue(ctx, today)
	if err != nil {
		s.log.Error("listing due profiles failed", zap.Error(err))
		return summary, err
	}

	if len(profiles) > s.cfg.BatchSize {
		profiles = profiles[:s.cfg.BatchSize]
	}

	for _, profile := range profiles {
		if ctx.Err() != nil {
			break
		}

		result, err := s.recurringSvc.GenerateForProfile(ctx, profile, today)
		switch {
		case err != nil:
			summary.Failed++
			schedMetrics.IncProfile(obsmetrics.OutcomeFailed)
			s.logProfileError(profile, err)
		case result.Skipped:
			summary.Skipped++
			schedMetrics.IncProfile(obsmetrics.OutcomeSkipped)
		default:
			summary.Succeeded++
			schedMetrics.IncProfile(obsmetrics.OutcomeSucceeded)
			if result.Finished {
				schedMetrics.IncFinished()
			}
			s.log.Info("invoice generated",
				zap.String("profile_id", profile.ID.String()),
				zap.String("invoice_id", result.InvoiceID.String()),
				zap.String("invoice_number", result.InvoiceNumber),
				zap.Bool("finished", result.Finished),
			)
		}
	}

	schedMetrics.IncPass()
	schedMetrics.ObservePass(time.Since(start))
	s.log.Info("generation pass complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (s *Scheduler) logProfileError(profile recurringdomain.RecurringProfile, err error) {
	fields := []zap.Field{
		zap.String("profile_id", profile.ID.String()),
		zap.String("org_id", profile.OrgID.String()),
		zap.Error(err),
	}

	var perr *recurringdomain.PersistenceError
	if errors.As(err, &perr) {
		fields = append(fields, zap.String("stage", perr.Stage))
	}
	s.log.Error("profile generation failed", fields...)
}

// RunForever runs passes on the configured interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("generation pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
