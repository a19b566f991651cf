package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/tunehaus/backstage/internal/app/service/analytics"
	"github.com/tunehaus/backstage/internal/app/service/membership"
	"github.com/tunehaus/backstage/internal/platform/notifier"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/config"
)

// Job names, also the handles used by the manual trigger endpoint.
const (
	JobExpireMemberships = "check-expired-memberships"
	JobRenewalReminders  = "send-renewal-reminders"
	JobAutoRenew         = "auto-renew-memberships"
	JobDailyAnalytics    = "update-daily-analytics"
	JobRunAllDaily       = "run-all-daily-jobs"
)

// RegisterJobs wires every scheduled job into the scheduler. The run-all
// job is registered for manual triggering only; its members already run on
// their own tickers.
func RegisterJobs(s *Scheduler, cfg *config.Config, engine membership.Engine, stats *analytics.Service, reminders notifier.Notifier, clk clock.Clock) {
	s.Register(JobExpireMemberships, cfg.Cron.ExpireInterval, true, func(ctx context.Context) (*RunResult, error) {
		expired, err := engine.ExpireDueMemberships(ctx)
		if err != nil {
			return nil, err
		}
		return &RunResult{Processed: expired}, nil
	})

	s.Register(JobRenewalReminders, cfg.Cron.ReminderInterval, true, func(ctx context.Context) (*RunResult, error) {
		// Auto-renew members need no nudge; the renew job handles them.
		due, err := engine.ListExpiring(ctx, cfg.Billing.ReminderLookahead(), false)
		if err != nil {
			return nil, err
		}
		for _, m := range due {
			reminders.SendRenewalReminder(ctx, m.UserID, m.CommunityID, m.ExpiresAt)
		}
		return &RunResult{Processed: len(due)}, nil
	})

	s.Register(JobAutoRenew, cfg.Cron.AutoRenewInterval, true, func(ctx context.Context) (*RunResult, error) {
		renewed, failed, err := engine.AutoRenewDue(ctx)
		if err != nil {
			return nil, err
		}
		return &RunResult{
			Processed: renewed,
			Failed:    failed,
			Counters:  map[string]any{"renewed": renewed, "failed": failed},
		}, nil
	})

	s.Register(JobDailyAnalytics, cfg.Cron.AnalyticsInterval, true, func(ctx context.Context) (*RunResult, error) {
		// Roll up the previous UTC day; today's rollup is rebuilt on the
		// next run once the day is complete.
		day := clk.Now().UTC().AddDate(0, 0, -1)
		communities, err := stats.MaterializeDaily(ctx, day)
		if err != nil {
			return nil, err
		}
		return &RunResult{
			Processed: communities,
			Counters:  map[string]any{"stat_date": day.Format("2006-01-02")},
		}, nil
	})

	s.Register(JobRunAllDaily, cfg.Cron.AnalyticsInterval, false, func(ctx context.Context) (*RunResult, error) {
		total := &RunResult{Counters: map[string]any{}}
		var errs []error
		for _, name := range []string{JobExpireMemberships, JobRenewalReminders, JobAutoRenew, JobDailyAnalytics} {
			run, err := s.TriggerJob(ctx, name)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			total.Processed += run.Processed
			total.Failed += run.Failed
			total.Counters[name] = run.Success
			if !run.Success {
				errs = append(errs, fmt.Errorf("%s: %s", name, run.Error))
			}
		}
		return total, errors.Join(errs...)
	})
}
