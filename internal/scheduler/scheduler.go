package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/relaycrm/relaycrm/internal/api/dto"
	"github.com/relaycrm/relaycrm/internal/billing"
	"github.com/relaycrm/relaycrm/internal/config"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/service"
)

// Scheduler runs the two daily lifecycle jobs on the business-timezone
// calendar. The renewal job and the overdue detector fire at staggered hours
// so a freshly created invoice is never evaluated for overdue in the same
// pass that created it.
type Scheduler struct {
	cron                *cron.Cron
	config              *config.Configuration
	subscriptionService service.SubscriptionService
	logger              *logger.Logger

	// renewalMu and overdueMu serialize all entry points of the same job,
	// timer firings and cron HTTP triggers alike
	renewalMu sync.Mutex
	overdueMu sync.Mutex
}

func NewScheduler(
	cfg *config.Configuration,
	clock *billing.Clock,
	subscriptionService service.SubscriptionService,
	logger *logger.Logger,
) *Scheduler {
	return &Scheduler{
		cron:                cron.New(cron.WithLocation(clock.Location())),
		config:              cfg,
		subscriptionService: subscriptionService,
		logger:              logger,
	}
}

// Start registers the job entries and starts the cron loop.
func (s *Scheduler) Start() error {
	renewalSpec := fmt.Sprintf("0 %d * * *", s.config.Billing.RenewalHour)
	if _, err := s.cron.AddFunc(renewalSpec, s.runRenewals); err != nil {
		return err
	}

	overdueSpec := fmt.Sprintf("0 %d * * *", s.config.Billing.OverdueHour)
	if _, err := s.cron.AddFunc(overdueSpec, s.runOverdue); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infow("started lifecycle scheduler",
		"renewal_spec", renewalSpec,
		"overdue_spec", overdueSpec,
		"timezone", s.config.Billing.Timezone)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Infow("stopped lifecycle scheduler")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunRenewals executes one renewal run under the scheduler's overlap guard.
// A run that would overlap an in-flight one is rejected instead of queued.
func (s *Scheduler) RunRenewals(ctx context.Context) (*dto.RenewalRunResponse, error) {
	if !s.renewalMu.TryLock() {
		return nil, ierr.NewError("renewal run already in progress").
			WithHint("A renewal run is already in progress, retry after it finishes").
			Mark(ierr.ErrInvalidOperation)
	}
	defer s.renewalMu.Unlock()

	return s.subscriptionService.ProcessRenewals(ctx)
}

// RunOverdue executes one overdue detection run under the scheduler's
// overlap guard.
func (s *Scheduler) RunOverdue(ctx context.Context) (*dto.OverdueRunResponse, error) {
	if !s.overdueMu.TryLock() {
		return nil, ierr.NewError("overdue run already in progress").
			WithHint("An overdue detection run is already in progress, retry after it finishes").
			Mark(ierr.ErrInvalidOperation)
	}
	defer s.overdueMu.Unlock()

	return s.subscriptionService.ProcessOverdueInvoices(ctx)
}

func (s *Scheduler) runRenewals() {
	resp, err := s.RunRenewals(context.Background())
	if err != nil {
		if ierr.IsInvalidOperation(err) {
			s.logger.Warnw("skipping renewal run, previous run still in progress")
			return
		}
		s.logger.Errorw("renewal run failed", "error", err)
		return
	}
	s.logger.Infow("renewal run finished",
		"total_success", resp.TotalSuccess,
		"total_failed", resp.TotalFailed,
		"total_skipped", resp.TotalSkipped)
}

func (s *Scheduler) runOverdue() {
	resp, err := s.RunOverdue(context.Background())
	if err != nil {
		if ierr.IsInvalidOperation(err) {
			s.logger.Warnw("skipping overdue run, previous run still in progress")
			return
		}
		s.logger.Errorw("overdue run failed", "error", err)
		return
	}
	s.logger.Infow("overdue run finished",
		"total_success", resp.TotalSuccess,
		"total_failed", resp.TotalFailed)
}
