package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relaycrm/internal/api/dto"
	"github.com/relaycrm/relaycrm/internal/billing"
	"github.com/relaycrm/relaycrm/internal/config"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/service"
)

// blockingService stalls renewal runs until released so overlapping
// triggers can be exercised deterministically.
type blockingService struct {
	service.SubscriptionService
	started chan struct{}
	release chan struct{}
}

func (s *blockingService) ProcessRenewals(_ context.Context) (*dto.RenewalRunResponse, error) {
	s.started <- struct{}{}
	<-s.release
	return &dto.RenewalRunResponse{}, nil
}

func (s *blockingService) ProcessOverdueInvoices(_ context.Context) (*dto.OverdueRunResponse, error) {
	return &dto.OverdueRunResponse{}, nil
}

func newTestScheduler(t *testing.T, svc service.SubscriptionService) *Scheduler {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	clock, err := billing.NewClockFromTimezone(cfg.Billing.Timezone)
	require.NoError(t, err)
	return NewScheduler(cfg, clock, svc, log)
}

func TestRunRenewalsRejectsOverlappingTrigger(t *testing.T) {
	svc := &blockingService{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sched := newTestScheduler(t, svc)

	firstDone := make(chan error, 1)
	go func() {
		_, err := sched.RunRenewals(context.Background())
		firstDone <- err
	}()
	<-svc.started

	// a second trigger while the first run holds the guard is rejected,
	// whether it comes from the timer or the cron HTTP endpoint
	_, err := sched.RunRenewals(context.Background())
	require.Error(t, err)
	require.True(t, ierr.IsInvalidOperation(err))

	// the overdue job has its own guard and is unaffected
	_, err = sched.RunOverdue(context.Background())
	require.NoError(t, err)

	svc.release <- struct{}{}
	require.NoError(t, <-firstDone)

	// the guard frees once the run finishes
	go func() {
		<-svc.started
		svc.release <- struct{}{}
	}()
	_, err = sched.RunRenewals(context.Background())
	require.NoError(t, err)
}
