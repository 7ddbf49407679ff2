package service

import (
	"context"
	"time"

	"github.com/relaycrm/relaycrm/internal/api/dto"
	"github.com/relaycrm/relaycrm/internal/domain/client"
	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// SubscriptionService drives the billing lifecycle: contract creation and
// supersession, the daily renewal and overdue jobs, and the read model
// consumed by dashboards.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ReactivateSubscription(ctx context.Context, req dto.ReactivateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetBillingStatus(ctx context.Context, id string) (*dto.BillingStatusResponse, error)

	// ProcessRenewals is the daily renewal job body
	ProcessRenewals(ctx context.Context) (*dto.RenewalRunResponse, error)
	// ProcessOverdueInvoices is the daily overdue detector job body
	ProcessOverdueInvoices(ctx context.Context) (*dto.OverdueRunResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cl, err := s.ClientRepo.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	// at most one non-cancelled subscription per client
	existing, err := s.SubRepo.GetActiveByClient(ctx, req.ClientID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing != nil && err == nil {
		return nil, ierr.NewError("client already has an active subscription").
			WithHint("Cancel or supersede the current subscription first").
			WithReportableDetails(map[string]any{
				"subscription_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	var sub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		sub, err = s.createSubscription(ctx, cl, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID,
		"anchor_day", sub.AnchorDay,
		"next_billing_date", sub.NextBillingDate)

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ReactivateSubscription(ctx context.Context, req dto.ReactivateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prev, err := s.SubRepo.Get(ctx, req.PreviousSubscriptionID)
	if err != nil {
		return nil, err
	}
	if prev.ClientID != req.ClientID {
		return nil, ierr.NewError("previous subscription belongs to another client").
			WithHint("Previous subscription does not belong to this client").
			Mark(ierr.ErrValidation)
	}

	cl, err := s.ClientRepo.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	// supersession only replaces the contract named in the request; any
	// other live contract still blocks, same as plain creation
	existing, err := s.SubRepo.GetActiveByClient(ctx, req.ClientID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if err == nil && existing.ID != prev.ID {
		return nil, ierr.NewError("client already has an active subscription").
			WithHint("Cancel or supersede the current subscription first").
			WithReportableDetails(map[string]any{
				"subscription_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	var sub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// supersede: the prior contract is cancelled before the new one
		// exists, so the one-active-subscription invariant holds
		if !prev.IsCancelled() {
			if err := s.cancelSubscriptionRecords(ctx, prev); err != nil {
				return err
			}
		}

		sub, err = s.createSubscription(ctx, cl, req.CreateSubscriptionRequest)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reactivated subscription",
		"subscription_id", sub.ID,
		"superseded_subscription_id", prev.ID,
		"client_id", sub.ClientID)

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

// createSubscription persists the new contract, its first pending invoice
// and the client promotion. Callers own the transaction boundary.
func (s *subscriptionService) createSubscription(ctx context.Context, cl *client.Client, req dto.CreateSubscriptionRequest) (*subscription.Subscription, error) {
	firstDue, err := s.parseBusinessDate(req.FirstPaymentDate)
	if err != nil {
		return nil, err
	}

	anchorMax := s.Config.Billing.AnchorDayMax
	anchorDay := s.Clock.ResolveAnchorDay(firstDue, anchorMax)
	if req.AnchorDayOverride != nil {
		// an explicit override wins over the derived anchor, but the
		// boundary owns the clamp contract
		if *req.AnchorDayOverride < 1 || *req.AnchorDayOverride > anchorMax {
			return nil, ierr.NewError("anchor day override out of range").
				WithHintf("Anchor day must be between 1 and %d", anchorMax).
				WithReportableDetails(map[string]any{
					"anchor_day_override": *req.AnchorDayOverride,
				}).
				Mark(ierr.ErrValidation)
		}
		anchorDay = *req.AnchorDayOverride
	}

	currency := req.Currency
	if currency == "" {
		currency = s.Config.Billing.Currency
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ClientID:           cl.ID,
		PlanID:             req.PlanID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		BillingCycle:       req.BillingCycle,
		AnchorDay:          anchorDay,
		StartDate:          firstDue,
		CurrentPeriodStart: firstDue,
		CurrentPeriodEnd:   s.Clock.PeriodEnd(firstDue, req.BillingCycle),
		NextBillingDate:    s.Clock.NextBillingDate(firstDue, anchorDay, req.BillingCycle),
		GraceDays:          req.GraceDays,
		Amount:             req.Amount,
		Currency:           currency,
		BaseModel:          types.GetDefaultBaseModel(),
	}
	if err := sub.Validate(anchorMax); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SubscriptionID: sub.ID,
		ClientID:       cl.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		DueDate:        firstDue,
		InvoiceStatus:  types.InvoiceStatusPending,
		BaseModel:      types.GetDefaultBaseModel(),
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	cl.ClientStatus = types.ClientStatusActive
	cl.PlanID = req.PlanID
	cl.CurrentSubscriptionID = &sub.ID
	if err := s.ClientRepo.Update(ctx, cl); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.IsCancelled() {
		return nil, ierr.NewError("subscription already cancelled").
			WithHint("Subscription is already cancelled").
			Mark(ierr.ErrInvalidOperation)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.cancelSubscriptionRecords(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled subscription",
		"subscription_id", sub.ID,
		"client_id", sub.ClientID)

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

// cancelSubscriptionRecords applies the explicit-cancel transition to the
// subscription, its client and any outstanding invoices. Paid history is
// untouched. Callers own the transaction boundary.
func (s *subscriptionService) cancelSubscriptionRecords(ctx context.Context, sub *subscription.Subscription) error {
	next, err := sub.SubscriptionStatus.Transition(types.LifecycleEventCancelRequested)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	sub.SubscriptionStatus = next
	sub.CancelledAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	cl, err := s.ClientRepo.Get(ctx, sub.ClientID)
	if err != nil {
		return err
	}
	if cl.ClientStatus.CanTransition(types.LifecycleEventCancelRequested) {
		cl.ClientStatus, _ = cl.ClientStatus.Transition(types.LifecycleEventCancelRequested)
	}
	cl.CurrentSubscriptionID = nil
	if err := s.ClientRepo.Update(ctx, cl); err != nil {
		return err
	}

	outstanding, err := s.InvoiceRepo.ListOutstandingBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	for _, inv := range outstanding {
		status, err := inv.InvoiceStatus.Transition(types.PaymentEventCanceled)
		if err != nil {
			return err
		}
		inv.InvoiceStatus = status
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
	}

	return nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) GetBillingStatus(ctx context.Context, id string) (*dto.BillingStatusResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &dto.BillingStatusResponse{
		SubscriptionID:  sub.ID,
		Status:          sub.SubscriptionStatus,
		NextBillingDate: sub.NextBillingDate,
		Amount:          sub.Amount,
		Currency:        sub.Currency,
	}

	resp.NextDueDate, err = s.resolveNextDueDate(ctx, sub)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// resolveNextDueDate walks the fallback chain: next billing date, oldest
// outstanding invoice due date, period computed from the start date, nil.
func (s *subscriptionService) resolveNextDueDate(ctx context.Context, sub *subscription.Subscription) (*time.Time, error) {
	if !sub.NextBillingDate.IsZero() {
		next := sub.NextBillingDate
		return &next, nil
	}

	outstanding, err := s.InvoiceRepo.ListOutstandingBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if len(outstanding) > 0 {
		due := outstanding[0].DueDate
		return &due, nil
	}

	if !sub.StartDate.IsZero() {
		computed := s.Clock.PeriodEnd(sub.StartDate, sub.BillingCycle)
		return &computed, nil
	}

	return nil, nil
}

// ProcessRenewals rolls forward every active subscription whose next billing
// date falls within today's business-calendar day. Re-running on the same
// day is a no-op: a rolled-forward subscription's next billing date no
// longer falls today.
func (s *subscriptionService) ProcessRenewals(ctx context.Context) (*dto.RenewalRunResponse, error) {
	now := time.Now().UTC()
	dayStart, dayEnd := s.Clock.DayBounds(now)

	s.Logger.Infow("starting renewal run",
		"day_start", dayStart,
		"day_end", dayEnd)

	response := &dto.RenewalRunResponse{
		Items:   make([]*dto.RenewalRunItem, 0),
		StartAt: now,
	}

	subs, err := s.SubRepo.ListDueForRenewal(ctx, dayStart, dayEnd,
		[]types.SubscriptionStatus{types.SubscriptionStatusActive})
	if err != nil {
		return response, err
	}

	for _, sub := range subs {
		item := &dto.RenewalRunItem{SubscriptionID: sub.ID}

		skipped, err := s.processRenewal(ctx, sub)
		switch {
		case err != nil:
			// per-item isolation: a transient failure on one
			// subscription must not block renewal of the others
			s.Logger.Errorw("failed to renew subscription",
				"subscription_id", sub.ID,
				"error", err)
			response.TotalFailed++
			item.Error = err.Error()
		case skipped:
			response.TotalSkipped++
			item.Skipped = true
		default:
			response.TotalSuccess++
			item.Success = true
		}

		response.Items = append(response.Items, item)
	}

	s.Logger.Infow("completed renewal run",
		"total_success", response.TotalSuccess,
		"total_failed", response.TotalFailed,
		"total_skipped", response.TotalSkipped)

	return response, nil
}

// processRenewal advances one subscription's period and creates the next
// pending invoice in a single transaction. The safety lock comes first:
// never stack a new charge on top of an unresolved one.
func (s *subscriptionService) processRenewal(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	var skipped bool
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		// the lock is evaluated inside the transaction so a concurrent run
		// cannot slip a second pending invoice in between check and write
		outstanding, err := s.InvoiceRepo.ListOutstandingBySubscription(ctx, sub.ID)
		if err != nil {
			return err
		}
		if len(outstanding) > 0 {
			s.Logger.Warnw("renewal blocked by outstanding invoice",
				"subscription_id", sub.ID,
				"invoice_id", outstanding[0].ID,
				"invoice_status", outstanding[0].InvoiceStatus)
			skipped = true
			return nil
		}

		newStart := sub.NextBillingDate
		sub.CurrentPeriodStart = newStart
		sub.CurrentPeriodEnd = s.Clock.PeriodEnd(newStart, sub.BillingCycle)
		sub.NextBillingDate = s.Clock.NextBillingDate(newStart, sub.AnchorDay, sub.BillingCycle)

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}

		inv := &invoice.Invoice{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			SubscriptionID: sub.ID,
			ClientID:       sub.ClientID,
			Amount:         sub.Amount,
			Currency:       sub.Currency,
			DueDate:        newStart,
			InvoiceStatus:  types.InvoiceStatusPending,
			BaseModel:      types.GetDefaultBaseModel(),
		}
		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return false, err
	}
	if skipped {
		return true, nil
	}

	s.Logger.Infow("renewed subscription",
		"subscription_id", sub.ID,
		"period_start", sub.CurrentPeriodStart,
		"period_end", sub.CurrentPeriodEnd,
		"next_billing_date", sub.NextBillingDate)

	return false, nil
}

// ProcessOverdueInvoices escalates every outstanding invoice past its due
// date: within the grace window the client and subscription are demoted to
// past_due; past the grace window the subscription, client and invoice are
// cancelled together. Each invoice is processed in its own transaction.
func (s *subscriptionService) ProcessOverdueInvoices(ctx context.Context) (*dto.OverdueRunResponse, error) {
	now := time.Now().UTC()

	s.Logger.Infow("starting overdue detection run")

	response := &dto.OverdueRunResponse{
		Items:   make([]*dto.OverdueRunItem, 0),
		StartAt: now,
	}

	invoices, err := s.InvoiceRepo.ListOutstandingDueBefore(ctx, now)
	if err != nil {
		return response, err
	}

	for _, inv := range invoices {
		item := &dto.OverdueRunItem{
			InvoiceID:      inv.ID,
			SubscriptionID: inv.SubscriptionID,
			DaysOverdue:    s.Clock.DaysOverdue(inv.DueDate, now),
		}

		action, err := s.escalateInvoice(ctx, inv, now)
		if err != nil {
			s.Logger.Errorw("failed to escalate overdue invoice",
				"invoice_id", inv.ID,
				"subscription_id", inv.SubscriptionID,
				"error", err)
			response.TotalFailed++
			item.Error = err.Error()
			item.Action = dto.OverdueActionNone
		} else {
			response.TotalSuccess++
			item.Action = action
		}

		response.Items = append(response.Items, item)
	}

	s.Logger.Infow("completed overdue detection run",
		"total_success", response.TotalSuccess,
		"total_failed", response.TotalFailed)

	return response, nil
}

func (s *subscriptionService) escalateInvoice(ctx context.Context, inv *invoice.Invoice, now time.Time) (string, error) {
	// the overdue detector never touches resolved invoices
	if !inv.IsOutstanding() {
		return dto.OverdueActionNone, nil
	}

	days := s.Clock.DaysOverdue(inv.DueDate, now)
	if days <= 0 {
		return dto.OverdueActionNone, nil
	}

	sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return dto.OverdueActionNone, err
	}
	if sub.IsCancelled() {
		return dto.OverdueActionNone, nil
	}

	grace := sub.EffectiveGraceDays(s.Config.Billing.GraceDays)
	if days > grace {
		err = s.DB.WithTx(ctx, func(ctx context.Context) error {
			return s.cascadeCancel(ctx, sub, inv)
		})
		if err != nil {
			return dto.OverdueActionNone, err
		}

		s.Logger.Infow("cancelled subscription past grace period",
			"subscription_id", sub.ID,
			"invoice_id", inv.ID,
			"days_overdue", days,
			"grace_days", grace)
		return dto.OverdueActionCancelled, nil
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.demotePastDue(ctx, sub)
	})
	if err != nil {
		return dto.OverdueActionNone, err
	}

	s.Logger.Infow("demoted subscription to past due",
		"subscription_id", sub.ID,
		"invoice_id", inv.ID,
		"days_overdue", days,
		"grace_days", grace)
	return dto.OverdueActionDemoted, nil
}

// demotePastDue marks the subscription and client past_due. Re-application
// is a self-transition, so repeated runs are no-ops at the persistence
// level.
func (s *subscriptionService) demotePastDue(ctx context.Context, sub *subscription.Subscription) error {
	next, err := sub.SubscriptionStatus.Transition(types.LifecycleEventPaymentOverdue)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus != next {
		sub.SubscriptionStatus = next
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	cl, err := s.ClientRepo.Get(ctx, sub.ClientID)
	if err != nil {
		return err
	}
	if cl.ClientStatus.CanTransition(types.LifecycleEventPaymentOverdue) {
		next, _ := cl.ClientStatus.Transition(types.LifecycleEventPaymentOverdue)
		if cl.ClientStatus != next {
			cl.ClientStatus = next
			if err := s.ClientRepo.Update(ctx, cl); err != nil {
				return err
			}
		}
	}
	return nil
}

// cascadeCancel cancels subscription, client and invoice in one atomic
// step.
func (s *subscriptionService) cascadeCancel(ctx context.Context, sub *subscription.Subscription, inv *invoice.Invoice) error {
	next, err := sub.SubscriptionStatus.Transition(types.LifecycleEventGraceExpired)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	sub.SubscriptionStatus = next
	sub.CancelledAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	cl, err := s.ClientRepo.Get(ctx, sub.ClientID)
	if err != nil {
		return err
	}
	if cl.ClientStatus.CanTransition(types.LifecycleEventGraceExpired) {
		cl.ClientStatus, _ = cl.ClientStatus.Transition(types.LifecycleEventGraceExpired)
	}
	cl.CurrentSubscriptionID = nil
	if err := s.ClientRepo.Update(ctx, cl); err != nil {
		return err
	}

	status, err := inv.InvoiceStatus.Transition(types.PaymentEventCanceled)
	if err != nil {
		return err
	}
	inv.InvoiceStatus = status
	return s.InvoiceRepo.Update(ctx, inv)
}

// parseBusinessDate parses a calendar date string and pins it to the
// billing instant in the business timezone.
func (s *subscriptionService) parseBusinessDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", value, s.Clock.Location())
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("Invalid calendar date %q, expected YYYY-MM-DD", value).
			Mark(ierr.ErrValidation)
	}
	return s.Clock.At(parsed.Year(), parsed.Month(), parsed.Day()), nil
}
