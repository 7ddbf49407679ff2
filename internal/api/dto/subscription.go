package dto

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// CreateSubscriptionRequest starts a new billing contract on conversion or
// direct signup. FirstPaymentDate is a calendar date string in the business
// timezone; the anchor day is derived from it unless an explicit override is
// given.
type CreateSubscriptionRequest struct {
	ClientID          string             `json:"client_id" validate:"required"`
	PlanID            string             `json:"plan_id" validate:"required"`
	BillingCycle      types.BillingCycle `json:"billing_cycle" validate:"required"`
	FirstPaymentDate  string             `json:"first_payment_date" validate:"required"`
	Amount            decimal.Decimal    `json:"amount" validate:"required"`
	Currency          string             `json:"currency,omitempty"`
	AnchorDayOverride *int               `json:"anchor_day_override,omitempty"`
	GraceDays         int                `json:"grace_days,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return ierr.WithError(err).
			WithHint("Request validation failed").
			Mark(ierr.ErrValidation)
	}
	if err := r.BillingCycle.Validate(); err != nil {
		return err
	}
	if r.Amount.IsNegative() || r.Amount.IsZero() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ReactivateSubscriptionRequest supersedes a prior subscription with a new
// contract. The prior subscription is cancelled first; a plan change is the
// same operation with a different plan id.
type ReactivateSubscriptionRequest struct {
	CreateSubscriptionRequest
	PreviousSubscriptionID string `json:"previous_subscription_id" validate:"required"`
}

func (r *ReactivateSubscriptionRequest) Validate() error {
	if r.PreviousSubscriptionID == "" {
		return ierr.NewError("previous subscription id is required").
			WithHint("Previous subscription id is required").
			Mark(ierr.ErrValidation)
	}
	return r.CreateSubscriptionRequest.Validate()
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

// BillingStatusResponse is the stable read model exposed to dashboards and
// CRM views.
type BillingStatusResponse struct {
	SubscriptionID  string                   `json:"subscription_id"`
	Status          types.SubscriptionStatus `json:"status"`
	NextBillingDate time.Time                `json:"next_billing_date"`
	Amount          decimal.Decimal          `json:"amount"`
	Currency        string                   `json:"currency"`

	// NextDueDate resolves through the fallback chain: next billing date,
	// then the oldest pending invoice's due date, then a period computed
	// from the start date; nil when nothing resolves.
	NextDueDate *time.Time `json:"next_due_date,omitempty"`
}

// RenewalRunResponse reports one renewal job execution.
type RenewalRunResponse struct {
	Items        []*RenewalRunItem `json:"items"`
	TotalSuccess int               `json:"total_success"`
	TotalFailed  int               `json:"total_failed"`
	TotalSkipped int               `json:"total_skipped"`
	StartAt      time.Time         `json:"start_at"`
}

type RenewalRunItem struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	// Skipped marks the safety lock: an outstanding invoice blocked this
	// cycle's renewal.
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OverdueRunResponse reports one overdue detector execution.
type OverdueRunResponse struct {
	Items        []*OverdueRunItem `json:"items"`
	TotalSuccess int               `json:"total_success"`
	TotalFailed  int               `json:"total_failed"`
	StartAt      time.Time         `json:"start_at"`
}

type OverdueRunItem struct {
	InvoiceID      string `json:"invoice_id"`
	SubscriptionID string `json:"subscription_id"`
	DaysOverdue    int    `json:"days_overdue"`
	// Action is what the detector did: none, demoted or cancelled
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

const (
	OverdueActionNone      = "none"
	OverdueActionDemoted   = "demoted"
	OverdueActionCancelled = "cancelled"
)
