package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// Subscription is one commercial billing contract. A plan change or
// reactivation supersedes the contract: the prior subscription is marked
// cancelled and a new one created, so at most one subscription per client is
// ever active or past_due.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// ClientID is the owning client account
	ClientID string `db:"client_id" json:"client_id"`

	// PlanID is the plan this contract bills for
	PlanID string `db:"plan_id" json:"plan_id"`

	// SubscriptionStatus is the status of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// BillingCycle is the recurrence interval
	BillingCycle types.BillingCycle `db:"billing_cycle" json:"billing_cycle"`

	// AnchorDay is the calendar day of month billing recurs on, always in
	// [1, 28] so every month-length variant can resolve it
	AnchorDay int `db:"anchor_day" json:"anchor_day"`

	// StartDate is the first payment date the contract was anchored on
	StartDate time.Time `db:"start_date" json:"start_date"`

	// CurrentPeriodStart is the start of the period already invoiced for
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the period already invoiced for
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// NextBillingDate is the instant the next cycle is due to start
	NextBillingDate time.Time `db:"next_billing_date" json:"next_billing_date"`

	// GraceDays is the number of days past due before escalation to
	// cancellation; zero means the deployment default applies
	GraceDays int `db:"grace_days" json:"grace_days"`

	// Amount is the recurring charge
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Currency is the lowercase ISO code of the amount
	Currency string `db:"currency" json:"currency"`

	// CancelledAt is when the subscription was cancelled
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	types.BaseModel
}

func (s *Subscription) IsCancelled() bool {
	return s.SubscriptionStatus == types.SubscriptionStatusCancelled
}

// EffectiveGraceDays resolves the grace period, falling back to the
// deployment default when the contract does not carry its own.
func (s *Subscription) EffectiveGraceDays(defaultDays int) int {
	if s.GraceDays > 0 {
		return s.GraceDays
	}
	return defaultDays
}

func (s *Subscription) Validate(anchorDayMax int) error {
	if s.ClientID == "" {
		return ierr.NewError("client id is required").
			WithHint("Client id is required").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("Plan id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.BillingCycle.Validate(); err != nil {
		return err
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if s.AnchorDay < 1 || s.AnchorDay > anchorDayMax {
		return ierr.NewError("anchor day out of range").
			WithHintf("Anchor day must be between 1 and %d", anchorDayMax).
			WithReportableDetails(map[string]any{
				"anchor_day": s.AnchorDay,
			}).
			Mark(ierr.ErrValidation)
	}
	if s.Amount.IsNegative() || s.Amount.IsZero() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	return nil
}
