package invoice

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// Invoice is one billing event for a subscription. Under normal operation
// exactly one invoice per subscription is outstanding at a time; paid
// invoices are immutable history and are never re-opened, even after the
// client is cancelled.
type Invoice struct {
	// ID is the unique identifier for the invoice
	ID string `db:"id" json:"id"`

	// SubscriptionID is the owning subscription
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// ClientID is the owning client account
	ClientID string `db:"client_id" json:"client_id"`

	// Amount is the charged amount
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Currency is the lowercase ISO code of the amount
	Currency string `db:"currency" json:"currency"`

	// DueDate is the billing instant the invoice falls due on
	DueDate time.Time `db:"due_date" json:"due_date"`

	// InvoiceStatus is the status of the invoice
	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// PaidAt is when the gateway confirmed payment
	PaidAt *time.Time `db:"paid_at" json:"paid_at,omitempty"`

	// Gateway is the payment gateway the invoice was issued through
	Gateway *types.PaymentGateway `db:"gateway" json:"gateway,omitempty"`

	// GatewayPaymentID is the gateway-native id of the charge, used to
	// locate the invoice when webhook events arrive
	GatewayPaymentID *string `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`

	// RawGatewayPayload is the last gateway payload applied to this
	// invoice, kept for audit
	RawGatewayPayload json.RawMessage `db:"raw_gateway_payload" json:"raw_gateway_payload,omitempty"`

	types.BaseModel
}

// IsOutstanding reports whether the invoice still blocks renewal.
func (i *Invoice) IsOutstanding() bool {
	return i.InvoiceStatus.IsOutstanding()
}

func (i *Invoice) Validate() error {
	if i.SubscriptionID == "" {
		return ierr.NewError("subscription id is required").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if i.ClientID == "" {
		return ierr.NewError("client id is required").
			WithHint("Client id is required").
			Mark(ierr.ErrValidation)
	}
	if i.Amount.IsNegative() || i.Amount.IsZero() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if i.DueDate.IsZero() {
		return ierr.NewError("due date is required").
			WithHint("Due date is required").
			Mark(ierr.ErrValidation)
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}
	return nil
}
