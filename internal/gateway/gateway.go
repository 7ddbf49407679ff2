// Package gateway normalizes heterogeneous payment-gateway webhook payloads
// into one canonical event shape. Each gateway gets an Adapter; once a
// payload has been verified and parsed, nothing downstream branches on
// gateway identity again.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/idempotency"
	"github.com/relaycrm/relaycrm/internal/types"
)

// PaymentEvent is the canonical, gateway-agnostic payment notification.
type PaymentEvent struct {
	// Source is the gateway the event originated from
	Source types.PaymentGateway `json:"source"`

	// EventID is the gateway's own event id. Gateways redeliver the same
	// native id on retry, which is what makes the dedup key stable.
	EventID string `json:"event_id"`

	// Type is the canonical outcome
	Type types.PaymentEventType `json:"type"`

	// GatewayPaymentID is the gateway-native id of the charge the event
	// refers to
	GatewayPaymentID string `json:"gateway_payment_id"`

	// InvoiceRef is our own invoice id passed through the gateway at
	// invoice-creation time, used as a fallback lookup
	InvoiceRef string `json:"invoice_ref,omitempty"`

	// Amount is the event amount when the gateway reports one
	Amount decimal.Decimal `json:"amount"`

	// PaidAt is the payment instant for confirmations, when reported
	PaidAt *time.Time `json:"paid_at,omitempty"`

	// RawPayload is the verbatim gateway body, persisted for audit
	RawPayload json.RawMessage `json:"-"`
}

// Key returns the idempotency ledger key for the event.
func (e *PaymentEvent) Key() string {
	return idempotency.Key(e.Source, e.EventID)
}

func (e *PaymentEvent) Validate() error {
	if err := e.Source.Validate(); err != nil {
		return err
	}
	if e.EventID == "" {
		return ierr.NewError("event id is required").
			WithHint("Webhook payload is missing the event id").
			Mark(ierr.ErrValidation)
	}
	if err := e.Type.Validate(); err != nil {
		return err
	}
	return nil
}

// Adapter verifies and parses one gateway's webhook requests. VerifyRequest
// is a precondition: it runs before any parsing or domain logic, and a
// failure must never reach the idempotency ledger.
type Adapter interface {
	Source() types.PaymentGateway
	VerifyRequest(header http.Header, body []byte) error
	Parse(body []byte) (*PaymentEvent, error)
}
