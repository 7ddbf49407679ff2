package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// AsaasAccessTokenHeader carries the shared token Asaas echoes back on every
// webhook delivery.
const AsaasAccessTokenHeader = "Asaas-Access-Token"

// asaasEvent is the wire shape of an Asaas payment webhook.
type asaasEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payment struct {
		ID                string          `json:"id"`
		Status            string          `json:"status"`
		Value             decimal.Decimal `json:"value"`
		ExternalReference string          `json:"externalReference"`
		PaymentDate       string          `json:"paymentDate"`
	} `json:"payment"`
}

// asaasEventMap normalizes Asaas event names to canonical outcomes. Creation
// and pending notifications carry no state change.
var asaasEventMap = map[string]types.PaymentEventType{
	"PAYMENT_CREATED":   types.PaymentEventInformational,
	"PAYMENT_PENDING":   types.PaymentEventInformational,
	"PAYMENT_UPDATED":   types.PaymentEventInformational,
	"PAYMENT_RECEIVED":  types.PaymentEventConfirmed,
	"PAYMENT_CONFIRMED": types.PaymentEventConfirmed,
	"PAYMENT_OVERDUE":   types.PaymentEventOverdue,
	"PAYMENT_REFUNDED":  types.PaymentEventRefunded,
	"PAYMENT_DELETED":   types.PaymentEventCanceled,
}

// AsaasAdapter adapts Asaas webhook deliveries.
type AsaasAdapter struct {
	accessToken string
}

func NewAsaasAdapter(accessToken string) *AsaasAdapter {
	return &AsaasAdapter{accessToken: accessToken}
}

func (a *AsaasAdapter) Source() types.PaymentGateway {
	return types.PaymentGatewayAsaas
}

// VerifyRequest compares the access-token header against the configured
// token in constant time.
func (a *AsaasAdapter) VerifyRequest(header http.Header, _ []byte) error {
	if a.accessToken == "" {
		return ierr.NewError("asaas access token not configured").
			WithHint("Webhook authentication is not configured").
			Mark(ierr.ErrSystem)
	}

	got := header.Get(AsaasAccessTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.accessToken)) != 1 {
		return ierr.NewError("invalid asaas access token").
			WithHint("Webhook authentication failed").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

func (a *AsaasAdapter) Parse(body []byte) (*PaymentEvent, error) {
	var raw asaasEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed asaas webhook payload").
			Mark(ierr.ErrValidation)
	}

	if raw.Payment.ID == "" {
		return nil, ierr.NewError("asaas event has no payment id").
			WithHint("Malformed asaas webhook payload").
			Mark(ierr.ErrValidation)
	}

	eventType, ok := asaasEventMap[raw.Event]
	if !ok {
		// Unknown event names require no state change; the payload is
		// still recorded against the invoice.
		eventType = types.PaymentEventInformational
	}

	eventID := raw.ID
	if eventID == "" {
		// Older webhook versions omit the event id; the payment id plus
		// event name is the stable identity Asaas retries with.
		eventID = raw.Payment.ID + ":" + raw.Event
	}

	event := &PaymentEvent{
		Source:           types.PaymentGatewayAsaas,
		EventID:          eventID,
		Type:             eventType,
		GatewayPaymentID: raw.Payment.ID,
		InvoiceRef:       raw.Payment.ExternalReference,
		Amount:           raw.Payment.Value,
		PaidAt:           parseAsaasDate(raw.Payment.PaymentDate),
		RawPayload:       body,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

func parseAsaasDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
