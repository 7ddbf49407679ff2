package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// AbacatePaySignatureHeader carries the hex HMAC-SHA256 of the raw request
// body.
const AbacatePaySignatureHeader = "X-Webhook-Signature"

// abacatePayEvent is the wire shape of an AbacatePay billing webhook.
type abacatePayEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  struct {
		Billing struct {
			ID       string `json:"id"`
			Amount   int64  `json:"amount"`
			Metadata struct {
				ExternalID string `json:"externalId"`
			} `json:"metadata"`
			PaidAt *time.Time `json:"paidAt"`
		} `json:"billing"`
	} `json:"data"`
}

// abacatePayEventMap normalizes AbacatePay event names to canonical
// outcomes. billing.updated only persists the payload.
var abacatePayEventMap = map[string]types.PaymentEventType{
	"billing.paid":     types.PaymentEventConfirmed,
	"billing.expired":  types.PaymentEventCanceled,
	"billing.refunded": types.PaymentEventRefunded,
	"billing.updated":  types.PaymentEventInformational,
}

// AbacatePayAdapter adapts AbacatePay webhook deliveries.
type AbacatePayAdapter struct {
	secret string
}

func NewAbacatePayAdapter(secret string) *AbacatePayAdapter {
	return &AbacatePayAdapter{secret: secret}
}

func (a *AbacatePayAdapter) Source() types.PaymentGateway {
	return types.PaymentGatewayAbacatePay
}

// VerifyRequest checks the HMAC-SHA256 signature of the raw body.
func (a *AbacatePayAdapter) VerifyRequest(header http.Header, body []byte) error {
	if a.secret == "" {
		return ierr.NewError("abacatepay webhook secret not configured").
			WithHint("Webhook authentication is not configured").
			Mark(ierr.ErrSystem)
	}

	signature := header.Get(AbacatePaySignatureHeader)
	if signature == "" {
		return ierr.NewError("missing webhook signature").
			WithHint("Webhook authentication failed").
			Mark(ierr.ErrPermissionDenied)
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ierr.NewError("invalid webhook signature").
			WithHint("Webhook authentication failed").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

func (a *AbacatePayAdapter) Parse(body []byte) (*PaymentEvent, error) {
	var raw abacatePayEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed abacatepay webhook payload").
			Mark(ierr.ErrValidation)
	}

	if raw.Data.Billing.ID == "" {
		return nil, ierr.NewError("abacatepay event has no billing id").
			WithHint("Malformed abacatepay webhook payload").
			Mark(ierr.ErrValidation)
	}

	eventType, ok := abacatePayEventMap[raw.Event]
	if !ok {
		eventType = types.PaymentEventInformational
	}

	eventID := raw.ID
	if eventID == "" {
		eventID = raw.Data.Billing.ID + ":" + raw.Event
	}

	// AbacatePay reports amounts in cents
	amount := decimal.NewFromInt(raw.Data.Billing.Amount).Div(decimal.NewFromInt(100))

	event := &PaymentEvent{
		Source:           types.PaymentGatewayAbacatePay,
		EventID:          eventID,
		Type:             eventType,
		GatewayPaymentID: raw.Data.Billing.ID,
		InvoiceRef:       raw.Data.Billing.Metadata.ExternalID,
		Amount:           amount,
		PaidAt:           raw.Data.Billing.PaidAt,
		RawPayload:       body,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}
