package types

import (
	"github.com/samber/lo"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
)

// PaymentGateway identifies the external gateway an event originated from
type PaymentGateway string

const (
	PaymentGatewayAsaas      PaymentGateway = "asaas"
	PaymentGatewayAbacatePay PaymentGateway = "abacatepay"
)

func (g PaymentGateway) String() string {
	return string(g)
}

func (g PaymentGateway) Validate() error {
	allowed := []PaymentGateway{
		PaymentGatewayAsaas,
		PaymentGatewayAbacatePay,
	}
	if !lo.Contains(allowed, g) {
		return ierr.NewError("invalid payment gateway").
			WithHint("Invalid payment gateway").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": g,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentEventType is the canonical, gateway-agnostic outcome derived from a
// gateway webhook payload. Adapters normalize before any domain logic runs,
// so nothing past the adapter branches on gateway identity.
type PaymentEventType string

const (
	PaymentEventConfirmed     PaymentEventType = "payment.confirmed"
	PaymentEventOverdue       PaymentEventType = "payment.overdue"
	PaymentEventRefunded      PaymentEventType = "payment.refunded"
	PaymentEventCanceled      PaymentEventType = "payment.canceled"
	PaymentEventInformational PaymentEventType = "informational"
)

func (t PaymentEventType) String() string {
	return string(t)
}

func (t PaymentEventType) Validate() error {
	allowed := []PaymentEventType{
		PaymentEventConfirmed,
		PaymentEventOverdue,
		PaymentEventRefunded,
		PaymentEventCanceled,
		PaymentEventInformational,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid payment event type").
			WithHint("Invalid payment event type").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
