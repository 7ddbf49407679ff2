package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

func TestAsaasVerifyRequest(t *testing.T) {
	adapter := NewAsaasAdapter("tok_secret")

	t.Run("valid token", func(t *testing.T) {
		header := http.Header{}
		header.Set(AsaasAccessTokenHeader, "tok_secret")
		assert.NoError(t, adapter.VerifyRequest(header, nil))
	})

	t.Run("wrong token", func(t *testing.T) {
		header := http.Header{}
		header.Set(AsaasAccessTokenHeader, "tok_wrong")
		err := adapter.VerifyRequest(header, nil)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("missing token", func(t *testing.T) {
		err := adapter.VerifyRequest(http.Header{}, nil)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("unconfigured adapter rejects everything", func(t *testing.T) {
		unconfigured := NewAsaasAdapter("")
		header := http.Header{}
		header.Set(AsaasAccessTokenHeader, "")
		err := unconfigured.VerifyRequest(header, nil)
		require.Error(t, err)
		assert.False(t, ierr.IsPermissionDenied(err))
	})
}

func TestAsaasParse(t *testing.T) {
	adapter := NewAsaasAdapter("tok_secret")

	t.Run("payment confirmed", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_abc",
			"event": "PAYMENT_CONFIRMED",
			"payment": {
				"id": "pay_123",
				"status": "CONFIRMED",
				"value": 199.90,
				"externalReference": "inv_xyz",
				"paymentDate": "2026-03-15"
			}
		}`)

		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.PaymentGatewayAsaas, event.Source)
		assert.Equal(t, "evt_abc", event.EventID)
		assert.Equal(t, types.PaymentEventConfirmed, event.Type)
		assert.Equal(t, "pay_123", event.GatewayPaymentID)
		assert.Equal(t, "inv_xyz", event.InvoiceRef)
		assert.Equal(t, "199.9", event.Amount.String())
		require.NotNil(t, event.PaidAt)
		assert.Equal(t, 15, event.PaidAt.Day())
		assert.JSONEq(t, string(body), string(event.RawPayload))
	})

	t.Run("received maps to confirmed", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"id":"evt_1","event":"PAYMENT_RECEIVED","payment":{"id":"pay_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, types.PaymentEventConfirmed, event.Type)
	})

	t.Run("overdue", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"id":"evt_1","event":"PAYMENT_OVERDUE","payment":{"id":"pay_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, types.PaymentEventOverdue, event.Type)
	})

	t.Run("unknown event is informational", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"id":"evt_1","event":"PAYMENT_SPLIT_DIVERGENCE_BLOCK","payment":{"id":"pay_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, types.PaymentEventInformational, event.Type)
	})

	t.Run("missing event id falls back to payment identity", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, "pay_1:PAYMENT_CONFIRMED", event.EventID)
	})

	t.Run("missing payment id is rejected", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{}}`))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{not json`))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}
