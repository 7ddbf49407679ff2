package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

func signAbacatePay(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAbacatePayVerifyRequest(t *testing.T) {
	adapter := NewAbacatePayAdapter("whsec_test")
	body := []byte(`{"event":"billing.paid"}`)

	t.Run("valid signature", func(t *testing.T) {
		header := http.Header{}
		header.Set(AbacatePaySignatureHeader, signAbacatePay("whsec_test", body))
		assert.NoError(t, adapter.VerifyRequest(header, body))
	})

	t.Run("signature over different body", func(t *testing.T) {
		header := http.Header{}
		header.Set(AbacatePaySignatureHeader, signAbacatePay("whsec_test", []byte(`{"event":"billing.expired"}`)))
		err := adapter.VerifyRequest(header, body)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := http.Header{}
		header.Set(AbacatePaySignatureHeader, signAbacatePay("whsec_other", body))
		err := adapter.VerifyRequest(header, body)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("missing signature", func(t *testing.T) {
		err := adapter.VerifyRequest(http.Header{}, body)
		require.Error(t, err)
		assert.True(t, ierr.IsPermissionDenied(err))
	})

	t.Run("unconfigured adapter rejects everything", func(t *testing.T) {
		unconfigured := NewAbacatePayAdapter("")
		header := http.Header{}
		header.Set(AbacatePaySignatureHeader, signAbacatePay("", body))
		err := unconfigured.VerifyRequest(header, body)
		require.Error(t, err)
		assert.False(t, ierr.IsPermissionDenied(err))
	})
}

func TestAbacatePayParse(t *testing.T) {
	adapter := NewAbacatePayAdapter("whsec_test")

	t.Run("billing paid", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_abc",
			"event": "billing.paid",
			"data": {
				"billing": {
					"id": "bill_123",
					"amount": 19990,
					"metadata": {"externalId": "inv_xyz"},
					"paidAt": "2026-03-15T14:30:00Z"
				}
			}
		}`)

		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.PaymentGatewayAbacatePay, event.Source)
		assert.Equal(t, "evt_abc", event.EventID)
		assert.Equal(t, types.PaymentEventConfirmed, event.Type)
		assert.Equal(t, "bill_123", event.GatewayPaymentID)
		assert.Equal(t, "inv_xyz", event.InvoiceRef)
		// amounts arrive in cents
		assert.Equal(t, "199.9", event.Amount.String())
		require.NotNil(t, event.PaidAt)
		assert.Equal(t, 15, event.PaidAt.Day())
	})

	t.Run("billing expired maps to canceled", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"id":"evt_1","event":"billing.expired","data":{"billing":{"id":"bill_1","amount":1000}}}`))
		require.NoError(t, err)
		assert.Equal(t, types.PaymentEventCanceled, event.Type)
	})

	t.Run("unknown event is informational", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"id":"evt_1","event":"billing.disputed","data":{"billing":{"id":"bill_1","amount":1000}}}`))
		require.NoError(t, err)
		assert.Equal(t, types.PaymentEventInformational, event.Type)
	})

	t.Run("missing event id falls back to billing identity", func(t *testing.T) {
		event, err := adapter.Parse([]byte(`{"event":"billing.paid","data":{"billing":{"id":"bill_1","amount":1000}}}`))
		require.NoError(t, err)
		assert.Equal(t, "bill_1:billing.paid", event.EventID)
	})

	t.Run("missing billing id is rejected", func(t *testing.T) {
		_, err := adapter.Parse([]byte(`{"id":"evt_1","event":"billing.paid","data":{"billing":{}}}`))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}
