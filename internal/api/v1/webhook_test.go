package v1

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relaycrm/internal/config"
	"github.com/relaycrm/relaycrm/internal/domain/client"
	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	"github.com/relaycrm/relaycrm/internal/gateway"
	"github.com/relaycrm/relaycrm/internal/idempotency"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/rest/middleware"
	"github.com/relaycrm/relaycrm/internal/service"
	"github.com/relaycrm/relaycrm/internal/testutil"
	"github.com/relaycrm/relaycrm/internal/types"
)

type webhookFixture struct {
	router  *gin.Engine
	stores  testutil.Stores
	invoice *invoice.Invoice
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	stores := testutil.Stores{
		ClientRepo:  testutil.NewInMemoryClientStore(),
		SubRepo:     testutil.NewInMemorySubscriptionStore(),
		InvoiceRepo: testutil.NewInMemoryInvoiceStore(),
	}

	params := service.ServiceParams{
		Logger:      log,
		Config:      cfg,
		DB:          testutil.NewMockPostgresClient(log),
		ClientRepo:  stores.ClientRepo,
		SubRepo:     stores.SubRepo,
		InvoiceRepo: stores.InvoiceRepo,
		Ledger:      idempotency.NewMemoryLedger(cfg.Idempotency.TTL),
	}

	cl := &client.Client{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:         "Test Client",
		ClientStatus: types.ClientStatusPastDue,
		BaseModel:    types.GetDefaultBaseModel(),
	}
	require.NoError(t, stores.ClientRepo.Create(context.Background(), cl))

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ClientID:           cl.ID,
		PlanID:             "plan_pro",
		SubscriptionStatus: types.SubscriptionStatusPastDue,
		BillingCycle:       types.BillingCycleMonthly,
		AnchorDay:          15,
		Amount:             decimal.NewFromInt(200),
		Currency:           "brl",
		BaseModel:          types.GetDefaultBaseModel(),
	}
	require.NoError(t, stores.SubRepo.Create(context.Background(), sub))

	gw := types.PaymentGatewayAsaas
	paymentID := "pay_123"
	inv := &invoice.Invoice{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SubscriptionID:   sub.ID,
		ClientID:         cl.ID,
		Amount:           decimal.NewFromInt(200),
		Currency:         "brl",
		DueDate:          time.Now().UTC().AddDate(0, 0, -2),
		InvoiceStatus:    types.InvoiceStatusOverdue,
		Gateway:          &gw,
		GatewayPaymentID: &paymentID,
		BaseModel:        types.GetDefaultBaseModel(),
	}
	require.NoError(t, stores.InvoiceRepo.Create(context.Background(), inv))

	handler := NewWebhookHandler(
		[]gateway.Adapter{gateway.NewAsaasAdapter("tok_test")},
		service.NewPaymentReconciler(params),
		log,
	)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.POST("/webhooks/asaas", handler.HandleAsaas)
	router.POST("/webhooks/abacatepay", handler.HandleAbacatePay)

	return &webhookFixture{router: router, stores: stores, invoice: inv}
}

func TestWebhookConfirmedPayment(t *testing.T) {
	f := newWebhookFixture(t)

	body := `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_123","value":200,"paymentDate":"2026-03-15"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewBufferString(body))
	req.Header.Set(gateway.AsaasAccessTokenHeader, "tok_test")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	inv, err := f.stores.InvoiceRepo.Get(context.Background(), f.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusPaid, inv.InvoiceStatus)
}

func TestWebhookRejectsBadToken(t *testing.T) {
	f := newWebhookFixture(t)

	body := `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_123"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewBufferString(body))
	req.Header.Set(gateway.AsaasAccessTokenHeader, "tok_wrong")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// nothing was applied
	inv, err := f.stores.InvoiceRepo.Get(context.Background(), f.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusOverdue, inv.InvoiceStatus)
}

func TestWebhookUnconfiguredGateway(t *testing.T) {
	f := newWebhookFixture(t)

	// the abacatepay adapter was not registered in this fixture
	req := httptest.NewRequest(http.MethodPost, "/webhooks/abacatepay", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t)

	body := `{"id":"evt_1","event":"PAYMENT_CONFIRMED","payment":{"id":"pay_123","value":200}}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewBufferString(body))
		req.Header.Set(gateway.AsaasAccessTokenHeader, "tok_test")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	inv, err := f.stores.InvoiceRepo.Get(context.Background(), f.invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InvoiceStatusPaid, inv.InvoiceStatus)
}
