package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/gateway"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/service"
	"github.com/relaycrm/relaycrm/internal/types"
)

// WebhookHandler receives payment-gateway webhook deliveries. Verification
// runs before parsing, parsing before any domain logic; a verified but
// unprocessable event is still answered 200 so the gateway stops retrying.
type WebhookHandler struct {
	adapters   map[types.PaymentGateway]gateway.Adapter
	reconciler service.PaymentReconciler
	log        *logger.Logger
}

func NewWebhookHandler(
	adapters []gateway.Adapter,
	reconciler service.PaymentReconciler,
	log *logger.Logger,
) *WebhookHandler {
	byGateway := make(map[types.PaymentGateway]gateway.Adapter, len(adapters))
	for _, a := range adapters {
		byGateway[a.Source()] = a
	}
	return &WebhookHandler{
		adapters:   byGateway,
		reconciler: reconciler,
		log:        log,
	}
}

// @Summary Asaas webhook
// @Description Receive an Asaas payment webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 401 {object} ierr.ErrorResponse
// @Router /webhooks/asaas [post]
func (h *WebhookHandler) HandleAsaas(c *gin.Context) {
	h.handle(c, types.PaymentGatewayAsaas)
}

// @Summary AbacatePay webhook
// @Description Receive an AbacatePay billing webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 401 {object} ierr.ErrorResponse
// @Router /webhooks/abacatepay [post]
func (h *WebhookHandler) HandleAbacatePay(c *gin.Context) {
	h.handle(c, types.PaymentGatewayAbacatePay)
}

func (h *WebhookHandler) handle(c *gin.Context, source types.PaymentGateway) {
	adapter, ok := h.adapters[source]
	if !ok {
		c.Error(ierr.NewError("gateway not configured").
			WithHintf("No adapter registered for gateway %s", source).
			Mark(ierr.ErrSystem))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook body").
			Mark(ierr.ErrValidation))
		return
	}

	if err := adapter.VerifyRequest(c.Request.Header, body); err != nil {
		h.log.Warnw("rejected webhook delivery",
			"gateway", source,
			"error", err)
		c.Error(err)
		return
	}

	event, err := adapter.Parse(body)
	if err != nil {
		h.log.Warnw("failed to parse webhook payload",
			"gateway", source,
			"error", err)
		c.Error(err)
		return
	}

	if err := h.reconciler.ProcessEvent(c.Request.Context(), event); err != nil {
		h.log.Error("Failed to process gateway event",
			"gateway", source,
			"event_id", event.EventID,
			"error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
