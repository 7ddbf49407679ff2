package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/scheduler"
)

// SubscriptionCronHandler exposes the scheduled job bodies over HTTP so an
// external scheduler or an operator can trigger and observe a run. Triggers
// go through the scheduler so HTTP runs and timer runs share one overlap
// guard per job.
type SubscriptionCronHandler struct {
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

func NewSubscriptionCronHandler(scheduler *scheduler.Scheduler, log *logger.Logger) *SubscriptionCronHandler {
	return &SubscriptionCronHandler{
		scheduler: scheduler,
		log:       log,
	}
}

// @Summary Run the renewal job
// @Description Roll forward every subscription due for renewal today
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.RenewalRunResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cron/subscriptions/renewals [post]
func (h *SubscriptionCronHandler) ProcessRenewals(c *gin.Context) {
	h.log.Infow("starting renewal cron job", "time", time.Now().UTC().Format(time.RFC3339))

	resp, err := h.scheduler.RunRenewals(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to process renewals", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Run the overdue detection job
// @Description Escalate every outstanding invoice past its due date
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.OverdueRunResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cron/invoices/overdue [post]
func (h *SubscriptionCronHandler) ProcessOverdueInvoices(c *gin.Context) {
	h.log.Infow("starting overdue detection cron job", "time", time.Now().UTC().Format(time.RFC3339))

	resp, err := h.scheduler.RunOverdue(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to process overdue invoices", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
