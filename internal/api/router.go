package api

import (
	"github.com/gin-gonic/gin"

	"github.com/relaycrm/relaycrm/internal/api/cron"
	v1 "github.com/relaycrm/relaycrm/internal/api/v1"
	"github.com/relaycrm/relaycrm/internal/rest/middleware"
)

type Handlers struct {
	Health           *v1.HealthHandler
	Subscription     *v1.SubscriptionHandler
	Webhook          *v1.WebhookHandler
	SubscriptionCron *cron.SubscriptionCronHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	// webhook routes are unversioned: gateways keep the URL they were
	// registered with
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/asaas", handlers.Webhook.HandleAsaas)
		webhooks.POST("/abacatepay", handlers.Webhook.HandleAbacatePay)
	}

	// cron routes for external schedulers and operators
	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/subscriptions/renewals", handlers.SubscriptionCron.ProcessRenewals)
		cronGroup.POST("/invoices/overdue", handlers.SubscriptionCron.ProcessOverdueInvoices)
	}

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.GET("/:id/billing", handlers.Subscription.GetBillingStatus)
		subscriptions.POST("/:id/reactivate", handlers.Subscription.ReactivateSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
	}
}
