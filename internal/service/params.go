package service

import (
	"github.com/relaycrm/relaycrm/internal/billing"
	"github.com/relaycrm/relaycrm/internal/config"
	"github.com/relaycrm/relaycrm/internal/domain/client"
	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	"github.com/relaycrm/relaycrm/internal/idempotency"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Clock  *billing.Clock

	// Repositories
	ClientRepo  client.Repository
	SubRepo     subscription.Repository
	InvoiceRepo invoice.Repository

	// Ledger dedups external gateway events
	Ledger idempotency.Ledger
}

// NewServiceParams assembles the shared dependency bundle.
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clock *billing.Clock,
	clientRepo client.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	ledger idempotency.Ledger,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		DB:          db,
		Clock:       clock,
		ClientRepo:  clientRepo,
		SubRepo:     subRepo,
		InvoiceRepo: invoiceRepo,
		Ledger:      ledger,
	}
}
