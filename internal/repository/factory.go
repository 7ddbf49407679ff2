package repository

import (
	"github.com/relaycrm/relaycrm/internal/domain/client"
	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
	postgresRepo "github.com/relaycrm/relaycrm/internal/repository/postgres"
)

func NewClientRepository(db postgres.IClient, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}
