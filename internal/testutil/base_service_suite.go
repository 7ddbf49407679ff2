package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/relaycrm/relaycrm/internal/billing"
	"github.com/relaycrm/relaycrm/internal/config"
	"github.com/relaycrm/relaycrm/internal/domain/client"
	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	"github.com/relaycrm/relaycrm/internal/idempotency"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
	"github.com/relaycrm/relaycrm/internal/types"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	ClientRepo  client.Repository
	SubRepo     subscription.Repository
	InvoiceRepo invoice.Repository
}

// BaseServiceTestSuite provides common functionality for all service test
// suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     postgres.IClient
	logger *logger.Logger
	config *config.Configuration
	clock  *billing.Clock
	ledger idempotency.Ledger
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	var err error
	s.config = config.GetDefaultConfig()
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.clock, err = billing.NewClockFromTimezone(s.config.Billing.Timezone)
	if err != nil {
		s.T().Fatalf("failed to create billing clock: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		ClientRepo:  NewInMemoryClientStore(),
		SubRepo:     NewInMemorySubscriptionStore(),
		InvoiceRepo: NewInMemoryInvoiceStore(),
	}
	s.db = NewMockPostgresClient(s.logger)
	s.ledger = idempotency.NewMemoryLedger(s.config.Idempotency.TTL)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.stores.SubRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetClock returns the business-timezone billing clock
func (s *BaseServiceTestSuite) GetClock() *billing.Clock {
	return s.clock
}

// GetLedger returns the idempotency ledger
func (s *BaseServiceTestSuite) GetLedger() idempotency.Ledger {
	return s.ledger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
