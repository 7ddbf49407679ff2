package invoice

import (
	"context"
	"time"

	"github.com/relaycrm/relaycrm/internal/types"
)

type Repository interface {
	Create(ctx context.Context, invoice *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, invoice *Invoice) error

	// GetByGatewayPaymentID locates an invoice by the gateway-native charge
	// id stored at issue time.
	GetByGatewayPaymentID(ctx context.Context, gateway types.PaymentGateway, gatewayPaymentID string) (*Invoice, error)

	// ListOutstandingBySubscription returns pending and overdue invoices
	// for the subscription, oldest due first.
	ListOutstandingBySubscription(ctx context.Context, subscriptionID string) ([]*Invoice, error)

	// ListOutstandingDueBefore returns all pending and overdue invoices
	// whose due date is before the given instant.
	ListOutstandingDueBefore(ctx context.Context, before time.Time) ([]*Invoice, error)
}
