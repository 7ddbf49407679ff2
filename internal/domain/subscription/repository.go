package subscription

import (
	"context"
	"time"

	"github.com/relaycrm/relaycrm/internal/types"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error

	// GetActiveByClient returns the client's current non-cancelled
	// subscription if one exists.
	GetActiveByClient(ctx context.Context, clientID string) (*Subscription, error)

	// ListDueForRenewal returns subscriptions in the given statuses whose
	// next billing date falls within [from, to).
	ListDueForRenewal(ctx context.Context, from, to time.Time, statuses []types.SubscriptionStatus) ([]*Subscription, error)
}
