package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}

	clone := *sub
	if sub.CancelledAt != nil {
		at := *sub.CancelledAt
		clone.CancelledAt = &at
	}
	return &clone
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) GetActiveByClient(ctx context.Context, clientID string) (*subscription.Subscription, error) {
	filterFn := func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.ClientID == clientID && !sub.IsCancelled()
	}
	sortFn := func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.After(j.CreatedAt)
	}

	subs, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ierr.NewError("no active subscription").
			WithHintf("Client %s has no active subscription", clientID).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) ListDueForRenewal(ctx context.Context, from, to time.Time, statuses []types.SubscriptionStatus) ([]*subscription.Subscription, error) {
	filterFn := func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if !lo.Contains(statuses, sub.SubscriptionStatus) {
			return false
		}
		return !sub.NextBillingDate.Before(from) && sub.NextBillingDate.Before(to)
	}
	sortFn := func(i, j *subscription.Subscription) bool {
		return i.NextBillingDate.Before(j.NextBillingDate)
	}

	subs, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}
