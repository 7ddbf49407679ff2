package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/relaycrm/relaycrm/internal/domain/client"
)

// InMemoryClientStore implements client.Repository
type InMemoryClientStore struct {
	*InMemoryStore[*client.Client]
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore[*client.Client](),
	}
}

func copyClient(c *client.Client) *client.Client {
	if c == nil {
		return nil
	}

	clone := *c
	if c.CurrentSubscriptionID != nil {
		id := *c.CurrentSubscriptionID
		clone.CurrentSubscriptionID = &id
	}
	return &clone
}

func (s *InMemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	return s.InMemoryStore.Create(ctx, c.ID, copyClient(c))
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyClient(c), nil
}

func (s *InMemoryClientStore) Update(ctx context.Context, c *client.Client) error {
	return s.InMemoryStore.Update(ctx, c.ID, copyClient(c))
}

func (s *InMemoryClientStore) List(ctx context.Context) ([]*client.Client, error) {
	sortFn := func(i, j *client.Client) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	}
	items, err := s.InMemoryStore.List(ctx, nil, nil, sortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(c *client.Client, _ int) *client.Client {
		return copyClient(c)
	}), nil
}
