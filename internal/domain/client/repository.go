package client

import "context"

type Repository interface {
	Create(ctx context.Context, client *Client) error
	Get(ctx context.Context, id string) (*Client, error)
	Update(ctx context.Context, client *Client) error
	List(ctx context.Context) ([]*Client, error)
}
