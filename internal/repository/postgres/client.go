package postgres

import (
	"context"
	"database/sql"

	"github.com/relaycrm/relaycrm/internal/domain/client"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"

	"github.com/jmoiron/sqlx"
)

type clientRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewClientRepository(db postgres.IClient, logger *logger.Logger) client.Repository {
	return &clientRepository{db: db, logger: logger}
}

func (r *clientRepository) Create(ctx context.Context, c *client.Client) error {
	query := `
		INSERT INTO clients (
			id, name, email, client_status, plan_id,
			current_subscription_id, created_at, updated_at
		) VALUES (
			:id, :name, :email, :client_status, :plan_id,
			:current_subscription_id, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, c); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create client").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	var c client.Client
	query := `SELECT * FROM clients WHERE id = $1`

	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("client not found").
				WithHintf("Client %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get client").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *clientRepository) Update(ctx context.Context, c *client.Client) error {
	c.Touch()
	query := `
		UPDATE clients SET
			name = :name,
			email = :email,
			client_status = :client_status,
			plan_id = :plan_id,
			current_subscription_id = :current_subscription_id,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, c)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client").
			Mark(ierr.ErrDatabase)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ierr.NewError("client not found").
			WithHintf("Client %s does not exist", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *clientRepository) List(ctx context.Context) ([]*client.Client, error) {
	clients := make([]*client.Client, 0)
	query := `SELECT * FROM clients ORDER BY created_at DESC`

	if err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &clients, query); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list clients").
			Mark(ierr.ErrDatabase)
	}
	return clients, nil
}
