package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/relaycrm/internal/domain/subscription"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
	"github.com/relaycrm/relaycrm/internal/types"
)

type subscriptionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, client_id, plan_id, subscription_status, billing_cycle,
			anchor_day, start_date, current_period_start, current_period_end,
			next_billing_date, grace_days, amount, currency, cancelled_at,
			created_at, updated_at
		) VALUES (
			:id, :client_id, :plan_id, :subscription_status, :billing_cycle,
			:anchor_day, :start_date, :current_period_start, :current_period_end,
			:next_billing_date, :grace_days, :amount, :currency, :cancelled_at,
			:created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT * FROM subscriptions WHERE id = $1`

	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	sub.Touch()
	query := `
		UPDATE subscriptions SET
			subscription_status = :subscription_status,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			next_billing_date = :next_billing_date,
			grace_days = :grace_days,
			amount = :amount,
			cancelled_at = :cancelled_at,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription %s does not exist", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) GetActiveByClient(ctx context.Context, clientID string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `
		SELECT * FROM subscriptions
		WHERE client_id = $1 AND subscription_status != $2
		ORDER BY created_at DESC
		LIMIT 1`

	err := sqlx.GetContext(ctx, r.db.Querier(ctx), &sub, query, clientID, types.SubscriptionStatusCancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("no active subscription").
				WithHintf("Client %s has no active subscription", clientID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListDueForRenewal(ctx context.Context, from, to time.Time, statuses []types.SubscriptionStatus) ([]*subscription.Subscription, error) {
	subs := make([]*subscription.Subscription, 0)
	query, args, err := sqlx.In(`
		SELECT * FROM subscriptions
		WHERE subscription_status IN (?)
		AND next_billing_date >= ? AND next_billing_date < ?
		ORDER BY next_billing_date ASC`,
		statuses, from, to)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build renewal query").
			Mark(ierr.ErrDatabase)
	}

	q := r.db.Querier(ctx)
	if err := sqlx.SelectContext(ctx, q, &subs, q.Rebind(query), args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions due for renewal").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}
