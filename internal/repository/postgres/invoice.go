package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/logger"
	"github.com/relaycrm/relaycrm/internal/postgres"
	"github.com/relaycrm/relaycrm/internal/types"
)

type invoiceRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, subscription_id, client_id, amount, currency, due_date,
			invoice_status, paid_at, gateway, gateway_payment_id,
			raw_gateway_payload, created_at, updated_at
		) VALUES (
			:id, :subscription_id, :client_id, :amount, :currency, :due_date,
			:invoice_status, :paid_at, :gateway, :gateway_payment_id,
			:raw_gateway_payload, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	query := `SELECT * FROM invoices WHERE id = $1`

	if err := sqlx.GetContext(ctx, r.db.Querier(ctx), &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHintf("Invoice %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	inv.Touch()
	query := `
		UPDATE invoices SET
			invoice_status = :invoice_status,
			paid_at = :paid_at,
			gateway = :gateway,
			gateway_payment_id = :gateway_payment_id,
			raw_gateway_payload = :raw_gateway_payload,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := sqlx.NamedExecContext(ctx, r.db.Querier(ctx), query, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ierr.NewError("invoice not found").
			WithHintf("Invoice %s does not exist", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) GetByGatewayPaymentID(ctx context.Context, gw types.PaymentGateway, gatewayPaymentID string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	query := `SELECT * FROM invoices WHERE gateway = $1 AND gateway_payment_id = $2`

	err := sqlx.GetContext(ctx, r.db.Querier(ctx), &inv, query, gw, gatewayPaymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found for gateway payment").
				WithHintf("No invoice references %s payment %s", gw, gatewayPaymentID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice by gateway payment id").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) ListOutstandingBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	invoices := make([]*invoice.Invoice, 0)
	query := `
		SELECT * FROM invoices
		WHERE subscription_id = $1 AND invoice_status IN ($2, $3)
		ORDER BY due_date ASC`

	err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &invoices, query,
		subscriptionID, types.InvoiceStatusPending, types.InvoiceStatusOverdue)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list outstanding invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) ListOutstandingDueBefore(ctx context.Context, before time.Time) ([]*invoice.Invoice, error) {
	invoices := make([]*invoice.Invoice, 0)
	query := `
		SELECT * FROM invoices
		WHERE invoice_status IN ($1, $2) AND due_date < $3
		ORDER BY due_date ASC`

	err := sqlx.SelectContext(ctx, r.db.Querier(ctx), &invoices, query,
		types.InvoiceStatusPending, types.InvoiceStatusOverdue, before)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list overdue invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}
