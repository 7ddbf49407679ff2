package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}

	clone := *inv
	if inv.PaidAt != nil {
		at := *inv.PaidAt
		clone.PaidAt = &at
	}
	if inv.Gateway != nil {
		gw := *inv.Gateway
		clone.Gateway = &gw
	}
	if inv.GatewayPaymentID != nil {
		id := *inv.GatewayPaymentID
		clone.GatewayPaymentID = &id
	}
	if inv.RawGatewayPayload != nil {
		clone.RawGatewayPayload = append([]byte(nil), inv.RawGatewayPayload...)
	}
	return &clone
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) GetByGatewayPaymentID(ctx context.Context, gw types.PaymentGateway, gatewayPaymentID string) (*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.Gateway != nil && *inv.Gateway == gw &&
			inv.GatewayPaymentID != nil && *inv.GatewayPaymentID == gatewayPaymentID
	}

	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ierr.NewError("invoice not found for gateway payment").
			WithHintf("No invoice references %s payment %s", gw, gatewayPaymentID).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(invoices[0]), nil
}

func (s *InMemoryInvoiceStore) ListOutstandingBySubscription(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.SubscriptionID == subscriptionID && inv.IsOutstanding()
	}
	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, invoiceDueDateSort)
	if err != nil {
		return nil, err
	}
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) ListOutstandingDueBefore(ctx context.Context, before time.Time) ([]*invoice.Invoice, error) {
	filterFn := func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return inv.IsOutstanding() && inv.DueDate.Before(before)
	}
	invoices, err := s.InMemoryStore.List(ctx, nil, filterFn, invoiceDueDateSort)
	if err != nil {
		return nil, err
	}
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func invoiceDueDateSort(i, j *invoice.Invoice) bool {
	return i.DueDate.Before(j.DueDate)
}
