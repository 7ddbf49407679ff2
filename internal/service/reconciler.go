package service

import (
	"context"

	"github.com/relaycrm/relaycrm/internal/domain/invoice"
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/gateway"
	"github.com/relaycrm/relaycrm/internal/types"
)

// PaymentReconciler applies canonical gateway events to invoices, clients
// and subscriptions. Processing is idempotent: a duplicate event id from
// the same gateway is acknowledged and dropped before any domain write.
type PaymentReconciler interface {
	ProcessEvent(ctx context.Context, event *gateway.PaymentEvent) error
}

type paymentReconciler struct {
	ServiceParams
}

func NewPaymentReconciler(params ServiceParams) PaymentReconciler {
	return &paymentReconciler{ServiceParams: params}
}

func (r *paymentReconciler) ProcessEvent(ctx context.Context, event *gateway.PaymentEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	seen, err := r.Ledger.Seen(ctx, event.Key())
	if err != nil {
		return err
	}
	if seen {
		r.Logger.Infow("skipping duplicate gateway event",
			"source", event.Source,
			"event_id", event.EventID,
			"type", event.Type)
		return nil
	}

	inv, err := r.locateInvoice(ctx, event)
	if err != nil {
		if ierr.IsNotFound(err) {
			// the gateway may notify about charges created outside this
			// system; acknowledge so it stops redelivering
			r.Logger.Warnw("no invoice matches gateway event",
				"source", event.Source,
				"event_id", event.EventID,
				"gateway_payment_id", event.GatewayPaymentID,
				"invoice_ref", event.InvoiceRef)
			return r.Ledger.Record(ctx, event.Key())
		}
		return err
	}

	err = r.DB.WithTx(ctx, func(ctx context.Context) error {
		return r.applyEvent(ctx, event, inv)
	})
	if err != nil {
		return err
	}

	// the ledger entry is written only after the domain write commits, so
	// a crash in between leads to a redelivery, never a lost event
	return r.Ledger.Record(ctx, event.Key())
}

// locateInvoice resolves the event to an invoice: first by the gateway's
// native payment id, then by the invoice reference we passed through the
// gateway at charge-creation time.
func (r *paymentReconciler) locateInvoice(ctx context.Context, event *gateway.PaymentEvent) (*invoice.Invoice, error) {
	if event.GatewayPaymentID != "" {
		inv, err := r.InvoiceRepo.GetByGatewayPaymentID(ctx, event.Source, event.GatewayPaymentID)
		if err == nil {
			return inv, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if event.InvoiceRef != "" {
		return r.InvoiceRepo.Get(ctx, event.InvoiceRef)
	}

	return nil, ierr.NewError("gateway event carries no usable invoice reference").
		WithHint("Event has neither a known gateway payment id nor an invoice reference").
		Mark(ierr.ErrNotFound)
}

func (r *paymentReconciler) applyEvent(ctx context.Context, event *gateway.PaymentEvent, inv *invoice.Invoice) error {
	if event.Type == types.PaymentEventInformational {
		// payload persisted only: informational events record the gateway
		// body against the invoice without moving any state
		if len(event.RawPayload) > 0 {
			inv.RawGatewayPayload = event.RawPayload
			if err := r.InvoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
		}
		r.Logger.Infow("recorded informational gateway event",
			"source", event.Source,
			"event_id", event.EventID,
			"invoice_id", inv.ID)
		return nil
	}

	if !inv.InvoiceStatus.CanTransition(event.Type) {
		// late or out-of-order delivery: an overdue notice after payment,
		// a confirmation for an already-paid invoice. Drop, don't fail,
		// or the gateway retries forever.
		r.Logger.Warnw("gateway event not applicable to invoice state",
			"source", event.Source,
			"event_id", event.EventID,
			"type", event.Type,
			"invoice_id", inv.ID,
			"invoice_status", inv.InvoiceStatus)
		return nil
	}

	next, err := inv.InvoiceStatus.Transition(event.Type)
	if err != nil {
		return err
	}
	inv.InvoiceStatus = next
	inv.Gateway = &event.Source
	if event.GatewayPaymentID != "" {
		inv.GatewayPaymentID = &event.GatewayPaymentID
	}
	if len(event.RawPayload) > 0 {
		inv.RawGatewayPayload = event.RawPayload
	}
	if event.Type == types.PaymentEventConfirmed {
		inv.PaidAt = event.PaidAt
	}
	if err := r.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	lifecycleEvent, ok := lifecycleEventFor(event.Type)
	if !ok {
		// refunds and cancellations settle the invoice without moving the
		// subscription; the overdue detector owns demotions
		r.Logger.Infow("applied gateway event to invoice",
			"invoice_id", inv.ID,
			"invoice_status", inv.InvoiceStatus,
			"type", event.Type)
		return nil
	}

	sub, err := r.SubRepo.Get(ctx, inv.SubscriptionID)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus.CanTransition(lifecycleEvent) {
		next, _ := sub.SubscriptionStatus.Transition(lifecycleEvent)
		if sub.SubscriptionStatus != next {
			sub.SubscriptionStatus = next
			if err := r.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
	}

	cl, err := r.ClientRepo.Get(ctx, inv.ClientID)
	if err != nil {
		return err
	}
	if cl.ClientStatus.CanTransition(lifecycleEvent) {
		next, _ := cl.ClientStatus.Transition(lifecycleEvent)
		if cl.ClientStatus != next {
			cl.ClientStatus = next
			if err := r.ClientRepo.Update(ctx, cl); err != nil {
				return err
			}
		}
	}

	r.Logger.Infow("reconciled gateway event",
		"source", event.Source,
		"event_id", event.EventID,
		"type", event.Type,
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
		"subscription_id", sub.ID,
		"subscription_status", sub.SubscriptionStatus,
		"client_status", cl.ClientStatus)
	return nil
}

// lifecycleEventFor maps a canonical payment outcome to the lifecycle event
// that moves subscription and client state. Outcomes without a mapping only
// touch the invoice.
func lifecycleEventFor(t types.PaymentEventType) (types.LifecycleEvent, bool) {
	switch t {
	case types.PaymentEventConfirmed:
		return types.LifecycleEventPaymentConfirmed, true
	case types.PaymentEventOverdue:
		return types.LifecycleEventPaymentOverdue, true
	default:
		return "", false
	}
}
