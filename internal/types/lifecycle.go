package types

import (
	ierr "github.com/relaycrm/relaycrm/internal/errors"
)

// LifecycleEvent is a domain event that drives subscription and client state
// transitions. The tables below are the single source of truth: the
// scheduler jobs and the webhook reconciler only ever apply table entries,
// never ad hoc status writes.
type LifecycleEvent string

const (
	// LifecycleEventPaymentConfirmed fires when a gateway confirms payment
	LifecycleEventPaymentConfirmed LifecycleEvent = "payment_confirmed"
	// LifecycleEventPaymentOverdue fires when an invoice passes its due date
	// within the grace window
	LifecycleEventPaymentOverdue LifecycleEvent = "payment_overdue"
	// LifecycleEventGraceExpired fires when days overdue exceed the grace
	// period
	LifecycleEventGraceExpired LifecycleEvent = "grace_expired"
	// LifecycleEventCancelRequested fires on explicit cancellation or when a
	// plan change supersedes the subscription
	LifecycleEventCancelRequested LifecycleEvent = "cancel_requested"
)

// subscriptionTransitions is the state machine for subscriptions:
// active -> past_due -> cancelled, cancelled terminal. A confirmed payment
// returns a past_due subscription to active; nothing leaves cancelled.
var subscriptionTransitions = map[SubscriptionStatus]map[LifecycleEvent]SubscriptionStatus{
	SubscriptionStatusActive: {
		LifecycleEventPaymentConfirmed: SubscriptionStatusActive,
		LifecycleEventPaymentOverdue:   SubscriptionStatusPastDue,
		LifecycleEventGraceExpired:     SubscriptionStatusCancelled,
		LifecycleEventCancelRequested:  SubscriptionStatusCancelled,
	},
	SubscriptionStatusPastDue: {
		LifecycleEventPaymentConfirmed: SubscriptionStatusActive,
		LifecycleEventPaymentOverdue:   SubscriptionStatusPastDue,
		LifecycleEventGraceExpired:     SubscriptionStatusCancelled,
		LifecycleEventCancelRequested:  SubscriptionStatusCancelled,
	},
	SubscriptionStatusCancelled: {},
}

// clientTransitions mirrors the subscription machine on the client account.
// A confirmed payment moves any non-cancelled client straight to active,
// bypassing intermediate states. Restricted is entered administratively, not
// by this engine, but the engine must be able to leave it.
var clientTransitions = map[ClientStatus]map[LifecycleEvent]ClientStatus{
	ClientStatusTrialing: {
		LifecycleEventPaymentConfirmed: ClientStatusActive,
		LifecycleEventPaymentOverdue:   ClientStatusPastDue,
		LifecycleEventGraceExpired:     ClientStatusCancelled,
		LifecycleEventCancelRequested:  ClientStatusCancelled,
	},
	ClientStatusActive: {
		LifecycleEventPaymentConfirmed: ClientStatusActive,
		LifecycleEventPaymentOverdue:   ClientStatusPastDue,
		LifecycleEventGraceExpired:     ClientStatusCancelled,
		LifecycleEventCancelRequested:  ClientStatusCancelled,
	},
	ClientStatusPastDue: {
		LifecycleEventPaymentConfirmed: ClientStatusActive,
		LifecycleEventPaymentOverdue:   ClientStatusPastDue,
		LifecycleEventGraceExpired:     ClientStatusCancelled,
		LifecycleEventCancelRequested:  ClientStatusCancelled,
	},
	ClientStatusRestricted: {
		LifecycleEventPaymentConfirmed: ClientStatusActive,
		LifecycleEventGraceExpired:     ClientStatusCancelled,
		LifecycleEventCancelRequested:  ClientStatusCancelled,
	},
	ClientStatusCancelled: {},
}

// invoiceTransitions maps canonical payment outcomes onto invoice statuses.
// Paid invoices only ever move to refunded; the paid history is append-only.
var invoiceTransitions = map[InvoiceStatus]map[PaymentEventType]InvoiceStatus{
	InvoiceStatusPending: {
		PaymentEventConfirmed: InvoiceStatusPaid,
		PaymentEventOverdue:   InvoiceStatusOverdue,
		PaymentEventCanceled:  InvoiceStatusCancelled,
	},
	InvoiceStatusOverdue: {
		PaymentEventConfirmed: InvoiceStatusPaid,
		PaymentEventCanceled:  InvoiceStatusCancelled,
	},
	InvoiceStatusPaid: {
		PaymentEventRefunded: InvoiceStatusRefunded,
	},
	InvoiceStatusCancelled: {},
	InvoiceStatusRefunded:  {},
}

// Transition returns the next subscription status for the given event.
func (s SubscriptionStatus) Transition(event LifecycleEvent) (SubscriptionStatus, error) {
	next, ok := subscriptionTransitions[s][event]
	if !ok {
		return s, ierr.NewError("subscription transition not allowed").
			WithHintf("Cannot apply %s to a %s subscription", event, s).
			WithReportableDetails(map[string]any{
				"status": s,
				"event":  event,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return next, nil
}

// CanTransition reports whether the event is applicable in the current state.
func (s SubscriptionStatus) CanTransition(event LifecycleEvent) bool {
	_, ok := subscriptionTransitions[s][event]
	return ok
}

// Transition returns the next client status for the given event.
func (s ClientStatus) Transition(event LifecycleEvent) (ClientStatus, error) {
	next, ok := clientTransitions[s][event]
	if !ok {
		return s, ierr.NewError("client transition not allowed").
			WithHintf("Cannot apply %s to a %s client", event, s).
			WithReportableDetails(map[string]any{
				"status": s,
				"event":  event,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return next, nil
}

// CanTransition reports whether the event is applicable in the current state.
func (s ClientStatus) CanTransition(event LifecycleEvent) bool {
	_, ok := clientTransitions[s][event]
	return ok
}

// Transition returns the next invoice status for the given canonical payment
// outcome.
func (s InvoiceStatus) Transition(event PaymentEventType) (InvoiceStatus, error) {
	next, ok := invoiceTransitions[s][event]
	if !ok {
		return s, ierr.NewError("invoice transition not allowed").
			WithHintf("Cannot apply %s to a %s invoice", event, s).
			WithReportableDetails(map[string]any{
				"status": s,
				"event":  event,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return next, nil
}

// CanTransition reports whether the outcome is applicable in the current
// state.
func (s InvoiceStatus) CanTransition(event PaymentEventType) bool {
	_, ok := invoiceTransitions[s][event]
	return ok
}
