package types

import (
	"github.com/samber/lo"

	ierr "github.com/relaycrm/relaycrm/internal/errors"
)

// ClientStatus is the commercial status of a client account. It mirrors the
// active subscription's status but is not identical to it: a client can be
// restricted (blocked) by an administrative action while the subscription is
// still past_due, and a confirmed payment always moves the client back to
// active without passing through intermediate states.
type ClientStatus string

const (
	ClientStatusTrialing   ClientStatus = "trialing"
	ClientStatusActive     ClientStatus = "active"
	ClientStatusPastDue    ClientStatus = "past_due"
	ClientStatusRestricted ClientStatus = "restricted"
	ClientStatusCancelled  ClientStatus = "cancelled"
)

func (s ClientStatus) String() string {
	return string(s)
}

func (s ClientStatus) Validate() error {
	allowed := []ClientStatus{
		ClientStatusTrialing,
		ClientStatusActive,
		ClientStatusPastDue,
		ClientStatusRestricted,
		ClientStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid client status").
			WithHint("Invalid client status").
			WithReportableDetails(map[string]any{
				"allowed_values": allowed,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
