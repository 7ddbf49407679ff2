package client

import (
	ierr "github.com/relaycrm/relaycrm/internal/errors"
	"github.com/relaycrm/relaycrm/internal/types"
)

// Client is a paying account. Its commercial status is derived from, and
// kept consistent with, the active subscription's status and the newest
// invoice's status; only the lifecycle jobs and the webhook reconciler
// mutate it. Clients are never deleted by this engine.
type Client struct {
	// ID is the unique identifier for the client
	ID string `db:"id" json:"id"`

	// Name is the display name of the account
	Name string `db:"name" json:"name"`

	// Email is the billing contact address
	Email string `db:"email" json:"email"`

	// ClientStatus is the commercial status of the account
	ClientStatus types.ClientStatus `db:"client_status" json:"client_status"`

	// PlanID references the current plan
	PlanID string `db:"plan_id" json:"plan_id"`

	// CurrentSubscriptionID references the at most one active subscription
	CurrentSubscriptionID *string `db:"current_subscription_id" json:"current_subscription_id,omitempty"`

	types.BaseModel
}

func (c *Client) Validate() error {
	if c.ID == "" {
		return ierr.NewError("client id is required").
			WithHint("Client id is required").
			Mark(ierr.ErrValidation)
	}
	if err := c.ClientStatus.Validate(); err != nil {
		return err
	}
	return nil
}
