package billing

import (
	"context"
	"time"
)

// TrialGrant is the set of fields written when a trial is granted.
type TrialGrant struct {
	StartedAt time.Time
	EndsAt    time.Time
	Plan      TrialPlan
}

// SubscriptionPatch is a partial update applied to a Subscription mirror.
// Nil fields are left untouched so concurrent writers never clobber fields
// they do not own.
type SubscriptionPatch struct {
	Status             *SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	UpdatedAt          time.Time
}

// Store persists users and subscription mirrors. All user-document writes are
// field-level merges; the User document is shared between the webhook
// synchronizer, the reconciler and the entitlement engine's lazy trial
// correction, and a whole-document overwrite would race them against each
// other.
type Store interface {
	// GetUser returns the user document or ErrUserNotFound.
	GetUser(ctx context.Context, userID string) (*User, error)

	// SetTrialState updates only the trialActive/trialUsed flags. Safe to
	// apply concurrently: duplicate lazy corrections converge to the same
	// target values.
	SetTrialState(ctx context.Context, userID string, active, used bool) error

	// GrantTrial writes the trial fields in a single conditional update that
	// only matches a user who has never been granted a trial. Returns false
	// when the precondition no longer holds, which is how a concurrent
	// double-submission loses the race.
	GrantTrial(ctx context.Context, userID string, grant TrialGrant) (bool, error)

	// SetStripeCustomerID records the lazily created provider customer.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error

	// SetSubscriptionSummary replaces the denormalized summary on the user
	// document. A nil summary clears it.
	SetSubscriptionSummary(ctx context.Context, userID string, sum *SubscriptionSummary) error

	// CreateSubscription inserts a new subscription mirror.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscriptionByStripeID locates the mirror by the provider's
	// subscription id, the join key used by webhook processing.
	// Returns ErrSubscriptionNotFound if this system does not track it.
	GetSubscriptionByStripeID(ctx context.Context, stripeSubID string) (*Subscription, error)

	// FindCurrentSubscription returns the most recently updated subscription
	// for the user whose status is active or trialing, or
	// ErrSubscriptionNotFound.
	FindCurrentSubscription(ctx context.Context, userID string) (*Subscription, error)

	// PatchSubscription applies a partial update to a mirror by local id.
	PatchSubscription(ctx context.Context, id string, patch SubscriptionPatch) error
}
