package billing

import "context"

// ProviderSubscription is the provider's authoritative view of one
// subscription, normalized into local vocabulary.
type ProviderSubscription struct {
	ID                 string // provider's subscription id
	CustomerID         string
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart int64 // unix seconds, as delivered by the provider
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
}

// CheckoutSessionRequest contains everything needed to open a hosted checkout.
type CheckoutSessionRequest struct {
	CustomerID string
	UserID     string
	PlanID     string
	Cycle      BillingCycle
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a hosted checkout created at the provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// Provider abstracts the external billing provider. The webhook synchronizer
// and manual reconciliation are the only callers that reach the provider; the
// entitlement read path never does.
type Provider interface {
	// VerifyWebhook authenticates a raw webhook delivery against the shared
	// secret and decodes it into an Event. Returns ErrInvalidSignature on
	// tampered or unsigned payloads; that failure is fatal, never retried.
	VerifyWebhook(payload []byte, signature string) (*Event, error)

	// FetchSubscription returns the full subscription detail by provider id.
	FetchSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	// LatestSubscription returns the most recently created subscription for
	// the customer, or ErrSubscriptionNotFound when the customer has none.
	LatestSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error)

	// CreateCustomer lazily creates the provider-side customer record.
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)

	// CreateCheckoutSession opens a hosted checkout carrying the user and
	// plan identifiers in session metadata for the completion webhook.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// PortalLink returns a pre-authenticated customer portal URL.
	PortalLink(ctx context.Context, customerID, returnURL string) (string, error)
}
