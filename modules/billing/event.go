package billing

import "time"

// EventType is the billing provider's event vocabulary. Only the types below
// are processed; anything else is acknowledged and ignored.
type EventType string

const (
	EventCheckoutCompleted       EventType = "checkout.session.completed"
	EventSubscriptionCreated     EventType = "customer.subscription.created"
	EventSubscriptionUpdated     EventType = "customer.subscription.updated"
	EventSubscriptionDeleted     EventType = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
)

// Event is a verified billing event. Exactly one of the payload fields is set
// for the event types above; all are nil for unhandled types. Modeling the
// payload as a tagged union keeps the dispatcher exhaustive instead of
// pattern matching on an untyped blob.
type Event struct {
	ID           string
	Type         EventType
	Checkout     *CheckoutPayload
	Subscription *SubscriptionPayload
	Invoice      *InvoicePayload
}

// CheckoutPayload carries the fields of a completed checkout session.
// UserID and PlanID come from the session metadata planted at checkout
// creation time; SubscriptionID is empty for one-off payment sessions.
type CheckoutPayload struct {
	SessionID      string
	UserID         string
	PlanID         string
	BillingCycle   BillingCycle
	CustomerID     string
	SubscriptionID string
}

// SubscriptionPayload carries the provider's view of a subscription object.
type SubscriptionPayload struct {
	SubscriptionID     string
	CustomerID         string
	Status             SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// InvoicePayload carries the subscription reference of an invoice event.
// SubscriptionID is empty for invoices not tied to a subscription.
type InvoicePayload struct {
	SubscriptionID string
}
