package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	stripesub "github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeConfig holds the Stripe credentials.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider on top of the official Stripe SDK.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider configures the global Stripe client and returns the
// provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("stripe API key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	stripe.Key = cfg.APIKey
	return &StripeProvider{webhookSecret: cfg.WebhookSecret}, nil
}

// VerifyWebhook authenticates the delivery with the endpoint secret before
// any parsing, then decodes the payload into the event union.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	event := &Event{
		ID:   stripeEvent.ID,
		Type: EventType(stripeEvent.Type),
	}

	switch event.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decoding checkout session: %w", err)
		}
		payload := &CheckoutPayload{
			SessionID:    sess.ID,
			UserID:       sess.Metadata["userId"],
			PlanID:       sess.Metadata["planId"],
			BillingCycle: BillingCycle(sess.Metadata["billingCycle"]),
		}
		if sess.Customer != nil {
			payload.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			payload.SubscriptionID = sess.Subscription.ID
		}
		event.Checkout = payload

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decoding subscription: %w", err)
		}
		payload := &SubscriptionPayload{
			SubscriptionID:     sub.ID,
			Status:             SubscriptionStatus(sub.Status),
			CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
			CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		}
		if sub.Customer != nil {
			payload.CustomerID = sub.Customer.ID
		}
		if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			payload.PriceID = sub.Items.Data[0].Price.ID
		}
		event.Subscription = payload

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decoding invoice: %w", err)
		}
		payload := &InvoicePayload{}
		if inv.Subscription != nil {
			payload.SubscriptionID = inv.Subscription.ID
		}
		event.Invoice = payload
	}

	return event, nil
}

func (p *StripeProvider) FetchSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	sub, err := stripesub.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching stripe subscription %s: %w", subscriptionID, err)
	}
	return fromStripeSubscription(sub), nil
}

func (p *StripeProvider) LatestSubscription(ctx context.Context, customerID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var latest *stripe.Subscription
	iter := stripesub.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		if latest == nil || sub.Created > latest.Created {
			latest = sub
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing stripe subscriptions: %w", err)
	}
	if latest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return fromStripeSubscription(latest), nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Metadata: map[string]string{
			"userId": userID,
		},
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("creating stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"userId":       req.UserID,
			"planId":       req.PlanID,
			"billingCycle": string(req.Cycle),
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) PortalLink(ctx context.Context, customerID, returnURL string) (string, error) {
	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("creating stripe portal session: %w", err)
	}
	return sess.URL, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func fromStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	p := &ProviderSubscription{
		ID:                 sub.ID,
		Status:             SubscriptionStatus(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		p.CustomerID = sub.Customer.ID
	}
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		p.PriceID = sub.Items.Data[0].Price.ID
	}
	return p
}
