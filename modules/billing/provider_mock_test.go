package billing_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/speaklab/backend/modules/billing"
)

// fakeProvider implements billing.Provider with overridable function fields.
// Unset fields fail the test when called, so each test declares exactly the
// provider surface it expects to be touched.
type fakeProvider struct {
	t *testing.T

	verifyWebhook         func(payload []byte, signature string) (*billing.Event, error)
	fetchSubscription     func(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error)
	latestSubscription    func(ctx context.Context, customerID string) (*billing.ProviderSubscription, error)
	createCustomer        func(ctx context.Context, userID, email, name string) (string, error)
	createCheckoutSession func(ctx context.Context, req billing.CheckoutSessionRequest) (*billing.CheckoutSession, error)
	portalLink            func(ctx context.Context, customerID, returnURL string) (string, error)
}

func (p *fakeProvider) VerifyWebhook(payload []byte, signature string) (*billing.Event, error) {
	if p.verifyWebhook == nil {
		p.t.Fatal("unexpected VerifyWebhook call")
	}
	return p.verifyWebhook(payload, signature)
}

func (p *fakeProvider) FetchSubscription(ctx context.Context, subscriptionID string) (*billing.ProviderSubscription, error) {
	if p.fetchSubscription == nil {
		p.t.Fatal("unexpected FetchSubscription call")
	}
	return p.fetchSubscription(ctx, subscriptionID)
}

func (p *fakeProvider) LatestSubscription(ctx context.Context, customerID string) (*billing.ProviderSubscription, error) {
	if p.latestSubscription == nil {
		p.t.Fatal("unexpected LatestSubscription call")
	}
	return p.latestSubscription(ctx, customerID)
}

func (p *fakeProvider) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	if p.createCustomer == nil {
		p.t.Fatal("unexpected CreateCustomer call")
	}
	return p.createCustomer(ctx, userID, email, name)
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	if p.createCheckoutSession == nil {
		p.t.Fatal("unexpected CreateCheckoutSession call")
	}
	return p.createCheckoutSession(ctx, req)
}

func (p *fakeProvider) PortalLink(ctx context.Context, customerID, returnURL string) (string, error) {
	if p.portalLink == nil {
		p.t.Fatal("unexpected PortalLink call")
	}
	return p.portalLink(ctx, customerID, returnURL)
}

// testTime is a fixed reference instant all billing tests derive from.
var testTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService builds a Service on a memory store with a frozen clock.
// The returned clock pointer can be advanced between calls.
func newTestService(t *testing.T, store *billing.MemoryStore, provider *fakeProvider) (*billing.Service, *time.Time) {
	t.Helper()
	if provider == nil {
		provider = &fakeProvider{t: t}
	}
	provider.t = t

	clock := testTime
	svc := billing.NewService(
		store,
		provider,
		billing.DefaultCatalog(),
		discardLogger(),
		billing.WithNow(func() time.Time { return clock }),
	)
	return svc, &clock
}
