package billing

import (
	"log/slog"
	"time"
)

// TrialDuration is the length of the single free trial every user may claim.
const TrialDuration = 7 * 24 * time.Hour

// CheckoutConfig carries the redirect URLs handed to the billing provider.
type CheckoutConfig struct {
	SuccessURL string `env:"BILLING_CHECKOUT_SUCCESS_URL,required"`
	CancelURL  string `env:"BILLING_CHECKOUT_CANCEL_URL,required"`
	ReturnURL  string `env:"BILLING_PORTAL_RETURN_URL,required"`
}

// Service implements the entitlement engine, the trial activation service,
// the webhook synchronizer and manual reconciliation on top of a Store and a
// billing Provider. Methods are grouped by concern across the files of this
// package.
type Service struct {
	store    Store
	provider Provider
	plans    Catalog
	cache    SnapshotCache
	log      *slog.Logger
	checkout CheckoutConfig
	now      func() time.Time
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithNow overrides the clock, used by tests that need deterministic time.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSnapshotCache sets the cache serving the read-optimized status endpoint.
func WithSnapshotCache(c SnapshotCache) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCheckoutConfig sets the provider redirect URLs.
func WithCheckoutConfig(cfg CheckoutConfig) ServiceOption {
	return func(s *Service) { s.checkout = cfg }
}

// NewService creates the billing service. Panics on nil required dependencies
// to fail fast during initialization.
func NewService(store Store, provider Provider, plans Catalog, log *slog.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("billing: Store is required")
	}
	if provider == nil {
		panic("billing: Provider is required")
	}
	if len(plans) == 0 {
		panic("billing: at least one plan is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		store:    store,
		provider: provider,
		plans:    plans,
		cache:    NoopSnapshotCache{},
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
