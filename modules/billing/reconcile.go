package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/speaklab/backend/pkg/logger"
)

// ReconcileResult reports the outcome of a manual read-repair.
type ReconcileResult struct {
	Status    SubscriptionStatus `json:"status"`
	Corrected bool               `json:"corrected"`
}

// ReconcileSubscriptionStatus re-reads the live provider state for the user
// and repairs the local mirror when the two disagree. This is the one code
// path allowed to call the provider synchronously from a user-facing read;
// it exists for the window between a completed checkout and the arrival of
// its webhook.
func (s *Service) ReconcileSubscriptionStatus(ctx context.Context, userID string) (ReconcileResult, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return ReconcileResult{}, err
	}

	// Users who never started billing have nothing to reconcile.
	if user.StripeCustomerID == "" {
		return ReconcileResult{Status: "none"}, nil
	}

	live, err := s.provider.LatestSubscription(ctx, user.StripeCustomerID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return ReconcileResult{Status: "none"}, nil
	}
	if err != nil {
		return ReconcileResult{}, errors.Join(ErrUpstreamBilling, err)
	}

	local, err := s.store.GetSubscriptionByStripeID(ctx, live.ID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		// The checkout webhook never landed; materialize the mirror now.
		sub, err := s.mirrorFromProvider(ctx, userID, live)
		if err != nil {
			return ReconcileResult{}, err
		}
		s.log.InfoContext(ctx, "reconciliation created missing subscription",
			logger.UserID(userID), logger.SubscriptionID(sub.ID))
		return ReconcileResult{Status: sub.Status, Corrected: true}, nil
	}
	if err != nil {
		return ReconcileResult{}, err
	}

	liveEnd := time.Unix(live.CurrentPeriodEnd, 0).UTC()
	summaryStale := user.Subscription == nil ||
		user.Subscription.Status != live.Status ||
		!user.Subscription.CurrentPeriodEnd.Equal(liveEnd)
	if local.Status == live.Status && local.CancelAtPeriodEnd == live.CancelAtPeriodEnd &&
		local.CurrentPeriodEnd.Equal(liveEnd) && !summaryStale {
		return ReconcileResult{Status: local.Status}, nil
	}

	if err := s.applyProviderState(ctx, local, live); err != nil {
		return ReconcileResult{}, err
	}

	s.log.InfoContext(ctx, "reconciliation corrected subscription state",
		logger.UserID(userID), logger.SubscriptionID(local.ID))

	return ReconcileResult{Status: live.Status, Corrected: true}, nil
}

// applyProviderState overwrites the mirror and the user summary with the
// provider's view of the subscription.
func (s *Service) applyProviderState(ctx context.Context, local *Subscription, live *ProviderSubscription) error {
	status := live.Status
	start := time.Unix(live.CurrentPeriodStart, 0).UTC()
	end := time.Unix(live.CurrentPeriodEnd, 0).UTC()
	cancel := live.CancelAtPeriodEnd
	if err := s.store.PatchSubscription(ctx, local.ID, SubscriptionPatch{
		Status:             &status,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  &cancel,
		UpdatedAt:          s.now(),
	}); err != nil {
		return err
	}

	local.Status = status
	local.CurrentPeriodEnd = end
	return s.propagateSummary(ctx, local)
}

// mirrorFromProvider builds and stores a new local mirror from live provider
// state, used when reconciliation finds a subscription the webhook flow never
// recorded.
func (s *Service) mirrorFromProvider(ctx context.Context, userID string, live *ProviderSubscription) (*Subscription, error) {
	planID := live.PriceID
	cycle := CycleMonthly
	if plan, c, ok := s.plans.ByPriceID(live.PriceID); ok {
		planID = plan.ID
		cycle = c
	}

	now := s.now()
	sub := &Subscription{
		ID:                   uuid.NewString(),
		UserID:               userID,
		PlanID:               planID,
		BillingCycle:         cycle,
		Status:               live.Status,
		CurrentPeriodStart:   time.Unix(live.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(live.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:    live.CancelAtPeriodEnd,
		StripeCustomerID:     live.CustomerID,
		StripeSubscriptionID: live.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.propagateSummary(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
