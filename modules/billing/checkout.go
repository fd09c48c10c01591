package billing

import (
	"context"
	"errors"

	"github.com/speaklab/backend/pkg/logger"
)

// CreateCheckout opens a hosted checkout session for the given plan and
// cycle. The provider customer is created lazily on first checkout and the
// session metadata carries the user and plan ids the completion webhook
// depends on.
func (s *Service) CreateCheckout(ctx context.Context, userID, planID string, cycle BillingCycle) (*CheckoutSession, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, ok := s.plans.Get(planID)
	if !ok {
		return nil, ErrPlanNotFound
	}
	priceID, ok := plan.PriceID(cycle)
	if !ok {
		return nil, ErrPlanNotFound
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, userID, user.Email, user.Name)
		if err != nil {
			return nil, errors.Join(ErrUpstreamBilling, err)
		}
		if err := s.store.SetStripeCustomerID(ctx, userID, customerID); err != nil {
			return nil, err
		}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		UserID:     userID,
		PlanID:     planID,
		Cycle:      cycle,
		PriceID:    priceID,
		SuccessURL: s.checkout.SuccessURL,
		CancelURL:  s.checkout.CancelURL,
	})
	if err != nil {
		return nil, errors.Join(ErrUpstreamBilling, err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.UserID(userID), logger.PlanID(planID))

	return sess, nil
}

// CustomerPortalLink returns a pre-authenticated billing portal URL where the
// user manages payment methods and cancellation.
func (s *Service) CustomerPortalLink(ctx context.Context, userID string) (string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == "" {
		return "", ErrSubscriptionNotFound
	}

	url, err := s.provider.PortalLink(ctx, user.StripeCustomerID, s.checkout.ReturnURL)
	if err != nil {
		return "", errors.Join(ErrUpstreamBilling, err)
	}
	return url, nil
}
