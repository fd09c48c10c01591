package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/speaklab/backend/pkg/logger"
)

// HandleBillingEvent applies one verified provider event to the local mirror.
// No delivery-order guarantee exists: every handler is idempotent under
// replay, and a stale event overwriting a newer status is an accepted
// transient bounded by the next event or a manual reconciliation.
//
// Errors returned from here must surface as non-2xx to the transport so the
// provider retries the delivery.
func (s *Service) HandleBillingEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event.Checkout)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event.Subscription)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event.Subscription)
	case EventInvoicePaymentSucceeded:
		return s.handleInvoicePayment(ctx, event.Invoice, StatusActive)
	case EventInvoicePaymentFailed:
		return s.handleInvoicePayment(ctx, event.Invoice, StatusPastDue)
	default:
		s.log.InfoContext(ctx, "ignoring unhandled billing event",
			logger.EventType(string(event.Type)))
		return nil
	}
}

// handleCheckoutCompleted creates the local subscription mirror for a
// completed checkout and seeds the user's denormalized summary. Replays are
// absorbed by the stripeSubscriptionId lookup: an already-mirrored
// subscription is treated as an update instead of a duplicate insert.
func (s *Service) handleCheckoutCompleted(ctx context.Context, payload *CheckoutPayload) error {
	if payload == nil || payload.UserID == "" || payload.PlanID == "" {
		return fmt.Errorf("%w: checkout session requires userId and planId metadata", ErrMissingMetadata)
	}

	// Payment-mode sessions create no subscription; nothing to mirror.
	if payload.SubscriptionID == "" {
		s.log.InfoContext(ctx, "checkout completed without subscription",
			logger.UserID(payload.UserID))
		return nil
	}

	detail, err := s.provider.FetchSubscription(ctx, payload.SubscriptionID)
	if err != nil {
		return errors.Join(ErrUpstreamBilling, err)
	}

	if existing, err := s.store.GetSubscriptionByStripeID(ctx, payload.SubscriptionID); err == nil {
		return s.applyProviderState(ctx, existing, detail)
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return err
	}

	now := s.now()
	sub := &Subscription{
		ID:                   uuid.NewString(),
		UserID:               payload.UserID,
		PlanID:               payload.PlanID,
		BillingCycle:         payload.BillingCycle,
		Status:               detail.Status,
		CurrentPeriodStart:   time.Unix(detail.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(detail.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:    detail.CancelAtPeriodEnd,
		StripeCustomerID:     detail.CustomerID,
		StripeSubscriptionID: detail.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return err
	}
	if sub.StripeCustomerID != "" {
		if err := s.store.SetStripeCustomerID(ctx, payload.UserID, sub.StripeCustomerID); err != nil {
			return err
		}
	}

	s.log.InfoContext(ctx, "subscription created from checkout",
		logger.UserID(payload.UserID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(payload.PlanID))

	return s.propagateSummary(ctx, sub)
}

// handleSubscriptionUpdated patches the mirror with the provider's current
// lifecycle state. Unknown subscriptions are logged and skipped: they may
// have been created through a path this system does not track, and failing
// here would only make the provider retry forever.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, payload *SubscriptionPayload) error {
	if payload == nil {
		return fmt.Errorf("%w: subscription event without payload", ErrMissingMetadata)
	}

	sub, err := s.store.GetSubscriptionByStripeID(ctx, payload.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		s.log.WarnContext(ctx, "subscription event for untracked subscription",
			logger.EventType("subscription_updated"),
			logger.StripeSubscriptionID(payload.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	status := payload.Status
	start := payload.CurrentPeriodStart
	end := payload.CurrentPeriodEnd
	cancel := payload.CancelAtPeriodEnd
	if err := s.store.PatchSubscription(ctx, sub.ID, SubscriptionPatch{
		Status:             &status,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CancelAtPeriodEnd:  &cancel,
		UpdatedAt:          s.now(),
	}); err != nil {
		return err
	}

	sub.Status = status
	sub.CurrentPeriodEnd = end
	return s.propagateSummary(ctx, sub)
}

// handleSubscriptionDeleted marks the mirror canceled. The record itself is
// never deleted; the status carries the tombstone.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, payload *SubscriptionPayload) error {
	if payload == nil {
		return fmt.Errorf("%w: subscription event without payload", ErrMissingMetadata)
	}

	sub, err := s.store.GetSubscriptionByStripeID(ctx, payload.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		s.log.WarnContext(ctx, "delete event for untracked subscription",
			logger.StripeSubscriptionID(payload.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	status := StatusCanceled
	cancel := true
	if err := s.store.PatchSubscription(ctx, sub.ID, SubscriptionPatch{
		Status:            &status,
		CancelAtPeriodEnd: &cancel,
		UpdatedAt:         s.now(),
	}); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription canceled",
		logger.UserID(sub.UserID), logger.SubscriptionID(sub.ID))

	sub.Status = status
	return s.propagateSummary(ctx, sub)
}

// handleInvoicePayment forces the mirror status after an invoice outcome:
// a cleared late payment flips past_due back to active, a failed one flips
// the subscription to past_due. Invoices without a subscription reference
// are ignored.
func (s *Service) handleInvoicePayment(ctx context.Context, payload *InvoicePayload, status SubscriptionStatus) error {
	if payload == nil || payload.SubscriptionID == "" {
		return nil
	}

	sub, err := s.store.GetSubscriptionByStripeID(ctx, payload.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.store.PatchSubscription(ctx, sub.ID, SubscriptionPatch{
		Status:    &status,
		UpdatedAt: s.now(),
	}); err != nil {
		return err
	}

	sub.Status = status
	return s.propagateSummary(ctx, sub)
}

// propagateSummary is the single write path for the user's denormalized
// subscription summary. Every mirror mutation funnels through here so the
// two copies cannot drift because of a forgotten call site.
func (s *Service) propagateSummary(ctx context.Context, sub *Subscription) error {
	if err := s.store.SetSubscriptionSummary(ctx, sub.UserID, sub.Summary()); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, sub.UserID)
	return nil
}
