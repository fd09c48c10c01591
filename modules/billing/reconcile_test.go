package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklab/backend/modules/billing"
)

func TestReconcile_NoBillingHistory(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1"})
	svc, _ := newTestService(t, store, nil)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Corrected)
	assert.Equal(t, billing.SubscriptionStatus("none"), result.Status)
}

func TestReconcile_CustomerWithoutSubscriptions(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", StripeCustomerID: "cus_1"})
	provider := &fakeProvider{
		latestSubscription: func(context.Context, string) (*billing.ProviderSubscription, error) {
			return nil, billing.ErrSubscriptionNotFound
		},
	}
	svc, _ := newTestService(t, store, provider)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Corrected)
	assert.Equal(t, billing.SubscriptionStatus("none"), result.Status)
}

func TestReconcile_MaterializesMissingMirror(t *testing.T) {
	t.Parallel()

	// The checkout webhook never arrived: the provider has a live
	// subscription but the local store has nothing.
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", StripeCustomerID: "cus_1"})
	provider := &fakeProvider{
		latestSubscription: func(_ context.Context, customerID string) (*billing.ProviderSubscription, error) {
			assert.Equal(t, "cus_1", customerID)
			return providerSub(billing.StatusActive), nil
		},
	}
	svc, _ := newTestService(t, store, provider)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, billing.StatusActive, result.Status)

	sub, err := store.GetSubscriptionByStripeID(context.Background(), "sub_stripe_1")
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", sub.PlanID, "price id should resolve to the catalog plan")
	assert.Equal(t, billing.CycleMonthly, sub.BillingCycle)

	can, err := svc.CanTakeClasses(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, can)
}

func TestReconcile_RepairsDriftedStatus(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:               "user-1",
		StripeCustomerID: "cus_1",
		Subscription: &billing.SubscriptionSummary{
			ID:               "local-1",
			Status:           billing.StatusPastDue,
			CurrentPeriodEnd: testTime,
		},
	})
	require.NoError(t, store.CreateSubscription(context.Background(), &billing.Subscription{
		ID:                   "local-1",
		UserID:               "user-1",
		Status:               billing.StatusPastDue,
		CurrentPeriodEnd:     testTime,
		StripeSubscriptionID: "sub_stripe_1",
	}))
	provider := &fakeProvider{
		latestSubscription: func(context.Context, string) (*billing.ProviderSubscription, error) {
			return providerSub(billing.StatusActive), nil
		},
	}
	svc, _ := newTestService(t, store, provider)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Corrected)
	assert.Equal(t, billing.StatusActive, result.Status)

	sub, err := store.GetSubscriptionByStripeID(context.Background(), "sub_stripe_1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user.Subscription)
	assert.Equal(t, billing.StatusActive, user.Subscription.Status)
}

func TestReconcile_RepairsStaleSummary(t *testing.T) {
	t.Parallel()

	// Mirror matches the provider but the denormalized summary was lost;
	// reconciliation must restore it.
	live := providerSub(billing.StatusActive)
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", StripeCustomerID: "cus_1"})
	require.NoError(t, store.CreateSubscription(context.Background(), &billing.Subscription{
		ID:                   "local-1",
		UserID:               "user-1",
		Status:               live.Status,
		CurrentPeriodEnd:     time.Unix(live.CurrentPeriodEnd, 0).UTC(),
		StripeSubscriptionID: live.ID,
	}))
	provider := &fakeProvider{
		latestSubscription: func(context.Context, string) (*billing.ProviderSubscription, error) {
			return live, nil
		},
	}
	svc, _ := newTestService(t, store, provider)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Corrected)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, user.Subscription)
	assert.Equal(t, billing.StatusActive, user.Subscription.Status)
}

func TestReconcile_InSyncIsANoop(t *testing.T) {
	t.Parallel()

	live := providerSub(billing.StatusActive)
	liveEnd := time.Unix(live.CurrentPeriodEnd, 0).UTC()
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:               "user-1",
		StripeCustomerID: "cus_1",
		Subscription: &billing.SubscriptionSummary{
			ID:               "local-1",
			Status:           live.Status,
			CurrentPeriodEnd: liveEnd,
		},
	})
	require.NoError(t, store.CreateSubscription(context.Background(), &billing.Subscription{
		ID:                   "local-1",
		UserID:               "user-1",
		Status:               live.Status,
		CurrentPeriodEnd:     liveEnd,
		StripeSubscriptionID: live.ID,
	}))
	provider := &fakeProvider{
		latestSubscription: func(context.Context, string) (*billing.ProviderSubscription, error) {
			return live, nil
		},
	}
	svc, _ := newTestService(t, store, provider)

	result, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Corrected)
	assert.Equal(t, billing.StatusActive, result.Status)
}

func TestReconcile_ProviderFailure(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", StripeCustomerID: "cus_1"})
	provider := &fakeProvider{
		latestSubscription: func(context.Context, string) (*billing.ProviderSubscription, error) {
			return nil, errors.New("stripe: timeout")
		},
	}
	svc, _ := newTestService(t, store, provider)

	_, err := svc.ReconcileSubscriptionStatus(context.Background(), "user-1")
	assert.ErrorIs(t, err, billing.ErrUpstreamBilling)
}
