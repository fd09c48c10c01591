package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklab/backend/modules/billing"
)

func TestAccessSnapshot_SummaryFastPath(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID: "user-1",
		Subscription: &billing.SubscriptionSummary{
			ID:               "sub-local-1",
			Status:           billing.StatusActive,
			CurrentPeriodEnd: testTime.Add(20 * 24 * time.Hour),
		},
	})
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.CanAccess)
	assert.Equal(t, billing.AccessActive, snap.Status)
}

func TestAccessSnapshot_SummaryTrustedPastPeriodEnd(t *testing.T) {
	t.Parallel()

	// A live status on the summary grants access even when the stored
	// period end is behind the clock; freshness is the synchronizer's job.
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID: "user-1",
		Subscription: &billing.SubscriptionSummary{
			ID:               "sub-local-1",
			Status:           billing.StatusActive,
			CurrentPeriodEnd: testTime.Add(-48 * time.Hour),
		},
	})
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.CanAccess)
}

func TestAccessSnapshot_DeadSummaryFallsBackToAuthoritative(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID: "user-1",
		Subscription: &billing.SubscriptionSummary{
			ID:     "sub-old",
			Status: billing.StatusCanceled,
		},
	})
	require.NoError(t, store.CreateSubscription(context.Background(), &billing.Subscription{
		ID:                   "sub-new",
		UserID:               "user-1",
		PlanID:               "PREMIUM",
		Status:               billing.StatusActive,
		CurrentPeriodEnd:     testTime.Add(30 * 24 * time.Hour),
		StripeSubscriptionID: "sub_stripe_new",
		UpdatedAt:            testTime,
	}))
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.CanAccess)
	assert.Equal(t, billing.AccessActive, snap.Status)
	assert.Equal(t, "Premium", snap.PlanName)
}

func TestAccessSnapshot_TrialWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		endsIn       time.Duration
		wantAccess   bool
		wantStatus   billing.AccessStatus
		wantDaysLeft int
	}{
		{
			name:         "mid trial",
			endsIn:       3*24*time.Hour + time.Hour,
			wantAccess:   true,
			wantStatus:   billing.AccessTrialing,
			wantDaysLeft: 4,
		},
		{
			name:         "last second counts as one day",
			endsIn:       time.Second,
			wantAccess:   true,
			wantStatus:   billing.AccessTrialing,
			wantDaysLeft: 1,
		},
		{
			name:       "expired one second ago",
			endsIn:     -time.Second,
			wantAccess: false,
			wantStatus: billing.AccessExpired,
		},
		{
			name:       "ends exactly now",
			endsIn:     0,
			wantAccess: false,
			wantStatus: billing.AccessExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			endsAt := testTime.Add(tt.endsIn)
			store := billing.NewMemoryStore()
			store.PutUser(&billing.User{
				ID:          "user-1",
				TrialEndsAt: &endsAt,
				TrialActive: true,
				TrialUsed:   false,
			})
			svc, _ := newTestService(t, store, nil)

			snap, err := svc.AccessSnapshot(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, snap.CanAccess)
			assert.Equal(t, tt.wantStatus, snap.Status)
			assert.Equal(t, tt.wantDaysLeft, snap.DaysLeft)
		})
	}
}

func TestAccessSnapshot_LazyTrialCorrection(t *testing.T) {
	t.Parallel()

	endsAt := testTime.Add(-time.Hour)
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:          "user-1",
		TrialEndsAt: &endsAt,
		TrialActive: true,
		TrialUsed:   false,
	})
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, snap.CanAccess)
	assert.Equal(t, billing.AccessExpired, snap.Status)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, user.TrialActive, "stale active flag should be cleared")
	assert.True(t, user.TrialUsed, "expired trial should be marked consumed")
}

func TestAccessSnapshot_ConcurrentCorrectionConverges(t *testing.T) {
	t.Parallel()

	endsAt := testTime.Add(-time.Minute)
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:          "user-1",
		TrialEndsAt: &endsAt,
		TrialActive: true,
	})
	svc, _ := newTestService(t, store, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := svc.AccessSnapshot(context.Background(), "user-1")
			assert.NoError(t, err)
			assert.False(t, snap.CanAccess)
		}()
	}
	wg.Wait()

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, user.TrialActive)
	assert.True(t, user.TrialUsed)
}

func TestAccessSnapshot_NeverHadAnything(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1"})
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, snap.CanAccess)
	assert.Equal(t, billing.AccessNone, snap.Status)
}

func TestAccessSnapshot_ConsumedTrialWithoutTimestamp(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", TrialUsed: true})
	svc, _ := newTestService(t, store, nil)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, snap.CanAccess)
	assert.Equal(t, billing.AccessExpired, snap.Status)
}

func TestCanTakeClasses_FailsClosed(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, billing.NewMemoryStore(), nil)

	can, err := svc.CanTakeClasses(context.Background(), "missing-user")
	require.ErrorIs(t, err, billing.ErrUserNotFound)
	assert.False(t, can, "errors must never grant access")
}

func TestCanTakeClasses_SubscriptionTrumpsExpiredTrial(t *testing.T) {
	t.Parallel()

	// A user whose free trial lapsed but who then subscribed must be
	// granted access by the subscription branch.
	endsAt := testTime.Add(-10 * 24 * time.Hour)
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:          "user-1",
		TrialEndsAt: &endsAt,
		TrialUsed:   true,
		Subscription: &billing.SubscriptionSummary{
			ID:               "sub-local-1",
			Status:           billing.StatusActive,
			CurrentPeriodEnd: testTime.Add(15 * 24 * time.Hour),
		},
	})
	svc, _ := newTestService(t, store, nil)

	can, err := svc.CanTakeClasses(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, can)
}
