package billing_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speaklab/backend/modules/billing"
)

func TestActivateTrial_Grant(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1"})
	svc, _ := newTestService(t, store, nil)

	result, err := svc.ActivateTrial(context.Background(), "user-1", "PREMIUM", billing.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, testTime.Add(billing.TrialDuration), result.TrialEndsAt)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, user.TrialActive)
	assert.False(t, user.TrialUsed)
	require.NotNil(t, user.TrialEndsAt)
	assert.Equal(t, result.TrialEndsAt, *user.TrialEndsAt)
	require.NotNil(t, user.TrialPlan)
	assert.Equal(t, "PREMIUM", user.TrialPlan.PlanID)
	assert.Equal(t, billing.CycleMonthly, user.TrialPlan.BillingCycle)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.CanAccess)
	assert.Equal(t, billing.AccessTrialing, snap.Status)
	assert.Equal(t, 7, snap.DaysLeft)
}

func TestActivateTrial_UnknownUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, billing.NewMemoryStore(), nil)

	_, err := svc.ActivateTrial(context.Background(), "ghost", "PREMIUM", billing.CycleMonthly)
	assert.ErrorIs(t, err, billing.ErrUserNotFound)
}

func TestActivateTrial_AlreadyUsed(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1", TrialUsed: true})
	svc, _ := newTestService(t, store, nil)

	result, err := svc.ActivateTrial(context.Background(), "user-1", "PREMIUM", billing.CycleMonthly)
	assert.ErrorIs(t, err, billing.ErrTrialAlreadyUsed)
	assert.Nil(t, result)
}

func TestActivateTrial_AlreadyActive(t *testing.T) {
	t.Parallel()

	endsAt := testTime.Add(2 * 24 * time.Hour)
	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{
		ID:          "user-1",
		TrialEndsAt: &endsAt,
		TrialActive: true,
	})
	svc, _ := newTestService(t, store, nil)

	result, err := svc.ActivateTrial(context.Background(), "user-1", "PREMIUM", billing.CycleMonthly)
	assert.ErrorIs(t, err, billing.ErrTrialAlreadyActive)
	require.NotNil(t, result, "caller needs the end time to render the remaining trial")
	assert.Equal(t, endsAt, result.TrialEndsAt)
}

func TestActivateTrial_ExpiredUnflaggedTrialIsHealedAndRejected(t *testing.T) {
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

	_, err := svc.ActivateTrial(context.Background(), "user-1", "PREMIUM", billing.CycleMonthly)
	assert.ErrorIs(t, err, billing.ErrTrialAlreadyUsed)

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, user.TrialActive)
	assert.True(t, user.TrialUsed)
}

func TestActivateTrial_LifecycleEndToEnd(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1"})
	svc, clock := newTestService(t, store, nil)

	_, err := svc.ActivateTrial(context.Background(), "user-1", "PRO", billing.CycleYearly)
	require.NoError(t, err)

	// Trial runs out.
	*clock = testTime.Add(billing.TrialDuration + time.Minute)

	snap, err := svc.AccessSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, snap.CanAccess)
	assert.Equal(t, billing.AccessExpired, snap.Status)

	// A second activation after expiry is permanently rejected.
	_, err = svc.ActivateTrial(context.Background(), "user-1", "PRO", billing.CycleYearly)
	assert.ErrorIs(t, err, billing.ErrTrialAlreadyUsed)
}

func TestActivateTrial_ConcurrentDoubleSubmission(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	store.PutUser(&billing.User{ID: "user-1"})
	svc, _ := newTestService(t, store, nil)

	const attempts = 16
	var granted atomic.Int32
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ActivateTrial(context.Background(), "user-1", "PREMIUM", billing.CycleMonthly); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load(), "exactly one concurrent activation may win")

	user, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, user.TrialActive)
	require.NotNil(t, user.TrialEndsAt)
	assert.Equal(t, testTime.Add(billing.TrialDuration), *user.TrialEndsAt)
}
