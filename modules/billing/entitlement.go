package billing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/speaklab/backend/pkg/logger"
)

// AccessStatus classifies why a user does or does not have access.
type AccessStatus string

const (
	AccessActive   AccessStatus = "active"   // provider subscription live
	AccessTrialing AccessStatus = "trialing" // free trial live
	AccessExpired  AccessStatus = "expired"  // trial consumed or subscription lapsed
	AccessNone     AccessStatus = "none"     // never had either
)

// Snapshot is the rich entitlement read used by callers that need to explain
// why access was granted or denied.
type Snapshot struct {
	CanAccess        bool         `json:"canAccess"`
	Status           AccessStatus `json:"status"`
	DaysLeft         int          `json:"daysLeft,omitempty"`
	PlanName         string       `json:"planName,omitempty"`
	CurrentPeriodEnd *time.Time   `json:"currentPeriodEnd,omitempty"`
}

// reconcileTrialState self-heals stale trial flags: a trial that has ended but
// is still flagged active becomes inactive and consumed. Pure function shared
// by the entitlement read path and the trial activation preconditions so the
// two copies of the healing logic cannot drift.
func reconcileTrialState(u User, now time.Time) (User, bool) {
	if u.TrialEndsAt == nil {
		return u, false
	}
	expired := !u.TrialEndsAt.After(now)
	if expired && (u.TrialActive || !u.TrialUsed) {
		u.TrialActive = false
		u.TrialUsed = true
		return u, true
	}
	return u, false
}

// CanTakeClasses reports whether the user may consume a billed class right
// now. Storage failures are returned as errors and must be treated as no
// access by callers; a "no" outcome itself is never an error.
func (s *Service) CanTakeClasses(ctx context.Context, userID string) (bool, error) {
	snap, err := s.AccessSnapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	return snap.CanAccess, nil
}

// AccessSnapshot evaluates the entitlement decision procedure. Precedence is
// load-bearing and must not be reordered:
//
//  1. denormalized subscription summary with a live status
//  2. authoritative subscription query
//  3. trial window, with lazy correction of stale flags
//
// The fast path deliberately trusts the summary status without comparing
// currentPeriodEnd to now: the webhook synchronizer keeps status fresh within
// webhook latency, and access slightly past a paid period is an accepted
// grace window, not a bug.
func (s *Service) AccessSnapshot(ctx context.Context, userID string) (Snapshot, error) {
	now := s.now()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	if sum := user.Subscription; sum != nil && sum.Status.IsLive() {
		end := sum.CurrentPeriodEnd
		return Snapshot{
			CanAccess:        true,
			Status:           s.statusFor(sum.Status),
			DaysLeft:         daysLeft(sum.Status, end, now),
			PlanName:         s.planNameFor(ctx, userID),
			CurrentPeriodEnd: &end,
		}, nil
	}

	sub, err := s.store.FindCurrentSubscription(ctx, userID)
	switch {
	case err == nil:
		end := sub.CurrentPeriodEnd
		return Snapshot{
			CanAccess:        true,
			Status:           s.statusFor(sub.Status),
			DaysLeft:         daysLeft(sub.Status, end, now),
			PlanName:         s.planName(sub.PlanID),
			CurrentPeriodEnd: &end,
		}, nil
	case !errors.Is(err, ErrSubscriptionNotFound):
		return Snapshot{}, err
	}

	if user.TrialEndsAt != nil {
		corrected, changed := reconcileTrialState(*user, now)
		if changed {
			// Write-during-read: duplicate corrections from concurrent
			// readers converge to the same flag values, so last-write-wins
			// is safe here.
			if werr := s.store.SetTrialState(ctx, userID, corrected.TrialActive, corrected.TrialUsed); werr != nil {
				s.log.ErrorContext(ctx, "trial lazy correction failed",
					logger.UserID(userID), logger.Error(werr))
			}
		}
		if corrected.HasLiveTrial(now) {
			end := *corrected.TrialEndsAt
			return Snapshot{
				CanAccess:        true,
				Status:           AccessTrialing,
				DaysLeft:         ceilDays(end.Sub(now)),
				CurrentPeriodEnd: &end,
			}, nil
		}
		return Snapshot{Status: AccessExpired}, nil
	}

	if user.Subscription != nil || user.TrialUsed {
		return Snapshot{Status: AccessExpired}, nil
	}
	return Snapshot{Status: AccessNone}, nil
}

func (s *Service) statusFor(status SubscriptionStatus) AccessStatus {
	if status == StatusTrialing {
		return AccessTrialing
	}
	return AccessActive
}

// planNameFor resolves the display name via the authoritative record; the
// summary does not carry the plan id.
func (s *Service) planNameFor(ctx context.Context, userID string) string {
	sub, err := s.store.FindCurrentSubscription(ctx, userID)
	if err != nil {
		return ""
	}
	return s.planName(sub.PlanID)
}

func (s *Service) planName(planID string) string {
	if plan, ok := s.plans.Get(planID); ok {
		return plan.Name
	}
	return planID
}

func daysLeft(status SubscriptionStatus, end time.Time, now time.Time) int {
	if status != StatusTrialing {
		return 0
	}
	return ceilDays(end.Sub(now))
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
