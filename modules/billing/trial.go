package billing

import (
	"context"
	"time"

	"github.com/speaklab/backend/pkg/logger"
)

// TrialResult is returned by a successful activation, or alongside
// ErrTrialAlreadyActive so the caller can display the remaining time.
type TrialResult struct {
	TrialEndsAt time.Time `json:"trialEndsAt"`
}

// ActivateTrial grants the user their one-time 7 day trial. Preconditions are
// checked in order, first failure wins:
//
//  1. user must exist
//  2. a consumed trial is never re-armed (ErrTrialAlreadyUsed)
//  3. an expired-but-unflagged trial is healed and rejected as used
//  4. a live trial is rejected as active, returning its end time
//
// The grant itself is a single conditional write keyed on the absence of any
// prior trial, so concurrent duplicate submissions produce at most one grant.
func (s *Service) ActivateTrial(ctx context.Context, userID, planID string, cycle BillingCycle) (*TrialResult, error) {
	now := s.now()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TrialUsed {
		return nil, ErrTrialAlreadyUsed
	}

	if corrected, changed := reconcileTrialState(*user, now); changed {
		if werr := s.store.SetTrialState(ctx, userID, corrected.TrialActive, corrected.TrialUsed); werr != nil {
			s.log.ErrorContext(ctx, "trial lazy correction failed",
				logger.UserID(userID), logger.Error(werr))
		}
		return nil, ErrTrialAlreadyUsed
	}

	if user.HasLiveTrial(now) {
		return &TrialResult{TrialEndsAt: *user.TrialEndsAt}, ErrTrialAlreadyActive
	}

	grant := TrialGrant{
		StartedAt: now,
		EndsAt:    now.Add(TrialDuration),
		Plan:      TrialPlan{PlanID: planID, BillingCycle: cycle},
	}

	granted, err := s.store.GrantTrial(ctx, userID, grant)
	if err != nil {
		return nil, err
	}
	if !granted {
		// Lost the race against a concurrent activation for the same user.
		return nil, ErrTrialAlreadyUsed
	}

	s.cache.Invalidate(ctx, userID)
	s.log.InfoContext(ctx, "trial activated",
		logger.UserID(userID), logger.PlanID(planID))

	return &TrialResult{TrialEndsAt: grant.EndsAt}, nil
}
