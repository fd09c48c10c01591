package billing

import (
	"context"
	"time"
)

// StatusView is the discriminated payload rendered by UI subscription
// banners.
type StatusView struct {
	Type             string     `json:"type"` // plan | trial | expired | none
	DaysLeft         int        `json:"daysLeft,omitempty"`
	PlanName         string     `json:"planName,omitempty"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// StatusOverview serves the banner endpoint through the snapshot cache.
// Entries are invalidated on every subscription or trial mutation, so the
// cache TTL only bounds staleness for changes made outside this process.
func (s *Service) StatusOverview(ctx context.Context, userID string) (StatusView, error) {
	if snap, ok := s.cache.Get(ctx, userID); ok {
		return viewFromSnapshot(*snap), nil
	}

	snap, err := s.AccessSnapshot(ctx, userID)
	if err != nil {
		return StatusView{}, err
	}
	s.cache.Set(ctx, userID, snap)

	return viewFromSnapshot(snap), nil
}

func viewFromSnapshot(snap Snapshot) StatusView {
	switch snap.Status {
	case AccessActive:
		return StatusView{
			Type:             "plan",
			PlanName:         snap.PlanName,
			CurrentPeriodEnd: snap.CurrentPeriodEnd,
		}
	case AccessTrialing:
		return StatusView{
			Type:             "trial",
			DaysLeft:         snap.DaysLeft,
			CurrentPeriodEnd: snap.CurrentPeriodEnd,
		}
	case AccessExpired:
		return StatusView{Type: "expired"}
	default:
		return StatusView{Type: "none"}
	}
}
