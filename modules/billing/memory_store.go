package billing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and local development.
// All methods copy documents on the way in and out so callers never share
// state with the store.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User
	subs  map[string]*Subscription
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*User),
		subs:  make(map[string]*Subscription),
	}
}

// PutUser inserts or replaces a user document. Test seeding helper.
func (s *MemoryStore) PutUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

func copyUser(u *User) *User {
	cp := *u
	if u.TrialEndsAt != nil {
		t := *u.TrialEndsAt
		cp.TrialEndsAt = &t
	}
	if u.TrialStartedAt != nil {
		t := *u.TrialStartedAt
		cp.TrialStartedAt = &t
	}
	if u.TrialPlan != nil {
		p := *u.TrialPlan
		cp.TrialPlan = &p
	}
	if u.Subscription != nil {
		sub := *u.Subscription
		cp.Subscription = &sub
	}
	return &cp
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) SetTrialState(_ context.Context, userID string, active, used bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.TrialActive = active
		u.TrialUsed = used
	}
	return nil
}

func (s *MemoryStore) GrantTrial(_ context.Context, userID string, grant TrialGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.TrialUsed || u.TrialEndsAt != nil {
		return false, nil
	}
	endsAt := grant.EndsAt
	startedAt := grant.StartedAt
	plan := grant.Plan
	u.TrialEndsAt = &endsAt
	u.TrialStartedAt = &startedAt
	u.TrialActive = true
	u.TrialPlan = &plan
	return true, nil
}

func (s *MemoryStore) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.StripeCustomerID = customerID
	}
	return nil
}

func (s *MemoryStore) SetSubscriptionSummary(_ context.Context, userID string, sum *SubscriptionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		if sum == nil {
			u.Subscription = nil
		} else {
			cp := *sum
			u.Subscription = &cp
		}
	}
	return nil
}

func (s *MemoryStore) CreateSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSubscriptionByStripeID(_ context.Context, stripeSubID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) FindCurrentSubscription(_ context.Context, userID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Subscription
	for _, sub := range s.subs {
		if sub.UserID != userID || !sub.Status.IsLive() {
			continue
		}
		if best == nil || sub.UpdatedAt.After(best.UpdatedAt) {
			best = sub
		}
	}
	if best == nil {
		return nil, ErrSubscriptionNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) PatchSubscription(_ context.Context, id string, patch SubscriptionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	if patch.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = *patch.CurrentPeriodStart
	}
	if patch.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = *patch.CurrentPeriodEnd
	}
	if patch.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *patch.CancelAtPeriodEnd
	}
	sub.UpdatedAt = patch.UpdatedAt
	return nil
}
