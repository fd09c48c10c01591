package billing

import "time"

// SubscriptionStatus mirrors the billing provider's subscription lifecycle
// vocabulary. Values are stored as-is; the entitlement engine only pattern
// matches on them.
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "active"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusUnpaid            SubscriptionStatus = "unpaid"
)

// IsLive reports whether the status grants access to billed resources.
func (s SubscriptionStatus) IsLive() bool {
	return s == StatusActive || s == StatusTrialing
}

// BillingCycle is the billing frequency chosen at checkout.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// TrialPlan records which paid plan a trial user intends to convert to.
// Informational only; never consulted by the access decision.
type TrialPlan struct {
	PlanID       string       `bson:"planId" json:"planId"`
	BillingCycle BillingCycle `bson:"billingCycle" json:"billingCycle"`
}

// SubscriptionSummary is the denormalized copy of the authoritative
// Subscription fields kept on the User document. It exists so the hot-path
// access check costs a single document read.
type SubscriptionSummary struct {
	ID               string             `bson:"id" json:"id"`
	Status           SubscriptionStatus `bson:"status" json:"status"`
	CurrentPeriodEnd time.Time          `bson:"currentPeriodEnd" json:"currentPeriodEnd"`
}

// User is the account holder document stored in the users collection.
// The ID equals the identity provider's subject.
type User struct {
	ID               string               `bson:"_id" json:"id"`
	Email            string               `bson:"email,omitempty" json:"email,omitempty"`
	Name             string               `bson:"name,omitempty" json:"name,omitempty"`
	TrialEndsAt      *time.Time           `bson:"trialEndsAt,omitempty" json:"trialEndsAt,omitempty"`
	TrialActive      bool                 `bson:"trialActive" json:"trialActive"`
	TrialUsed        bool                 `bson:"trialUsed" json:"trialUsed"`
	TrialStartedAt   *time.Time           `bson:"trialStartedAt,omitempty" json:"trialStartedAt,omitempty"`
	TrialPlan        *TrialPlan           `bson:"trialPlan,omitempty" json:"trialPlan,omitempty"`
	Subscription     *SubscriptionSummary `bson:"subscription,omitempty" json:"subscription,omitempty"`
	StripeCustomerID string               `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time            `bson:"createdAt" json:"createdAt"`
}

// HasLiveTrial reports whether a granted trial is still running at the given time.
func (u *User) HasLiveTrial(now time.Time) bool {
	return u.TrialActive && u.TrialEndsAt != nil && u.TrialEndsAt.After(now)
}

// Subscription is the authoritative local mirror of one provider subscription.
// Created only by the checkout-completion webhook handler and mutated in place
// afterwards; never deleted. The webhook synchronizer is the exclusive writer,
// the entitlement engine only reads it.
type Subscription struct {
	ID                   string             `bson:"_id" json:"id"`
	UserID               string             `bson:"userId" json:"userId"`
	PlanID               string             `bson:"planId" json:"planId"`
	BillingCycle         BillingCycle       `bson:"billingCycle" json:"billingCycle"`
	Status               SubscriptionStatus `bson:"status" json:"status"`
	CurrentPeriodStart   time.Time          `bson:"currentPeriodStart" json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time          `bson:"currentPeriodEnd" json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool               `bson:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
	StripeCustomerID     string             `bson:"stripeCustomerId" json:"stripeCustomerId"`
	StripeSubscriptionID string             `bson:"stripeSubscriptionId" json:"stripeSubscriptionId"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Summary returns the denormalized view propagated to the User document.
func (s *Subscription) Summary() *SubscriptionSummary {
	return &SubscriptionSummary{
		ID:               s.ID,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
	}
}
