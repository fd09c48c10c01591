package billing

import "errors"

var (
	ErrUserNotFound         = errors.New("billing: user not found")
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")

	ErrTrialAlreadyUsed   = errors.New("billing: free trial already used")
	ErrTrialAlreadyActive = errors.New("billing: free trial already active")

	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrMissingMetadata  = errors.New("billing: webhook payload missing required metadata")

	ErrPlanNotFound    = errors.New("billing: plan not found")
	ErrUpstreamBilling = errors.New("billing: billing provider request failed")
	ErrStorage         = errors.New("billing: storage operation failed")
)
