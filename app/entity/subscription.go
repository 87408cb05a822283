package entity

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

type Subscription struct {
	ID uint64

	DonationID uint64

	StripeSubscriptionID string
	StripeCustomerID     string

	Status           string
	CurrentPeriodEnd *time.Time
	CanceledAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
