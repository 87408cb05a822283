package entity

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

const (
	DonationKindOneTime   = "one-time"
	DonationKindRecurring = "recurring"
)

// Donation is one charge attempt. Recurring subscriptions keep their first
// ("origin") row untouched; every later billing cycle inserts a fresh row
// keyed by the cycle's payment intent id.
type Donation struct {
	ID uint64

	DonorName  string
	DonorEmail string
	DonorPhone *string
	Company    *string

	AmountCents int64
	Kind        string

	PlayerHonoree *string
	Message       *string
	Anonymous     bool
	CampaignID    *string
	EventTag      *string

	StripePaymentIntentID string
	StripeSubscriptionID  *string

	PaymentStatus string

	CreatedAt time.Time
	UpdatedAt time.Time
}
