package entity

import "time"

type RegistrationAddon struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

type EventRegistration struct {
	ID uint64

	EventName string
	EventDate string

	ContactName  string
	ContactEmail string
	ContactPhone *string

	PackageName       string
	PackagePriceCents int64
	Addons            []RegistrationAddon

	DonationCents int64
	SubtotalCents int64
	TotalCents    int64

	EventTag *string

	StripePaymentIntentID string

	PaymentStatus string

	CreatedAt time.Time
	UpdatedAt time.Time
}
