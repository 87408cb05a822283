package provider

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConfigured    = errors.New("payment gateway is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const (
	RecordTypeDonation          = "donation"
	RecordTypeEventRegistration = "event_registration"
)

// IntentMetadata is the fixed schema attached to every charge intent on the
// gateway side. It doubles as the reconciliation fallback source of truth,
// so the webhook handler parses it into named fields rather than a free-form
// map.
type IntentMetadata struct {
	RecordType    string
	DonorName     string
	DonorEmail    string
	DonorPhone    string
	Company       string
	DonationKind  string
	PlayerHonoree string
	Message       string
	Anonymous     bool
	CampaignID    string
	EventTag      string
}

type PaymentIntentInput struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    *IntentMetadata
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Metadata     IntentMetadata
}

type CustomerInput struct {
	Email string
	Name  string
	Phone string
}

type Customer struct {
	ID    string
	Email string
}

type Price struct {
	ID              string
	UnitAmountCents int64
	Interval        string
}

type SubscriptionInput struct {
	CustomerID string
	PriceID    string
	Metadata   *IntentMetadata
}

type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time

	LatestInvoiceID string
	// First-invoice payment intent, present when the subscription is created
	// with default_incomplete behavior and the latest invoice is expanded.
	PaymentIntentID     string
	PaymentIntentSecret string
}

type Event struct {
	ID   string
	Type string

	PaymentIntent *EventPaymentIntent
	Invoice       *EventInvoice
	Subscription  *EventSubscription
}

type EventPaymentIntent struct {
	ID       string
	Status   string
	Metadata IntentMetadata
}

type EventInvoice struct {
	ID              string
	SubscriptionID  string
	PaymentIntentID string
	PeriodEnd       time.Time
}

type EventSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time
	LatestInvoiceID  string
}

type Gateway interface {
	Configured() bool
	CreatePaymentIntent(ctx context.Context, input *PaymentIntentInput) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, input *CustomerInput) (*Customer, error)
	FindMonthlyPrice(ctx context.Context, amountCents int64) (*Price, error)
	CreateMonthlyPrice(ctx context.Context, amountCents int64, productName string) (*Price, error)
	CreateSubscription(ctx context.Context, input *SubscriptionInput) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	VerifyAndParseEvent(payload []byte, signature string) (*Event, error)
}
