package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/types"
	"github.com/vibast-solutions/ms-go-donations/config"
)

const (
	defaultCurrency  = "usd"
	defaultBatchSize = int32(100)
)

type donationRepository interface {
	Create(ctx context.Context, donation *entity.Donation) error
	Update(ctx context.Context, donation *entity.Donation) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Donation, error)
	FindOriginBySubscriptionID(ctx context.Context, subscriptionID string) (*entity.Donation, error)
	ListPendingByEventTagPrefix(ctx context.Context, eventTagPrefix string, limit int32) ([]*entity.Donation, error)
}

type subscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	Update(ctx context.Context, subscription *entity.Subscription) error
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*entity.Subscription, error)
}

type registrationRepository interface {
	Create(ctx context.Context, registration *entity.EventRegistration) error
	Update(ctx context.Context, registration *entity.EventRegistration) error
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.EventRegistration, error)
}

type donationMailer interface {
	SendDonationReceipt(ctx context.Context, donation *entity.Donation) error
	SendAdminDonationAlert(ctx context.Context, donation *entity.Donation) error
	SendRegistrationConfirmation(ctx context.Context, registration *entity.EventRegistration) error
	SendAdminRegistrationAlert(ctx context.Context, registration *entity.EventRegistration) error
}

type DonationService struct {
	donationRepo     donationRepository
	subscriptionRepo subscriptionRepository
	registrationRepo registrationRepository
	gateway          provider.Gateway
	mailer           donationMailer
	jobsCfg          config.JobsConfig
	logger           logrus.FieldLogger
}

func NewDonationService(
	donationRepo donationRepository,
	subscriptionRepo subscriptionRepository,
	registrationRepo registrationRepository,
	gateway provider.Gateway,
	mailer donationMailer,
	jobsCfg config.JobsConfig,
) *DonationService {
	return &DonationService{
		donationRepo:     donationRepo,
		subscriptionRepo: subscriptionRepo,
		registrationRepo: registrationRepo,
		gateway:          gateway,
		mailer:           mailer,
		jobsCfg:          jobsCfg,
		logger:           factory.NewModuleLogger("donations-service"),
	}
}

type DonationIntentResult struct {
	Donation       *entity.Donation
	ClientSecret   string
	SubscriptionID string
	CustomerID     string
}

// CreateDonationIntent validates the request, creates the gateway-side charge
// intent (one-time payment intent or default_incomplete subscription) and
// persists a pending donation row. A store failure after the gateway call is
// a hard error: no payment may proceed without the row the webhook handler
// will later look up.
func (s *DonationService) CreateDonationIntent(ctx context.Context, req *types.CreateDonationIntentRequest) (*DonationIntentResult, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	amountCents := dollarsToCents(req.Amount)
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidRequest)
	}

	kind := entity.DonationKindOneTime
	if req.Recurring() {
		kind = entity.DonationKindRecurring
	}

	metadata := &provider.IntentMetadata{
		RecordType:    provider.RecordTypeDonation,
		DonorName:     req.DonorInfo.Name,
		DonorEmail:    req.DonorInfo.Email,
		DonorPhone:    req.DonorInfo.Phone,
		Company:       req.DonorInfo.Company,
		DonationKind:  kind,
		PlayerHonoree: req.PlayerHonoree,
		Message:       req.Message,
		Anonymous:     req.Anonymous,
		CampaignID:    req.CampaignID,
		EventTag:      req.EventTag,
	}

	if kind == entity.DonationKindRecurring {
		return s.createRecurringIntent(ctx, req, amountCents, metadata)
	}
	return s.createOneTimeIntent(ctx, req, amountCents, metadata)
}

func (s *DonationService) createOneTimeIntent(ctx context.Context, req *types.CreateDonationIntentRequest, amountCents int64, metadata *provider.IntentMetadata) (*DonationIntentResult, error) {
	intent, err := s.gateway.CreatePaymentIntent(ctx, &provider.PaymentIntentInput{
		AmountCents: amountCents,
		Currency:    defaultCurrency,
		Description: donationDescription(req),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	donation := newPendingDonation(req, amountCents, entity.DonationKindOneTime)
	donation.StripePaymentIntentID = intent.ID

	if err := s.donationRepo.Create(ctx, donation); err != nil {
		return nil, err
	}

	return &DonationIntentResult{
		Donation:     donation,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *DonationService) createRecurringIntent(ctx context.Context, req *types.CreateDonationIntentRequest, amountCents int64, metadata *provider.IntentMetadata) (*DonationIntentResult, error) {
	customer, err := s.findOrCreateCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	price, err := s.findOrCreateMonthlyPrice(ctx, amountCents)
	if err != nil {
		return nil, err
	}

	subscription, err := s.gateway.CreateSubscription(ctx, &provider.SubscriptionInput{
		CustomerID: customer.ID,
		PriceID:    price.ID,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	donation := newPendingDonation(req, amountCents, entity.DonationKindRecurring)
	donation.StripePaymentIntentID = subscription.PaymentIntentID
	subscriptionID := subscription.ID
	donation.StripeSubscriptionID = &subscriptionID

	if err := s.donationRepo.Create(ctx, donation); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &entity.Subscription{
		DonationID:           donation.ID,
		StripeSubscriptionID: subscription.ID,
		StripeCustomerID:     customer.ID,
		Status:               normalizeSubscriptionStatus(subscription.Status),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if !subscription.CurrentPeriodEnd.IsZero() {
		periodEnd := subscription.CurrentPeriodEnd
		record.CurrentPeriodEnd = &periodEnd
	}
	if err := s.subscriptionRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return &DonationIntentResult{
		Donation:       donation,
		ClientSecret:   subscription.PaymentIntentSecret,
		SubscriptionID: subscription.ID,
		CustomerID:     customer.ID,
	}, nil
}

// findOrCreateCustomer is a best-effort idempotent lookup keyed by email;
// concurrent first-time donors may produce a duplicate gateway customer,
// which is tolerated.
func (s *DonationService) findOrCreateCustomer(ctx context.Context, req *types.CreateDonationIntentRequest) (*provider.Customer, error) {
	customer, err := s.gateway.FindCustomerByEmail(ctx, req.DonorInfo.Email)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	return s.gateway.CreateCustomer(ctx, &provider.CustomerInput{
		Email: req.DonorInfo.Email,
		Name:  req.DonorInfo.Name,
		Phone: req.DonorInfo.Phone,
	})
}

func (s *DonationService) findOrCreateMonthlyPrice(ctx context.Context, amountCents int64) (*provider.Price, error) {
	price, err := s.gateway.FindMonthlyPrice(ctx, amountCents)
	if err != nil {
		return nil, err
	}
	if price != nil {
		return price, nil
	}

	productName := fmt.Sprintf("Monthly Donation - %s", formatDollars(amountCents))
	return s.gateway.CreateMonthlyPrice(ctx, amountCents, productName)
}

func (s *DonationService) batchSize() int32 {
	if s.jobsCfg.SyncBatchSize > 0 {
		return s.jobsCfg.SyncBatchSize
	}
	return defaultBatchSize
}

func newPendingDonation(req *types.CreateDonationIntentRequest, amountCents int64, kind string) *entity.Donation {
	now := time.Now().UTC()
	return &entity.Donation{
		DonorName:     req.DonorInfo.Name,
		DonorEmail:    req.DonorInfo.Email,
		DonorPhone:    normalizeOptionalString(req.DonorInfo.Phone),
		Company:       normalizeOptionalString(req.DonorInfo.Company),
		AmountCents:   amountCents,
		Kind:          kind,
		PlayerHonoree: normalizeOptionalString(req.PlayerHonoree),
		Message:       normalizeOptionalString(req.Message),
		Anonymous:     req.Anonymous,
		CampaignID:    normalizeOptionalString(req.CampaignID),
		EventTag:      normalizeOptionalString(req.EventTag),
		PaymentStatus: entity.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func donationDescription(req *types.CreateDonationIntentRequest) string {
	if req.Anonymous {
		return "Anonymous donation"
	}
	return fmt.Sprintf("Donation from %s", req.DonorInfo.Name)
}

func normalizeSubscriptionStatus(raw string) string {
	switch strings.TrimSpace(raw) {
	case "past_due":
		return entity.SubscriptionStatusPastDue
	case "canceled":
		return entity.SubscriptionStatusCanceled
	default:
		return entity.SubscriptionStatusActive
	}
}

func dollarsToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func formatDollars(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
