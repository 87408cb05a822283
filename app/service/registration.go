package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

type RegistrationPaymentResult struct {
	Registration    *entity.EventRegistration
	ClientSecret    string
	PaymentIntentID string
}

// CreateRegistrationPayment charges for an event registration. The total is
// recomputed from the package, add-ons and optional donation; the client's
// total field is never used as the charge amount. A client total that
// disagrees with the recomputed one by more than a cent is rejected so a
// stale or tampered page cannot silently pay the wrong amount.
func (s *DonationService) CreateRegistrationPayment(ctx context.Context, req *types.CreateRegistrationPaymentRequest) (*RegistrationPaymentResult, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	packageCents := dollarsToCents(req.PackagePrice)
	donationCents := dollarsToCents(req.DonationAmount)

	addons := make([]entity.RegistrationAddon, 0, len(req.Addons))
	var addonsCents int64
	for _, addon := range req.Addons {
		priceCents := dollarsToCents(addon.Price)
		addonsCents += priceCents
		addons = append(addons, entity.RegistrationAddon{
			Name:       addon.Name,
			PriceCents: priceCents,
		})
	}

	subtotalCents := packageCents + addonsCents
	totalCents := subtotalCents + donationCents
	if totalCents <= 0 {
		return nil, fmt.Errorf("%w: total must be a positive amount", ErrInvalidRequest)
	}
	if req.Total > 0 {
		clientCents := dollarsToCents(req.Total)
		if diff := clientCents - totalCents; diff > 1 || diff < -1 {
			return nil, fmt.Errorf("%w: total %s does not match line items (%s)",
				ErrInvalidRequest, formatDollars(clientCents), formatDollars(totalCents))
		}
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, &provider.PaymentIntentInput{
		AmountCents: totalCents,
		Currency:    defaultCurrency,
		Description: fmt.Sprintf("Registration: %s - %s", req.EventName, req.PackageName),
		Metadata: &provider.IntentMetadata{
			RecordType: provider.RecordTypeEventRegistration,
			DonorName:  req.ContactName,
			DonorEmail: req.ContactEmail,
			DonorPhone: req.ContactPhone,
			EventTag:   req.EventTag,
		},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	registration := &entity.EventRegistration{
		EventName:             req.EventName,
		EventDate:             req.EventDate,
		ContactName:           req.ContactName,
		ContactEmail:          req.ContactEmail,
		ContactPhone:          normalizeOptionalString(req.ContactPhone),
		PackageName:           req.PackageName,
		PackagePriceCents:     packageCents,
		Addons:                addons,
		DonationCents:         donationCents,
		SubtotalCents:         subtotalCents,
		TotalCents:            totalCents,
		EventTag:              normalizeOptionalString(req.EventTag),
		StripePaymentIntentID: intent.ID,
		PaymentStatus:         entity.PaymentStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.registrationRepo.Create(ctx, registration); err != nil {
		return nil, err
	}

	return &RegistrationPaymentResult{
		Registration:    registration,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}
