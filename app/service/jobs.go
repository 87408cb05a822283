package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

type SyncReport struct {
	Total        int
	Updated      int
	StillPending int
	Failed       int
	Errors       []string
	Details      []string
}

// SyncPendingDonations polls the gateway for every pending donation and
// settles the ones whose intents have reached a terminal status. Webhooks are
// the primary settlement path; the sweep catches deliveries that were lost.
// A gateway failure on one record is reported and the sweep moves on.
func (s *DonationService) SyncPendingDonations(ctx context.Context, eventTagPrefix string) (*SyncReport, error) {
	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	pending, err := s.donationRepo.ListPendingByEventTagPrefix(ctx, eventTagPrefix, s.batchSize())
	if err != nil {
		return nil, err
	}

	report := &SyncReport{
		Total:   len(pending),
		Errors:  []string{},
		Details: []string{},
	}

	for _, donation := range pending {
		if donation.StripePaymentIntentID == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("donation %d has no payment intent id", donation.ID))
			continue
		}

		intent, err := s.gateway.GetPaymentIntent(ctx, donation.StripePaymentIntentID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("donation %d: %s", donation.ID, err.Error()))
			continue
		}

		switch intent.Status {
		case "succeeded":
			donation.PaymentStatus = entity.PaymentStatusSucceeded
			donation.UpdatedAt = time.Now().UTC()
			if err := s.donationRepo.Update(ctx, donation); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("donation %d: %s", donation.ID, err.Error()))
				continue
			}
			report.Updated++
			report.Details = append(report.Details, fmt.Sprintf("donation %d: pending -> succeeded", donation.ID))
			s.notifyDonation(ctx, donation)
		case "requires_payment_method", "requires_confirmation", "requires_action":
			report.StillPending++
			report.Details = append(report.Details, fmt.Sprintf("donation %d: still pending (%s)", donation.ID, intent.Status))
		case "canceled":
			donation.PaymentStatus = entity.PaymentStatusFailed
			donation.UpdatedAt = time.Now().UTC()
			if err := s.donationRepo.Update(ctx, donation); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("donation %d: %s", donation.ID, err.Error()))
				continue
			}
			report.Failed++
			report.Details = append(report.Details, fmt.Sprintf("donation %d: pending -> failed", donation.ID))
		default:
			report.Details = append(report.Details, fmt.Sprintf("donation %d: no action for status %q", donation.ID, intent.Status))
		}
	}

	return report, nil
}
