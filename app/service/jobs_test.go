package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

func TestSyncPendingDonationsSettlesTerminalIntents(t *testing.T) {
	donationRepo := newServiceDonationRepo()
	succeeded := seedDonation(donationRepo, &entity.Donation{
		DonorName: "A", DonorEmail: "a@example.com", AmountCents: 1000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_a",
		PaymentStatus: entity.PaymentStatusPending,
	})
	pending := seedDonation(donationRepo, &entity.Donation{
		DonorName: "B", DonorEmail: "b@example.com", AmountCents: 2000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_b",
		PaymentStatus: entity.PaymentStatusPending,
	})
	canceled := seedDonation(donationRepo, &entity.Donation{
		DonorName: "C", DonorEmail: "c@example.com", AmountCents: 3000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_c",
		PaymentStatus: entity.PaymentStatusPending,
	})

	gateway := &serviceGateway{intentStatuses: map[string]string{
		"pi_a": "succeeded",
		"pi_b": "requires_payment_method",
		"pi_c": "canceled",
	}}
	mailer := &serviceMailer{}
	svc := newDonationServiceForTest(donationRepo, newServiceSubscriptionRepo(), newServiceRegistrationRepo(), gateway, mailer)

	report, err := svc.SyncPendingDonations(context.Background(), "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected 3 total, got %d", report.Total)
	}
	if report.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", report.Updated)
	}
	if report.StillPending != 1 {
		t.Fatalf("expected 1 still pending, got %d", report.StillPending)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", report.Failed)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", report.Errors)
	}

	if donationRepo.donations[succeeded.ID].PaymentStatus != entity.PaymentStatusSucceeded {
		t.Fatal("expected pi_a donation marked succeeded")
	}
	if donationRepo.donations[pending.ID].PaymentStatus != entity.PaymentStatusPending {
		t.Fatal("expected pi_b donation still pending")
	}
	if donationRepo.donations[canceled.ID].PaymentStatus != entity.PaymentStatusFailed {
		t.Fatal("expected pi_c donation marked failed")
	}
	if len(mailer.receipts) != 1 {
		t.Fatalf("expected one receipt for the settled donation, got %d", len(mailer.receipts))
	}

	// A second sweep only sees the record that stayed pending.
	second, err := svc.SyncPendingDonations(context.Background(), "")
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.Total != 1 {
		t.Fatalf("expected 1 total on second sweep, got %d", second.Total)
	}
	if second.Updated != 0 || second.Failed != 0 {
		t.Fatalf("expected no changes on second sweep, got updated=%d failed=%d", second.Updated, second.Failed)
	}
	if len(mailer.receipts) != 1 {
		t.Fatal("second sweep must not resend emails")
	}
}

func TestSyncPendingDonationsContinuesAfterGatewayError(t *testing.T) {
	donationRepo := newServiceDonationRepo()
	seedDonation(donationRepo, &entity.Donation{
		DonorName: "A", DonorEmail: "a@example.com", AmountCents: 1000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_broken",
		PaymentStatus: entity.PaymentStatusPending,
	})
	ok := seedDonation(donationRepo, &entity.Donation{
		DonorName: "B", DonorEmail: "b@example.com", AmountCents: 2000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_ok",
		PaymentStatus: entity.PaymentStatusPending,
	})

	gateway := &serviceGateway{
		intentStatuses: map[string]string{"pi_ok": "succeeded"},
		intentErrs:     map[string]error{"pi_broken": errors.New("stripe request failed: status=500")},
	}
	svc := newDonationServiceForTest(donationRepo, newServiceSubscriptionRepo(), newServiceRegistrationRepo(), gateway, &serviceMailer{})

	report, err := svc.SyncPendingDonations(context.Background(), "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected one error entry, got %v", report.Errors)
	}
	if report.Updated != 1 {
		t.Fatalf("expected one updated, got %d", report.Updated)
	}
	if donationRepo.donations[ok.ID].PaymentStatus != entity.PaymentStatusSucceeded {
		t.Fatal("expected pi_ok donation marked succeeded despite the earlier failure")
	}
}

func TestSyncPendingDonationsReportsMissingIntentID(t *testing.T) {
	donationRepo := newServiceDonationRepo()
	seedDonation(donationRepo, &entity.Donation{
		DonorName: "A", DonorEmail: "a@example.com", AmountCents: 1000,
		Kind:          entity.DonationKindRecurring,
		PaymentStatus: entity.PaymentStatusPending,
	})

	svc := newDonationServiceForTest(donationRepo, newServiceSubscriptionRepo(), newServiceRegistrationRepo(), &serviceGateway{}, &serviceMailer{})

	report, err := svc.SyncPendingDonations(context.Background(), "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("expected 1 total, got %d", report.Total)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected one error entry, got %v", report.Errors)
	}
	if report.Updated != 0 {
		t.Fatalf("expected no updates, got %d", report.Updated)
	}
}

func TestSyncPendingDonationsTakesNoActionOnProcessingIntent(t *testing.T) {
	donationRepo := newServiceDonationRepo()
	donation := seedDonation(donationRepo, &entity.Donation{
		DonorName: "A", DonorEmail: "a@example.com", AmountCents: 1000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_p",
		PaymentStatus: entity.PaymentStatusPending,
	})

	gateway := &serviceGateway{intentStatuses: map[string]string{"pi_p": "processing"}}
	svc := newDonationServiceForTest(donationRepo, newServiceSubscriptionRepo(), newServiceRegistrationRepo(), gateway, &serviceMailer{})

	report, err := svc.SyncPendingDonations(context.Background(), "")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Updated != 0 || report.StillPending != 0 || report.Failed != 0 {
		t.Fatalf("expected no counted action, got updated=%d stillPending=%d failed=%d",
			report.Updated, report.StillPending, report.Failed)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", report.Errors)
	}
	if donationRepo.donations[donation.ID].PaymentStatus != entity.PaymentStatusPending {
		t.Fatal("expected donation left pending")
	}
}

func TestSyncPendingDonationsFiltersByEventTagPrefix(t *testing.T) {
	donationRepo := newServiceDonationRepo()
	golfTag := "golf-2026"
	galaTag := "gala"
	golf := seedDonation(donationRepo, &entity.Donation{
		DonorName: "A", DonorEmail: "a@example.com", AmountCents: 1000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_golf",
		EventTag: &golfTag, PaymentStatus: entity.PaymentStatusPending,
	})
	seedDonation(donationRepo, &entity.Donation{
		DonorName: "B", DonorEmail: "b@example.com", AmountCents: 2000,
		Kind: entity.DonationKindOneTime, StripePaymentIntentID: "pi_gala",
		EventTag: &galaTag, PaymentStatus: entity.PaymentStatusPending,
	})

	gateway := &serviceGateway{intentStatuses: map[string]string{"pi_golf": "succeeded", "pi_gala": "succeeded"}}
	svc := newDonationServiceForTest(donationRepo, newServiceSubscriptionRepo(), newServiceRegistrationRepo(), gateway, &serviceMailer{})

	report, err := svc.SyncPendingDonations(context.Background(), "golf")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Total != 1 {
		t.Fatalf("expected 1 total, got %d", report.Total)
	}
	if donationRepo.donations[golf.ID].PaymentStatus != entity.PaymentStatusSucceeded {
		t.Fatal("expected golf donation settled")
	}
}

func TestSyncPendingDonationsGatewayNotConfigured(t *testing.T) {
	svc := newDonationServiceForTest(newServiceDonationRepo(), newServiceSubscriptionRepo(), newServiceRegistrationRepo(), &serviceGateway{unconfigured: true}, &serviceMailer{})

	if _, err := svc.SyncPendingDonations(context.Background(), ""); !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
	}
}
