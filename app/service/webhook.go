package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
)

// HandleWebhookEvent verifies and applies a gateway callback. Only a
// signature failure is reported to the caller; every other problem is logged
// and the event is acknowledged, because the gateway retries non-2xx
// deliveries and most of our failures are not fixed by a retry storm.
func (s *DonationService) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyAndParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		s.logger.WithError(err).Warn("discarding unparseable webhook event")
		return nil
	}

	logger := s.logger.WithField("event_type", event.Type).WithField("event_id", event.ID)

	switch event.Type {
	case "payment_intent.succeeded":
		s.handleIntentSucceeded(ctx, event.PaymentIntent)
	case "payment_intent.payment_failed":
		s.handleIntentFailed(ctx, event.PaymentIntent)
	case "customer.subscription.created":
		s.handleSubscriptionCreated(ctx, event.Subscription)
	case "invoice.payment_succeeded":
		s.handleInvoicePaid(ctx, event.Invoice)
	case "invoice.payment_failed":
		s.handleInvoiceFailed(ctx, event.Invoice)
	case "customer.subscription.deleted":
		s.handleSubscriptionDeleted(ctx, event.Subscription)
	default:
		logger.Info("ignoring unhandled webhook event type")
	}

	return nil
}

func (s *DonationService) handleIntentSucceeded(ctx context.Context, intent *provider.EventPaymentIntent) {
	if intent == nil || intent.ID == "" {
		s.logger.Warn("payment_intent.succeeded event without a payment intent")
		return
	}

	if intent.Metadata.RecordType == provider.RecordTypeEventRegistration {
		s.markRegistrationSucceeded(ctx, intent.ID)
		return
	}
	s.markDonationSucceeded(ctx, intent.ID, true)
}

func (s *DonationService) handleIntentFailed(ctx context.Context, intent *provider.EventPaymentIntent) {
	if intent == nil || intent.ID == "" {
		s.logger.Warn("payment_intent.payment_failed event without a payment intent")
		return
	}

	logger := s.logger.WithField("payment_intent_id", intent.ID)

	if intent.Metadata.RecordType == provider.RecordTypeEventRegistration {
		registration, err := s.registrationRepo.FindByPaymentIntentID(ctx, intent.ID)
		if err != nil {
			logger.WithError(err).Error("failed to load registration for failed intent")
			return
		}
		if registration == nil || registration.PaymentStatus != entity.PaymentStatusPending {
			return
		}
		registration.PaymentStatus = entity.PaymentStatusFailed
		registration.UpdatedAt = time.Now().UTC()
		if err := s.registrationRepo.Update(ctx, registration); err != nil {
			logger.WithError(err).Error("failed to mark registration as failed")
		}
		return
	}

	donation, err := s.donationRepo.FindByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		logger.WithError(err).Error("failed to load donation for failed intent")
		return
	}
	if donation == nil || donation.PaymentStatus != entity.PaymentStatusPending {
		return
	}
	donation.PaymentStatus = entity.PaymentStatusFailed
	donation.UpdatedAt = time.Now().UTC()
	if err := s.donationRepo.Update(ctx, donation); err != nil {
		logger.WithError(err).Error("failed to mark donation as failed")
	}
}

// markDonationSucceeded flips a pending donation to succeeded and sends the
// receipt and admin alert. If no row exists for the intent the gateway-side
// metadata is used to reconstruct one, so a lost insert does not lose the
// gift.
func (s *DonationService) markDonationSucceeded(ctx context.Context, paymentIntentID string, allowReconstruct bool) {
	logger := s.logger.WithField("payment_intent_id", paymentIntentID)

	donation, err := s.donationRepo.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		logger.WithError(err).Error("failed to load donation for succeeded intent")
		return
	}
	if donation == nil {
		if !allowReconstruct {
			logger.Warn("no donation record for succeeded intent")
			return
		}
		s.reconstructDonation(ctx, paymentIntentID)
		return
	}

	if donation.PaymentStatus == entity.PaymentStatusSucceeded {
		return
	}

	donation.PaymentStatus = entity.PaymentStatusSucceeded
	donation.UpdatedAt = time.Now().UTC()
	if err := s.donationRepo.Update(ctx, donation); err != nil {
		logger.WithError(err).Error("failed to mark donation as succeeded")
		return
	}

	s.notifyDonation(ctx, donation)
}

// reconstructDonation rebuilds a donation row from the intent's metadata when
// the original insert is missing.
func (s *DonationService) reconstructDonation(ctx context.Context, paymentIntentID string) {
	logger := s.logger.WithField("payment_intent_id", paymentIntentID)

	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		logger.WithError(err).Error("failed to fetch intent for donation reconstruction")
		return
	}

	metadata := intent.Metadata
	kind := metadata.DonationKind
	if kind != entity.DonationKindRecurring {
		kind = entity.DonationKindOneTime
	}

	now := time.Now().UTC()
	donation := &entity.Donation{
		DonorName:             metadata.DonorName,
		DonorEmail:            metadata.DonorEmail,
		DonorPhone:            normalizeOptionalString(metadata.DonorPhone),
		Company:               normalizeOptionalString(metadata.Company),
		AmountCents:           intent.AmountCents,
		Kind:                  kind,
		PlayerHonoree:         normalizeOptionalString(metadata.PlayerHonoree),
		Message:               normalizeOptionalString(metadata.Message),
		Anonymous:             metadata.Anonymous,
		CampaignID:            normalizeOptionalString(metadata.CampaignID),
		EventTag:              normalizeOptionalString(metadata.EventTag),
		StripePaymentIntentID: paymentIntentID,
		PaymentStatus:         entity.PaymentStatusSucceeded,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.donationRepo.Create(ctx, donation); err != nil {
		if errors.Is(err, repository.ErrDonationAlreadyExists) {
			return
		}
		logger.WithError(err).Error("failed to reconstruct donation record")
		return
	}

	logger.Info("reconstructed donation record from intent metadata")
	s.notifyDonation(ctx, donation)
}

func (s *DonationService) markRegistrationSucceeded(ctx context.Context, paymentIntentID string) {
	logger := s.logger.WithField("payment_intent_id", paymentIntentID)

	registration, err := s.registrationRepo.FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		logger.WithError(err).Error("failed to load registration for succeeded intent")
		return
	}
	if registration == nil {
		logger.Warn("no registration record for succeeded intent")
		return
	}

	if registration.PaymentStatus == entity.PaymentStatusSucceeded {
		return
	}

	registration.PaymentStatus = entity.PaymentStatusSucceeded
	registration.UpdatedAt = time.Now().UTC()
	if err := s.registrationRepo.Update(ctx, registration); err != nil {
		logger.WithError(err).Error("failed to mark registration as succeeded")
		return
	}

	if err := s.mailer.SendRegistrationConfirmation(ctx, registration); err != nil {
		logger.WithError(err).Warn("failed to send registration confirmation")
	}
	if err := s.mailer.SendAdminRegistrationAlert(ctx, registration); err != nil {
		logger.WithError(err).Warn("failed to send admin registration alert")
	}
}

// handleSubscriptionCreated backfills the origin donation with the first
// invoice's payment intent id and settles it. A later payment_intent.succeeded
// delivery for the same intent finds an already-succeeded row and is a no-op.
func (s *DonationService) handleSubscriptionCreated(ctx context.Context, sub *provider.EventSubscription) {
	if sub == nil || sub.ID == "" {
		s.logger.Warn("customer.subscription.created event without a subscription")
		return
	}

	logger := s.logger.WithField("subscription_id", sub.ID)

	origin, err := s.donationRepo.FindOriginBySubscriptionID(ctx, sub.ID)
	if err != nil {
		logger.WithError(err).Error("failed to load origin donation for created subscription")
		return
	}
	if origin == nil {
		logger.Warn("no origin donation for created subscription")
		return
	}

	if origin.StripePaymentIntentID == "" {
		// The event payload carries the latest invoice as a bare id, so the
		// expanded subscription has to be fetched to reach the intent.
		full, err := s.gateway.GetSubscription(ctx, sub.ID)
		if err != nil {
			logger.WithError(err).Error("failed to fetch subscription for intent backfill")
		} else if full.PaymentIntentID != "" {
			origin.StripePaymentIntentID = full.PaymentIntentID
		}
	}

	settled := origin.PaymentStatus == entity.PaymentStatusPending
	if settled {
		origin.PaymentStatus = entity.PaymentStatusSucceeded
	}
	origin.UpdatedAt = time.Now().UTC()
	if err := s.donationRepo.Update(ctx, origin); err != nil {
		logger.WithError(err).Error("failed to update origin donation for created subscription")
	} else if settled {
		s.notifyDonation(ctx, origin)
	}

	s.upsertSubscriptionRecord(ctx, origin.ID, sub.ID, sub.CustomerID, normalizeSubscriptionStatus(sub.Status), sub.CurrentPeriodEnd)
}

// handleInvoicePaid settles a subscription billing cycle. The first cycle
// flips the origin donation; later cycles clone the origin into a fresh
// succeeded row so each charge is its own record and the origin row is never
// rewritten.
func (s *DonationService) handleInvoicePaid(ctx context.Context, invoice *provider.EventInvoice) {
	if invoice == nil || invoice.SubscriptionID == "" {
		// One-off invoices are not ours; intent events cover those payments.
		return
	}

	logger := s.logger.WithField("subscription_id", invoice.SubscriptionID)

	if invoice.PaymentIntentID != "" {
		donation, err := s.donationRepo.FindByPaymentIntentID(ctx, invoice.PaymentIntentID)
		switch {
		case err != nil:
			logger.WithError(err).Error("failed to load donation for paid invoice")
		case donation == nil:
			s.cloneCycleDonation(ctx, invoice)
		case donation.PaymentStatus != entity.PaymentStatusSucceeded:
			donation.PaymentStatus = entity.PaymentStatusSucceeded
			donation.UpdatedAt = time.Now().UTC()
			if err := s.donationRepo.Update(ctx, donation); err != nil {
				logger.WithError(err).Error("failed to mark donation as succeeded")
			} else {
				s.notifyDonation(ctx, donation)
			}
		}
	} else {
		// Some payloads omit the intent reference; fall back to the origin row.
		origin, err := s.donationRepo.FindOriginBySubscriptionID(ctx, invoice.SubscriptionID)
		if err != nil {
			logger.WithError(err).Error("failed to load origin donation for paid invoice")
			return
		}
		if origin == nil {
			logger.Warn("no origin donation for paid invoice")
			return
		}
		if origin.PaymentStatus == entity.PaymentStatusPending {
			origin.PaymentStatus = entity.PaymentStatusSucceeded
			origin.UpdatedAt = time.Now().UTC()
			if err := s.donationRepo.Update(ctx, origin); err != nil {
				logger.WithError(err).Error("failed to mark origin donation as succeeded")
				return
			}
			s.notifyDonation(ctx, origin)
		}
	}

	s.refreshSubscriptionRecord(ctx, invoice.SubscriptionID, entity.SubscriptionStatusActive, invoice.PeriodEnd)
}

// cloneCycleDonation records a renewal charge as a new donation row copied
// from the origin.
func (s *DonationService) cloneCycleDonation(ctx context.Context, invoice *provider.EventInvoice) {
	logger := s.logger.
		WithField("subscription_id", invoice.SubscriptionID).
		WithField("payment_intent_id", invoice.PaymentIntentID)

	origin, err := s.donationRepo.FindOriginBySubscriptionID(ctx, invoice.SubscriptionID)
	if err != nil {
		logger.WithError(err).Error("failed to load origin donation for cycle clone")
		return
	}
	if origin == nil {
		logger.Warn("no origin donation to clone for paid invoice")
		return
	}

	now := time.Now().UTC()
	clone := &entity.Donation{
		DonorName:             origin.DonorName,
		DonorEmail:            origin.DonorEmail,
		DonorPhone:            origin.DonorPhone,
		Company:               origin.Company,
		AmountCents:           origin.AmountCents,
		Kind:                  entity.DonationKindRecurring,
		PlayerHonoree:         origin.PlayerHonoree,
		Message:               origin.Message,
		Anonymous:             origin.Anonymous,
		CampaignID:            origin.CampaignID,
		EventTag:              origin.EventTag,
		StripePaymentIntentID: invoice.PaymentIntentID,
		StripeSubscriptionID:  origin.StripeSubscriptionID,
		PaymentStatus:         entity.PaymentStatusSucceeded,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.donationRepo.Create(ctx, clone); err != nil {
		if errors.Is(err, repository.ErrDonationAlreadyExists) {
			// Delivered twice; the first delivery already recorded the cycle.
			return
		}
		logger.WithError(err).Error("failed to record subscription cycle donation")
		return
	}

	s.notifyDonation(ctx, clone)
}

func (s *DonationService) handleInvoiceFailed(ctx context.Context, invoice *provider.EventInvoice) {
	if invoice == nil || invoice.SubscriptionID == "" {
		return
	}

	logger := s.logger.WithField("subscription_id", invoice.SubscriptionID)

	if invoice.PaymentIntentID != "" {
		donation, err := s.donationRepo.FindByPaymentIntentID(ctx, invoice.PaymentIntentID)
		if err != nil {
			logger.WithError(err).Error("failed to load donation for failed invoice")
		} else if donation != nil && donation.PaymentStatus == entity.PaymentStatusPending {
			donation.PaymentStatus = entity.PaymentStatusFailed
			donation.UpdatedAt = time.Now().UTC()
			if err := s.donationRepo.Update(ctx, donation); err != nil {
				logger.WithError(err).Error("failed to mark donation as failed")
			}
		}
	}

	s.refreshSubscriptionRecord(ctx, invoice.SubscriptionID, entity.SubscriptionStatusPastDue, time.Time{})
}

func (s *DonationService) handleSubscriptionDeleted(ctx context.Context, sub *provider.EventSubscription) {
	if sub == nil || sub.ID == "" {
		s.logger.Warn("customer.subscription.deleted event without a subscription")
		return
	}

	logger := s.logger.WithField("subscription_id", sub.ID)

	record, err := s.subscriptionRepo.FindByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		logger.WithError(err).Error("failed to load subscription record")
		return
	}
	if record == nil {
		logger.Warn("no subscription record for deleted subscription")
		return
	}

	if record.Status == entity.SubscriptionStatusCanceled {
		return
	}

	now := time.Now().UTC()
	record.Status = entity.SubscriptionStatusCanceled
	record.CanceledAt = &now
	record.UpdatedAt = now
	if err := s.subscriptionRepo.Update(ctx, record); err != nil {
		logger.WithError(err).Error("failed to mark subscription as canceled")
	}
}

func (s *DonationService) upsertSubscriptionRecord(ctx context.Context, donationID uint64, stripeSubscriptionID, stripeCustomerID, status string, periodEnd time.Time) {
	logger := s.logger.WithField("subscription_id", stripeSubscriptionID)

	record, err := s.subscriptionRepo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		logger.WithError(err).Error("failed to load subscription record")
		return
	}
	if record == nil {
		now := time.Now().UTC()
		record = &entity.Subscription{
			DonationID:           donationID,
			StripeSubscriptionID: stripeSubscriptionID,
			StripeCustomerID:     stripeCustomerID,
			Status:               status,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if !periodEnd.IsZero() {
			end := periodEnd
			record.CurrentPeriodEnd = &end
		}
		if err := s.subscriptionRepo.Create(ctx, record); err != nil && !errors.Is(err, repository.ErrSubscriptionAlreadyExists) {
			logger.WithError(err).Error("failed to create subscription record")
		}
		return
	}

	record.Status = status
	if !periodEnd.IsZero() {
		end := periodEnd
		record.CurrentPeriodEnd = &end
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.subscriptionRepo.Update(ctx, record); err != nil {
		logger.WithError(err).Error("failed to update subscription record")
	}
}

func (s *DonationService) refreshSubscriptionRecord(ctx context.Context, stripeSubscriptionID, status string, periodEnd time.Time) {
	logger := s.logger.WithField("subscription_id", stripeSubscriptionID)

	record, err := s.subscriptionRepo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		logger.WithError(err).Error("failed to load subscription record")
		return
	}
	if record == nil {
		logger.Warn("no subscription record to refresh")
		return
	}

	if record.Status == entity.SubscriptionStatusCanceled {
		return
	}

	record.Status = status
	if !periodEnd.IsZero() {
		end := periodEnd
		record.CurrentPeriodEnd = &end
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.subscriptionRepo.Update(ctx, record); err != nil {
		logger.WithError(err).Error("failed to refresh subscription record")
	}
}

func (s *DonationService) notifyDonation(ctx context.Context, donation *entity.Donation) {
	logger := s.logger.WithField("donation_id", donation.ID)

	if err := s.mailer.SendDonationReceipt(ctx, donation); err != nil {
		logger.WithError(err).Warn("failed to send donation receipt")
	}
	if err := s.mailer.SendAdminDonationAlert(ctx, donation); err != nil {
		logger.WithError(err).Warn("failed to send admin donation alert")
	}
}
