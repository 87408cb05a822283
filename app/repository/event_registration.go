package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var (
	ErrRegistrationNotFound      = errors.New("event registration not found")
	ErrRegistrationAlreadyExists = errors.New("event registration already exists")
)

type EventRegistrationRepository struct {
	db DBTX
}

func NewEventRegistrationRepository(db DBTX) *EventRegistrationRepository {
	return &EventRegistrationRepository{db: db}
}

func (r *EventRegistrationRepository) Create(ctx context.Context, registration *entity.EventRegistration) error {
	addonsJSON, err := serializeAddons(registration.Addons)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO event_registrations (
			event_name, event_date,
			contact_name, contact_email, contact_phone,
			package_name, package_price_cents, addons_json,
			donation_cents, subtotal_cents, total_cents,
			event_tag, stripe_payment_intent_id, payment_status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		registration.EventName,
		registration.EventDate,
		registration.ContactName,
		registration.ContactEmail,
		nullableStringValue(registration.ContactPhone),
		registration.PackageName,
		registration.PackagePriceCents,
		addonsJSON,
		registration.DonationCents,
		registration.SubtotalCents,
		registration.TotalCents,
		nullableStringValue(registration.EventTag),
		emptyAsNull(registration.StripePaymentIntentID),
		registration.PaymentStatus,
		registration.CreatedAt,
		registration.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRegistrationAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	registration.ID = uint64(id)
	return nil
}

func (r *EventRegistrationRepository) Update(ctx context.Context, registration *entity.EventRegistration) error {
	addonsJSON, err := serializeAddons(registration.Addons)
	if err != nil {
		return err
	}

	query := `
		UPDATE event_registrations SET
			event_name = ?,
			event_date = ?,
			contact_name = ?,
			contact_email = ?,
			contact_phone = ?,
			package_name = ?,
			package_price_cents = ?,
			addons_json = ?,
			donation_cents = ?,
			subtotal_cents = ?,
			total_cents = ?,
			event_tag = ?,
			stripe_payment_intent_id = ?,
			payment_status = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		registration.EventName,
		registration.EventDate,
		registration.ContactName,
		registration.ContactEmail,
		nullableStringValue(registration.ContactPhone),
		registration.PackageName,
		registration.PackagePriceCents,
		addonsJSON,
		registration.DonationCents,
		registration.SubtotalCents,
		registration.TotalCents,
		nullableStringValue(registration.EventTag),
		emptyAsNull(registration.StripePaymentIntentID),
		registration.PaymentStatus,
		registration.UpdatedAt,
		registration.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRegistrationNotFound
	}

	return nil
}

func (r *EventRegistrationRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.EventRegistration, error) {
	query := `
		SELECT id, event_name, event_date,
			contact_name, contact_email, contact_phone,
			package_name, package_price_cents, addons_json,
			donation_cents, subtotal_cents, total_cents,
			event_tag, stripe_payment_intent_id, payment_status,
			created_at, updated_at
		FROM event_registrations
		WHERE stripe_payment_intent_id = ?
		LIMIT 1
	`

	registration := &entity.EventRegistration{}
	var contactPhone sql.NullString
	var eventTag sql.NullString
	var paymentIntentIDCol sql.NullString
	var addonsJSON string

	err := r.db.QueryRowContext(ctx, query, paymentIntentID).Scan(
		&registration.ID,
		&registration.EventName,
		&registration.EventDate,
		&registration.ContactName,
		&registration.ContactEmail,
		&contactPhone,
		&registration.PackageName,
		&registration.PackagePriceCents,
		&addonsJSON,
		&registration.DonationCents,
		&registration.SubtotalCents,
		&registration.TotalCents,
		&eventTag,
		&paymentIntentIDCol,
		&registration.PaymentStatus,
		&registration.CreatedAt,
		&registration.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	registration.ContactPhone = stringPtrFromNull(contactPhone)
	registration.EventTag = stringPtrFromNull(eventTag)
	registration.StripePaymentIntentID = stringFromNull(paymentIntentIDCol)

	addons, err := parseAddons(addonsJSON)
	if err != nil {
		return nil, err
	}
	registration.Addons = addons

	return registration, nil
}
