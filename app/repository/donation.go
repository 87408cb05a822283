package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var (
	ErrDonationNotFound      = errors.New("donation not found")
	ErrDonationAlreadyExists = errors.New("donation already exists")
)

type DonationRepository struct {
	db DBTX
}

func NewDonationRepository(db DBTX) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, donation *entity.Donation) error {
	query := `
		INSERT INTO donations (
			donor_name, donor_email, donor_phone, company,
			amount_cents, kind,
			player_honoree, message, anonymous, campaign_id, event_tag,
			stripe_payment_intent_id, stripe_subscription_id,
			payment_status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.DonorName,
		donation.DonorEmail,
		nullableStringValue(donation.DonorPhone),
		nullableStringValue(donation.Company),
		donation.AmountCents,
		donation.Kind,
		nullableStringValue(donation.PlayerHonoree),
		nullableStringValue(donation.Message),
		donation.Anonymous,
		nullableStringValue(donation.CampaignID),
		nullableStringValue(donation.EventTag),
		emptyAsNull(donation.StripePaymentIntentID),
		nullableStringValue(donation.StripeSubscriptionID),
		donation.PaymentStatus,
		donation.CreatedAt,
		donation.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDonationAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	donation.ID = uint64(id)
	return nil
}

func (r *DonationRepository) Update(ctx context.Context, donation *entity.Donation) error {
	query := `
		UPDATE donations SET
			donor_name = ?,
			donor_email = ?,
			donor_phone = ?,
			company = ?,
			amount_cents = ?,
			kind = ?,
			player_honoree = ?,
			message = ?,
			anonymous = ?,
			campaign_id = ?,
			event_tag = ?,
			stripe_payment_intent_id = ?,
			stripe_subscription_id = ?,
			payment_status = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.DonorName,
		donation.DonorEmail,
		nullableStringValue(donation.DonorPhone),
		nullableStringValue(donation.Company),
		donation.AmountCents,
		donation.Kind,
		nullableStringValue(donation.PlayerHonoree),
		nullableStringValue(donation.Message),
		donation.Anonymous,
		nullableStringValue(donation.CampaignID),
		nullableStringValue(donation.EventTag),
		emptyAsNull(donation.StripePaymentIntentID),
		nullableStringValue(donation.StripeSubscriptionID),
		donation.PaymentStatus,
		donation.UpdatedAt,
		donation.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDonationNotFound
	}

	return nil
}

const donationColumns = `id, donor_name, donor_email, donor_phone, company,
		amount_cents, kind,
		player_honoree, message, anonymous, campaign_id, event_tag,
		stripe_payment_intent_id, stripe_subscription_id,
		payment_status,
		created_at, updated_at`

func (r *DonationRepository) FindByID(ctx context.Context, id uint64) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = ?`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, id), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

func (r *DonationRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE stripe_payment_intent_id = ? LIMIT 1`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, paymentIntentID), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

// FindOriginBySubscriptionID returns the first donation row created for a
// subscription, the one whose donor fields seed per-cycle recurring rows.
func (r *DonationRepository) FindOriginBySubscriptionID(ctx context.Context, subscriptionID string) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations
		WHERE stripe_subscription_id = ?
		ORDER BY id ASC
		LIMIT 1`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, subscriptionID), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

func (r *DonationRepository) ListPendingByEventTagPrefix(ctx context.Context, eventTagPrefix string, limit int32) ([]*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE payment_status = ?`
	args := []interface{}{entity.PaymentStatusPending}

	if strings.TrimSpace(eventTagPrefix) != "" {
		query += " AND event_tag LIKE ?"
		args = append(args, escapeLikePrefix(eventTagPrefix)+"%")
	}

	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := make([]*entity.Donation, 0)
	for rows.Next() {
		item := &entity.Donation{}
		if err := scanDonation(rows, item); err != nil {
			return nil, err
		}
		donations = append(donations, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return donations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(scan rowScanner, donation *entity.Donation) error {
	var donorPhone sql.NullString
	var company sql.NullString
	var playerHonoree sql.NullString
	var message sql.NullString
	var campaignID sql.NullString
	var eventTag sql.NullString
	var paymentIntentID sql.NullString
	var subscriptionID sql.NullString

	err := scan.Scan(
		&donation.ID,
		&donation.DonorName,
		&donation.DonorEmail,
		&donorPhone,
		&company,
		&donation.AmountCents,
		&donation.Kind,
		&playerHonoree,
		&message,
		&donation.Anonymous,
		&campaignID,
		&eventTag,
		&paymentIntentID,
		&subscriptionID,
		&donation.PaymentStatus,
		&donation.CreatedAt,
		&donation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	donation.DonorPhone = stringPtrFromNull(donorPhone)
	donation.Company = stringPtrFromNull(company)
	donation.PlayerHonoree = stringPtrFromNull(playerHonoree)
	donation.Message = stringPtrFromNull(message)
	donation.CampaignID = stringPtrFromNull(campaignID)
	donation.EventTag = stringPtrFromNull(eventTag)
	donation.StripePaymentIntentID = stringFromNull(paymentIntentID)
	donation.StripeSubscriptionID = stringPtrFromNull(subscriptionID)

	return nil
}

func escapeLikePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix)
}
