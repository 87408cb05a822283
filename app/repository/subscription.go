package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
)

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			donation_id, stripe_subscription_id, stripe_customer_id,
			status, current_period_end, canceled_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.DonationID,
		subscription.StripeSubscriptionID,
		subscription.StripeCustomerID,
		subscription.Status,
		nullableTimeValue(subscription.CurrentPeriodEnd),
		nullableTimeValue(subscription.CanceledAt),
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		UPDATE subscriptions SET
			donation_id = ?,
			stripe_customer_id = ?,
			status = ?,
			current_period_end = ?,
			canceled_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.DonationID,
		subscription.StripeCustomerID,
		subscription.Status,
		nullableTimeValue(subscription.CurrentPeriodEnd),
		nullableTimeValue(subscription.CanceledAt),
		subscription.UpdatedAt,
		subscription.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*entity.Subscription, error) {
	query := `
		SELECT id, donation_id, stripe_subscription_id, stripe_customer_id,
			status, current_period_end, canceled_at,
			created_at, updated_at
		FROM subscriptions
		WHERE stripe_subscription_id = ?
		LIMIT 1
	`

	subscription := &entity.Subscription{}
	var currentPeriodEnd sql.NullTime
	var canceledAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, stripeSubscriptionID).Scan(
		&subscription.ID,
		&subscription.DonationID,
		&subscription.StripeSubscriptionID,
		&subscription.StripeCustomerID,
		&subscription.Status,
		&currentPeriodEnd,
		&canceledAt,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	subscription.CurrentPeriodEnd = timePtrFromNull(currentPeriodEnd)
	subscription.CanceledAt = timePtrFromNull(canceledAt)

	return subscription, nil
}
