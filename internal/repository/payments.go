package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tixgate/internal/database"
	"tixgate/internal/models"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, external_ref, tier_id, buyer_id, quantity, amount,
	status, checkout_url, capacity_released, expires_at, created_at, paid_at, canceled_at`

func scanPayment(row interface{ Scan(...any) error }, p *models.Payment) error {
	return row.Scan(
		&p.ID,
		&p.ExternalRef,
		&p.TierID,
		&p.BuyerID,
		&p.Quantity,
		&p.Amount,
		&p.Status,
		&p.CheckoutURL,
		&p.CapacityReleased,
		&p.ExpiresAt,
		&p.CreatedAt,
		&p.PaidAt,
		&p.CanceledAt,
	)
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (external_ref, tier_id, buyer_id, quantity, amount, status, checkout_url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		payment.ExternalRef,
		payment.TierID,
		payment.BuyerID,
		payment.Quantity,
		payment.Amount,
		payment.Status,
		payment.CheckoutURL,
		payment.ExpiresAt,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return payment, err
}

func (r *PaymentRepository) GetByExternalRef(ctx context.Context, externalRef string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_ref = $1`

	err := scanPayment(r.db.QueryRowContext(ctx, query, externalRef), payment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return payment, err
}

// ListPendingExpired returns PENDING payments whose provider-side expiry has
// passed, for the background reconciliation sweep.
func (r *PaymentRepository) ListPendingExpired(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// Settle moves a PENDING payment to a terminal status and, for non-PAID
// outcomes, returns the reserved quantity to the tier — both in one
// transaction, so a crash between them cannot leave the counter and the
// status inconsistent. The conditional WHERE status = 'PENDING' makes the
// call idempotent: a replayed webhook or a concurrent delivery matches zero
// rows and reports applied=false with no side effects.
func (r *PaymentRepository) Settle(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	releases := status.ReleasesCapacity()

	var tierID string
	var quantity int
	query := `
		UPDATE payments
		SET status = $1,
		    paid_at = CASE WHEN $1 = 'PAID' THEN $2 ELSE paid_at END,
		    canceled_at = CASE WHEN $1 = 'CANCELED' THEN $2 ELSE canceled_at END,
		    capacity_released = capacity_released OR $3
		WHERE id = $4 AND status = 'PENDING'
		RETURNING tier_id, quantity`

	err = tx.QueryRowContext(ctx, query, status, at, releases, id).Scan(&tierID, &quantity)
	if err == sql.ErrNoRows {
		// Already terminal, nothing to do.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to settle payment: %w", err)
	}

	if releases {
		releaseQuery := `
			UPDATE ticket_tiers
			SET committed_sold = committed_sold - $1, updated_at = NOW()
			WHERE id = $2 AND committed_sold - $1 >= 0`

		result, err := tx.ExecContext(ctx, releaseQuery, quantity, tierID)
		if err != nil {
			return false, fmt.Errorf("failed to release capacity on settle: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}
		if affected == 0 {
			return false, fmt.Errorf("settle would drive tier %s counter negative", tierID)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
