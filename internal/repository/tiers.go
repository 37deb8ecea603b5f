package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tixgate/internal/database"
	errs "tixgate/internal/errors"
	"tixgate/internal/models"
)

type TierRepository struct {
	db *database.DB
}

func NewTierRepository(db *database.DB) *TierRepository {
	return &TierRepository{db: db}
}

func (r *TierRepository) Create(ctx context.Context, tier *models.TicketTier) error {
	query := `
		INSERT INTO ticket_tiers (event_id, name, price, capacity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, committed_sold, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		tier.EventID, tier.Name, tier.Price, tier.Capacity,
	).Scan(&tier.ID, &tier.CommittedSold, &tier.CreatedAt, &tier.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tier: %w", err)
	}
	return nil
}

func (r *TierRepository) GetByID(ctx context.Context, id string) (*models.TicketTier, error) {
	tier := &models.TicketTier{}
	query := `
		SELECT id, event_id, name, price, capacity, committed_sold, created_at, updated_at
		FROM ticket_tiers
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tier.ID,
		&tier.EventID,
		&tier.Name,
		&tier.Price,
		&tier.Capacity,
		&tier.CommittedSold,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return tier, err
}

func (r *TierRepository) GetByEventID(ctx context.Context, eventID int64) ([]models.TicketTier, error) {
	query := `
		SELECT id, event_id, name, price, capacity, committed_sold, created_at, updated_at
		FROM ticket_tiers
		WHERE event_id = $1
		ORDER BY price, name`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.TicketTier
	for rows.Next() {
		var tier models.TicketTier
		err := rows.Scan(
			&tier.ID,
			&tier.EventID,
			&tier.Name,
			&tier.Price,
			&tier.Capacity,
			&tier.CommittedSold,
			&tier.CreatedAt,
			&tier.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	return tiers, rows.Err()
}

// ReserveCapacity counts quantity against the tier in one conditional
// update. The capacity check and the increment are a single statement, so
// two concurrent purchases racing for the last seats cannot both win.
func (r *TierRepository) ReserveCapacity(ctx context.Context, tierID string, quantity int) error {
	query := `
		UPDATE ticket_tiers
		SET committed_sold = committed_sold + $1, updated_at = NOW()
		WHERE id = $2 AND committed_sold + $1 <= capacity`

	result, err := r.db.ExecContext(ctx, query, quantity, tierID)
	if err != nil {
		return fmt.Errorf("failed to reserve capacity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// The guarded update matched nothing: either the tier is full or it does
	// not exist. Only the error classification needs the follow-up read.
	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ticket_tiers WHERE id = $1)`, tierID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("tier %s: %w", tierID, errs.ErrNotFound)
	}
	return fmt.Errorf("tier %s: %w", tierID, errs.ErrInsufficientCapacity)
}

// ReleaseCapacity hands quantity back to the tier. Used by the compensation
// path when the provider call fails after a successful reserve; terminal
// settlement releases go through PaymentRepository.Settle instead so the
// decrement commits atomically with the status flip.
func (r *TierRepository) ReleaseCapacity(ctx context.Context, tierID string, quantity int) error {
	query := `
		UPDATE ticket_tiers
		SET committed_sold = committed_sold - $1, updated_at = NOW()
		WHERE id = $2 AND committed_sold - $1 >= 0`

	result, err := r.db.ExecContext(ctx, query, quantity, tierID)
	if err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("tier %s: %w", tierID, errs.ErrNotFound)
	}
	return nil
}
