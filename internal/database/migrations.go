package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTicketTiersTable,
		createPaymentsTable,
		createPaymentsExternalRefIndex,
		createPaymentsPendingExpiryIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTicketTiersTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS ticket_tiers (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    event_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    price DECIMAL(12,2) NOT NULL,
    capacity INTEGER NOT NULL,
    committed_sold INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (price >= 0),
    CHECK (capacity > 0),
    CHECK (committed_sold >= 0 AND committed_sold <= capacity)
);`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    external_ref VARCHAR(255) UNIQUE NOT NULL,
    tier_id UUID NOT NULL REFERENCES ticket_tiers(id),
    buyer_id VARCHAR(255) NOT NULL,
    quantity INTEGER NOT NULL,
    amount DECIMAL(12,2) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    checkout_url TEXT NOT NULL DEFAULT '',
    capacity_released BOOLEAN NOT NULL DEFAULT FALSE,
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    paid_at TIMESTAMP,
    canceled_at TIMESTAMP,

    CHECK (quantity > 0),
    CHECK (status IN ('PENDING', 'PAID', 'FAILED', 'EXPIRED', 'CANCELED'))
);`

const createPaymentsExternalRefIndex = `
CREATE INDEX IF NOT EXISTS payments_external_ref_idx
ON payments (external_ref);`

const createPaymentsPendingExpiryIndex = `
CREATE INDEX IF NOT EXISTS payments_pending_expiry_idx
ON payments (expires_at) WHERE status = 'PENDING';`
