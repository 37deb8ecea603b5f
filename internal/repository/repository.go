package repository

import (
	"tixgate/internal/database"
)

type Repositories struct {
	Tiers    *TierRepository
	Payments *PaymentRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tiers:    NewTierRepository(db),
		Payments: NewPaymentRepository(db),
	}
}
