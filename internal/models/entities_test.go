package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTransitionsAndReleases(t *testing.T) {
	cases := []struct {
		status   PaymentStatus
		terminal bool
		releases bool
	}{
		{PaymentPending, false, false},
		{PaymentPaid, true, false},
		{PaymentFailed, true, true},
		{PaymentExpired, true, true},
		{PaymentCanceled, true, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.True(t, tc.status.Valid())
			assert.Equal(t, tc.terminal, tc.status.Terminal())
			assert.Equal(t, tc.releases, tc.status.ReleasesCapacity())
		})
	}

	assert.False(t, PaymentStatus("REFUNDED").Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestTierAvailable(t *testing.T) {
	tier := &TicketTier{
		Price:         decimal.RequireFromString("100.00"),
		Capacity:      100,
		CommittedSold: 37,
	}
	assert.Equal(t, 63, tier.Available())

	tier.CommittedSold = 100
	assert.Equal(t, 0, tier.Available())
}
