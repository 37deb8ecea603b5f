package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tixgate/internal/database"
	errs "tixgate/internal/errors"
	"tixgate/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repositories, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepositories(&database.DB{DB: db}), mock
}

func TestReserveCapacitySingleStatement(t *testing.T) {
	repos, mock := newMockRepo(t)

	// The guard and the increment are one UPDATE; no SELECT precedes it.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ticket_tiers")).
		WithArgs(3, "tier-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repos.Tiers.ReserveCapacity(context.Background(), "tier-1", 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveCapacityFullTier(t *testing.T) {
	repos, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ticket_tiers")).
		WithArgs(3, "tier-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("tier-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repos.Tiers.ReserveCapacity(context.Background(), "tier-1", 3)
	assert.ErrorIs(t, err, errs.ErrInsufficientCapacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveCapacityUnknownTier(t *testing.T) {
	repos, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ticket_tiers")).
		WithArgs(1, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repos.Tiers.ReserveCapacity(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseCapacityGuardsAgainstNegative(t *testing.T) {
	repos, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ticket_tiers")).
		WithArgs(5, "tier-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Tiers.ReleaseCapacity(context.Background(), "tier-1", 5)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTierGetByIDNotFound(t *testing.T) {
	repos, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, name, price, capacity, committed_sold")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tier, err := repos.Tiers.GetByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTierCreateReturnsGeneratedFields(t *testing.T) {
	repos, mock := newMockRepo(t)

	tier := &models.TicketTier{
		EventID:  42,
		Name:     "VIP",
		Price:    decimal.RequireFromString("500.00"),
		Capacity: 20,
	}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO ticket_tiers")).
		WithArgs(int64(42), "VIP", tier.Price, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "committed_sold", "created_at", "updated_at"}).
			AddRow("tier-7", 0, now, now))

	err := repos.Tiers.Create(context.Background(), tier)
	require.NoError(t, err)
	assert.Equal(t, "tier-7", tier.ID)
	assert.Equal(t, 0, tier.CommittedSold)
	assert.NoError(t, mock.ExpectationsWereMet())
}
