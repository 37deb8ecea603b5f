package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "tixgate/internal/errors"
	"tixgate/internal/external"
	"tixgate/internal/models"

	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// memStore implements TierStore and PaymentStore in memory with the same
// atomicity contract as the postgres repositories: reserve is a single
// guarded mutation, settle flips status and releases capacity under one
// lock.
type memStore struct {
	mu       sync.Mutex
	tiers    map[string]*models.TicketTier
	payments map[string]*models.Payment
	nextID   int

	failRelease int // fail this many ReleaseCapacity calls, then succeed
}

func newMemStore() *memStore {
	return &memStore{
		tiers:    make(map[string]*models.TicketTier),
		payments: make(map[string]*models.Payment),
	}
}

func (m *memStore) addTier(capacity int, price string) *models.TicketTier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tier := &models.TicketTier{
		ID:       fmt.Sprintf("tier-%d", m.nextID),
		EventID:  1,
		Name:     "GA",
		Price:    mustDecimal(price),
		Capacity: capacity,
	}
	m.tiers[tier.ID] = tier
	return tier
}

func (m *memStore) tierSold(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[id].CommittedSold
}

func (m *memStore) Create(ctx context.Context, tier *models.TicketTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tier.ID = fmt.Sprintf("tier-%d", m.nextID)
	tier.CreatedAt = time.Now()
	m.tiers[tier.ID] = tier
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier, ok := m.tiers[id]
	if !ok {
		return nil, nil
	}
	copied := *tier
	return &copied, nil
}

func (m *memStore) GetByEventID(ctx context.Context, eventID int64) ([]models.TicketTier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TicketTier
	for _, tier := range m.tiers {
		if tier.EventID == eventID {
			out = append(out, *tier)
		}
	}
	return out, nil
}

func (m *memStore) ReserveCapacity(ctx context.Context, tierID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier, ok := m.tiers[tierID]
	if !ok {
		return fmt.Errorf("tier %s: %w", tierID, errs.ErrNotFound)
	}
	if tier.CommittedSold+quantity > tier.Capacity {
		return fmt.Errorf("tier %s: %w", tierID, errs.ErrInsufficientCapacity)
	}
	tier.CommittedSold += quantity
	return nil
}

func (m *memStore) ReleaseCapacity(ctx context.Context, tierID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRelease > 0 {
		m.failRelease--
		return fmt.Errorf("simulated storage outage")
	}
	tier, ok := m.tiers[tierID]
	if !ok {
		return fmt.Errorf("tier %s: %w", tierID, errs.ErrNotFound)
	}
	tier.CommittedSold -= quantity
	return nil
}

// PaymentStore

func (m *memStore) CreatePayment(payment *models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *memStore) createPayment(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	payment.ID = fmt.Sprintf("pay-%d", m.nextID)
	payment.CreatedAt = time.Now()
	copied := *payment
	m.payments[payment.ID] = &copied
	return nil
}

func (m *memStore) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	copied := *payment
	return &copied, nil
}

func (m *memStore) GetByExternalRef(ctx context.Context, externalRef string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.ExternalRef == externalRef {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListPendingExpired(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, payment := range m.payments {
		if payment.Status == models.PaymentPending && payment.ExpiresAt != nil && payment.ExpiresAt.Before(before) {
			out = append(out, *payment)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) Settle(ctx context.Context, id string, status models.PaymentStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok || payment.Status != models.PaymentPending {
		return false, nil
	}

	payment.Status = status
	switch status {
	case models.PaymentPaid:
		payment.PaidAt = &at
	case models.PaymentCanceled:
		payment.CanceledAt = &at
	}

	if status.ReleasesCapacity() && !payment.CapacityReleased {
		payment.CapacityReleased = true
		if tier, ok := m.tiers[payment.TierID]; ok {
			tier.CommittedSold -= payment.Quantity
		}
	}
	return true, nil
}

// paymentStoreAdapter renames the methods that collide between the two
// interfaces on memStore.
type paymentStoreAdapter struct{ *memStore }

func (a paymentStoreAdapter) Create(ctx context.Context, payment *models.Payment) error {
	return a.createPayment(ctx, payment)
}

func (a paymentStoreAdapter) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return a.GetPaymentByID(ctx, id)
}

// fakeProvider scripts the external gateway.
type fakeProvider struct {
	mu          sync.Mutex
	createCalls int
	cancelCalls []string
	failCreate  error
	statuses    map[string]string // externalRef -> provider status
	orders      map[string]string // orderID -> externalRef
	missing     map[string]bool   // externalRef unknown to the provider
	outage      bool              // status fetches fail with a transient error
	nextRef     int
	expiresAt   string

	// The init registers on the provider side but the response is lost.
	createTimesOutAfterRegister bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		statuses: make(map[string]string),
		orders:   make(map[string]string),
		missing:  make(map[string]bool),
	}
}

func (f *fakeProvider) CreatePayment(ctx context.Context, amount int64, orderID, currency, description, successURL, failURL, notificationURL string, metadata map[string]string) (*external.PaymentInitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextRef++
	ref := fmt.Sprintf("ext-%d", f.nextRef)
	f.statuses[ref] = external.ProviderStatusNew
	f.orders[orderID] = ref
	if f.createTimesOutAfterRegister {
		return nil, fmt.Errorf("%w: response lost", errs.ErrProviderUnavailable)
	}
	return &external.PaymentInitResponse{
		Success:    true,
		PaymentID:  ref,
		OrderID:    orderID,
		Status:     external.ProviderStatusNew,
		Amount:     amount,
		Currency:   currency,
		PaymentURL: "https://gateway.test/checkout/" + ref,
		ExpiresAt:  f.expiresAt,
	}, nil
}

func (f *fakeProvider) GetPayment(ctx context.Context, paymentID string) (*external.PaymentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outage {
		return nil, fmt.Errorf("%w: gateway timeout", errs.ErrProviderUnavailable)
	}
	if f.missing[paymentID] {
		return nil, fmt.Errorf("%w: provider has no payment %s", errs.ErrNotFound, paymentID)
	}
	status, ok := f.statuses[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: provider has no payment %s", errs.ErrNotFound, paymentID)
	}
	return &external.PaymentDetails{PaymentID: paymentID, Status: status}, nil
}

func (f *fakeProvider) FindByOrderID(ctx context.Context, orderID string) (*external.PaymentDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outage {
		return nil, fmt.Errorf("%w: gateway timeout", errs.ErrProviderUnavailable)
	}
	ref, ok := f.orders[orderID]
	if !ok || f.missing[ref] {
		return nil, fmt.Errorf("%w: provider has no payment for order %s", errs.ErrNotFound, orderID)
	}
	return &external.PaymentDetails{PaymentID: ref, OrderID: orderID, Status: f.statuses[ref]}, nil
}

func (f *fakeProvider) CancelPayment(ctx context.Context, paymentID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, paymentID)
	f.statuses[paymentID] = external.ProviderStatusCancelled
	return nil
}

func (f *fakeProvider) canceled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancelCalls))
	copy(out, f.cancelCalls)
	return out
}

func (f *fakeProvider) setStatus(ref, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[ref] = status
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(subject string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

func newTestServices(store *memStore, provider *fakeProvider, publisher *fakePublisher) *Services {
	cfg := Config{
		Currency:        "KZT",
		SuccessURL:      "http://localhost/api/payments/success",
		FailURL:         "http://localhost/api/payments/fail",
		NotificationURL: "http://localhost/api/payments/notifications",
		SweepBatchSize:  100,
	}
	return NewServices(store, paymentStoreAdapter{store}, provider, publisher, cfg)
}
