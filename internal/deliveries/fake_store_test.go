package deliveries

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solidariza/backend/internal/identifier"
	"github.com/solidariza/backend/internal/models"
)

// fakeStore keeps committed rows in memory. Delivery transactions stage their
// writes and publish them only when fn returns nil.
type fakeStore struct {
	mu            sync.Mutex
	orgs          map[uuid.UUID]*models.Organization
	products      map[uuid.UUID]*models.Product
	beneficiaries map[uuid.UUID]*models.Beneficiary
	links         map[[2]uuid.UUID]bool
	movements     []models.StockMovement
	distributions []models.Distribution
	events        []models.Event
	attendances   []models.Attendance

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	ensureEventErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:          map[uuid.UUID]*models.Organization{},
		products:      map[uuid.UUID]*models.Product{},
		beneficiaries: map[uuid.UUID]*models.Beneficiary{},
		links:         map[[2]uuid.UUID]bool{},
		locks:         map[string]*sync.Mutex{},
	}
}

func (f *fakeStore) addOrg(name string) *models.Organization {
	o := &models.Organization{ID: uuid.New(), Name: name, IsActive: true}
	f.orgs[o.ID] = o
	return o
}

func (f *fakeStore) addProduct(org *models.Organization, name string, stock int64) *models.Product {
	p := &models.Product{ID: uuid.New(), OrganizationID: org.ID, Name: name}
	f.products[p.ID] = p
	if stock > 0 {
		f.movements = append(f.movements, models.StockMovement{ID: uuid.New(), OrganizationID: org.ID, ProductID: p.ID, Kind: models.MovementIn, Quantity: stock})
	}
	return p
}

func (f *fakeStore) addBeneficiary(name, ident string, linkedTo ...*models.Organization) *models.Beneficiary {
	b := &models.Beneficiary{ID: uuid.New(), Name: name, Identifier: identifier.Normalize(ident), Active: true}
	f.beneficiaries[b.ID] = b
	for _, o := range linkedTo {
		f.links[[2]uuid.UUID{o.ID, b.ID}] = true
	}
	return b
}

func (f *fakeStore) stock(productID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return stockOf(f.movements, nil, productID)
}

func (f *fakeStore) counts() (movements, distributions, events, attendances int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.movements), len(f.distributions), len(f.events), len(f.attendances)
}

func (f *fakeStore) lockFor(key string) *sync.Mutex {
	f.locksMu.Lock()
	defer f.locksMu.Unlock()
	l, ok := f.locks[key]
	if !ok {
		l = &sync.Mutex{}
		f.locks[key] = l
	}
	return l
}

func (f *fakeStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orgs[id], nil
}

func (f *fakeStore) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id], nil
}

func (f *fakeStore) GetBeneficiary(_ context.Context, id uuid.UUID) (*models.Beneficiary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beneficiaries[id], nil
}

func (f *fakeStore) ListDistributions(_ context.Context, orgID uuid.UUID, _ int) ([]models.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.Distribution
	for _, d := range f.distributions {
		if d.OrganizationID == orgID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (f *fakeStore) ExistsForIdentifierInMonth(_ context.Context, raw string, period time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ident := identifier.Normalize(raw)
	for _, d := range f.distributions {
		b := f.beneficiaries[d.BeneficiaryID]
		if b != nil && b.Identifier == ident && d.PeriodMonth.Equal(period) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) WithinDeliveryTx(_ context.Context, beneficiaryID, productID uuid.UUID, fn func(DeliveryTx) error) error {
	pair := f.lockFor("pair:" + beneficiaryID.String() + ":" + productID.String())
	pair.Lock()
	defer pair.Unlock()

	tx := &fakeTx{store: f}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements = append(f.movements, tx.movements...)
	f.distributions = append(f.distributions, tx.distributions...)
	f.events = append(f.events, tx.events...)
	f.attendances = append(f.attendances, tx.attendances...)
	return nil
}

type fakeTx struct {
	store         *fakeStore
	held          []*sync.Mutex
	movements     []models.StockMovement
	distributions []models.Distribution
	events        []models.Event
	attendances   []models.Attendance
}

func (t *fakeTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (t *fakeTx) IsLinked(_ context.Context, orgID, beneficiaryID uuid.UUID) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.links[[2]uuid.UUID{orgID, beneficiaryID}], nil
}

func (t *fakeTx) LastDeliveredSince(_ context.Context, beneficiaryID, productID uuid.UUID, since time.Time) (*time.Time, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var last *time.Time
	for _, d := range append(append([]models.Distribution{}, t.store.distributions...), t.distributions...) {
		if d.BeneficiaryID == beneficiaryID && d.ProductID == productID && d.DeliveredAt.After(since) {
			at := d.DeliveredAt
			if last == nil || at.After(*last) {
				last = &at
			}
		}
	}
	return last, nil
}

func (t *fakeTx) LockProduct(_ context.Context, productID uuid.UUID) error {
	l := t.store.lockFor("product:" + productID.String())
	l.Lock()
	t.held = append(t.held, l)
	return nil
}

func (t *fakeTx) CurrentStock(_ context.Context, productID uuid.UUID) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return stockOf(t.store.movements, t.movements, productID), nil
}

func (t *fakeTx) InsertMovement(_ context.Context, m *models.StockMovement) error {
	m.ID = uuid.New()
	t.movements = append(t.movements, *m)
	return nil
}

func (t *fakeTx) InsertDistribution(_ context.Context, d *models.Distribution) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, other := range append(append([]models.Distribution{}, t.store.distributions...), t.distributions...) {
		if other.BeneficiaryID == d.BeneficiaryID && other.ProductID == d.ProductID && other.PeriodMonth.Equal(d.PeriodMonth) {
			return &models.ConstraintError{Constraint: "uniq_distribution_beneficiary_product_month"}
		}
	}
	d.ID = uuid.New()
	t.distributions = append(t.distributions, *d)
	return nil
}

func (t *fakeTx) EnsureEvent(_ context.Context, orgID uuid.UUID, name string, date time.Time) (*models.Event, error) {
	if t.store.ensureEventErr != nil {
		return nil, t.store.ensureEventErr
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, e := range append(append([]models.Event{}, t.store.events...), t.events...) {
		if e.OrganizationID == orgID && e.Name == name && e.Date.Equal(date) {
			return &e, nil
		}
	}
	e := models.Event{ID: uuid.New(), OrganizationID: orgID, Name: name, Date: date}
	t.events = append(t.events, e)
	return &e, nil
}

func (t *fakeTx) EnsureAttendance(_ context.Context, eventID, beneficiaryID uuid.UUID) (*models.Attendance, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, a := range append(append([]models.Attendance{}, t.store.attendances...), t.attendances...) {
		if a.EventID == eventID && a.BeneficiaryID == beneficiaryID {
			return &a, nil
		}
	}
	a := models.Attendance{ID: uuid.New(), EventID: eventID, BeneficiaryID: beneficiaryID, Present: true}
	t.attendances = append(t.attendances, a)
	return &a, nil
}

func stockOf(committed, staged []models.StockMovement, productID uuid.UUID) int64 {
	var total int64
	for _, list := range [][]models.StockMovement{committed, staged} {
		for _, m := range list {
			if m.ProductID != productID {
				continue
			}
			if m.Kind == models.MovementIn {
				total += m.Quantity
			} else {
				total -= m.Quantity
			}
		}
	}
	return total
}
