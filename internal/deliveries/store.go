package deliveries

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solidariza/backend/internal/events"
	"github.com/solidariza/backend/internal/membership"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/internal/organizations"
	"github.com/solidariza/backend/internal/stock"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool          *pgxpool.Pool
	orgs          *organizations.Repository
	products      *stock.Repository
	beneficiaries *membership.Repository
	distributions *Repository
}

// NewPostgresStore creates the delivery store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:          pool,
		orgs:          organizations.NewRepository(pool),
		products:      stock.NewRepository(pool),
		beneficiaries: membership.NewRepository(pool),
		distributions: NewRepository(pool),
	}
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *PostgresStore) GetBeneficiary(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error) {
	return s.beneficiaries.GetBeneficiary(ctx, id)
}

func (s *PostgresStore) ListDistributions(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Distribution, error) {
	return s.distributions.ListForOrganization(ctx, orgID, limit)
}

func (s *PostgresStore) ExistsForIdentifierInMonth(ctx context.Context, identifier string, period time.Time) (bool, error) {
	return s.distributions.ExistsForIdentifierInMonth(ctx, identifier, period)
}

// WithinDeliveryTx begins a read-committed transaction, takes the pair's
// advisory lock and runs fn. Any error from fn rolls everything back.
func (s *PostgresStore) WithinDeliveryTx(ctx context.Context, beneficiaryID, productID uuid.UUID, fn func(DeliveryTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		dtx := &pgDeliveryTx{
			products:      stock.NewRepository(tx),
			beneficiaries: membership.NewRepository(tx),
			events:        events.NewRepository(tx),
			distributions: NewRepository(tx),
		}
		if err := dtx.distributions.LockPair(ctx, beneficiaryID, productID); err != nil {
			return fmt.Errorf("lock delivery pair: %w", err)
		}
		return fn(dtx)
	})
}

// pgDeliveryTx binds the repositories to one transaction.
type pgDeliveryTx struct {
	products      *stock.Repository
	beneficiaries *membership.Repository
	events        *events.Repository
	distributions *Repository
}

func (t *pgDeliveryTx) IsLinked(ctx context.Context, orgID, beneficiaryID uuid.UUID) (bool, error) {
	return t.beneficiaries.IsLinked(ctx, orgID, beneficiaryID)
}

func (t *pgDeliveryTx) LastDeliveredSince(ctx context.Context, beneficiaryID, productID uuid.UUID, since time.Time) (*time.Time, error) {
	return t.distributions.LastDeliveredSince(ctx, beneficiaryID, productID, since)
}

func (t *pgDeliveryTx) LockProduct(ctx context.Context, productID uuid.UUID) error {
	return t.products.LockProduct(ctx, productID)
}

func (t *pgDeliveryTx) CurrentStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	return t.products.CurrentStock(ctx, productID)
}

func (t *pgDeliveryTx) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	return t.products.InsertMovement(ctx, m)
}

func (t *pgDeliveryTx) InsertDistribution(ctx context.Context, d *models.Distribution) error {
	return t.distributions.Insert(ctx, d)
}

func (t *pgDeliveryTx) EnsureEvent(ctx context.Context, orgID uuid.UUID, name string, date time.Time) (*models.Event, error) {
	e, err := t.events.EnsureEvent(ctx, orgID, name, date)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event %s on %s vanished after insert", name, date.Format(models.PeriodLayout))
	}
	return e, nil
}

func (t *pgDeliveryTx) EnsureAttendance(ctx context.Context, eventID, beneficiaryID uuid.UUID) (*models.Attendance, error) {
	return t.events.EnsureAttendance(ctx, eventID, beneficiaryID)
}
