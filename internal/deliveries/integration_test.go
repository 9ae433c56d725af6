//go:build integration

package deliveries

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/membership"
	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/internal/organizations"
	"github.com/solidariza/backend/internal/stock"
	"github.com/solidariza/backend/pkg/database"
)

// Run with TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/deliveries/
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := database.NewPostgresPool(ctx, dsn, 20, zap.NewNop())
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

type pgFixture struct {
	pool    *pgxpool.Pool
	org     *models.Organization
	product *models.Product
	members *membership.Repository
	stock   *stock.Repository
}

func newPgFixture(t *testing.T, pool *pgxpool.Pool, initial int64) *pgFixture {
	t.Helper()
	ctx := context.Background()
	orgStore := organizations.NewPostgresStore(pool)
	org := &models.Organization{Name: "Org " + uuid.NewString()}
	require.NoError(t, orgStore.Create(ctx, org))
	t.Cleanup(func() { _, _ = orgStore.Delete(context.Background(), org.ID) })

	stockRepo := stock.NewRepository(pool)
	p := &models.Product{OrganizationID: org.ID, Name: "Basket"}
	require.NoError(t, stockRepo.CreateProduct(ctx, p))
	_, err := stockRepo.RecordMovement(ctx, org.ID, p, models.MovementIn, initial, "donation", nil)
	require.NoError(t, err)
	return &pgFixture{pool: pool, org: org, product: p, members: membership.NewRepository(pool), stock: stockRepo}
}

func (f *pgFixture) beneficiary(t *testing.T) *models.Beneficiary {
	t.Helper()
	ctx := context.Background()
	b := &models.Beneficiary{Name: "Beneficiary", Identifier: "PASSPORT-" + uuid.NewString()}
	require.NoError(t, f.members.CreateBeneficiary(ctx, b))
	_, err := f.members.LinkBeneficiary(ctx, f.org.ID, b.ID)
	require.NoError(t, err)
	return b
}

func TestPostgres_ConcurrentSamePairDeliversOnce(t *testing.T) {
	pool := testPool(t)
	f := newPgFixture(t, pool, 10)
	b := f.beneficiary(t)
	svc := NewService(NewPostgresStore(pool), 30*24*time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Deliver(context.Background(), DeliverCommand{
				OrganizationID: f.org.ID,
				BeneficiaryID:  b.ID,
				ProductID:      f.product.ID,
				PeriodMonth:    time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var recent *models.UniqueMonthlyDeliveryError
		assert.True(t, errors.As(err, &recent), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	stockNow, err := f.stock.CurrentStock(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stockNow)
}

func TestPostgres_StockNeverNegative(t *testing.T) {
	pool := testPool(t)
	f := newPgFixture(t, pool, 3)
	svc := NewService(NewPostgresStore(pool), 30*24*time.Hour)

	const callers = 10
	beneficiaries := make([]*models.Beneficiary, callers)
	for i := range beneficiaries {
		beneficiaries[i] = f.beneficiary(t)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered, short := 0, 0
	for _, b := range beneficiaries {
		wg.Add(1)
		go func(b *models.Beneficiary) {
			defer wg.Done()
			_, err := svc.Deliver(context.Background(), DeliverCommand{
				OrganizationID: f.org.ID,
				BeneficiaryID:  b.ID,
				ProductID:      f.product.ID,
				PeriodMonth:    time.Now().UTC(),
			})
			mu.Lock()
			defer mu.Unlock()
			var stockErr *models.StockError
			switch {
			case err == nil:
				delivered++
			case errors.As(err, &stockErr):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(b)
	}
	wg.Wait()

	assert.Equal(t, 3, delivered)
	assert.Equal(t, callers-3, short)
	stockNow, err := f.stock.CurrentStock(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stockNow)
}
