// Package deliveries hands out baskets: one unit of a product to one
// beneficiary per month, with stock, attendance and tenant checks applied in
// a single transaction.
package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solidariza/backend/internal/models"
	"github.com/solidariza/backend/pkg/logger"
	"github.com/solidariza/backend/pkg/metrics"
)

// Store is the persistence the delivery service needs.
type Store interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBeneficiary(ctx context.Context, id uuid.UUID) (*models.Beneficiary, error)
	// WithinDeliveryTx runs fn in one transaction that holds an exclusive
	// lock on the (beneficiary, product) pair. The transaction commits only
	// if fn returns nil.
	WithinDeliveryTx(ctx context.Context, beneficiaryID, productID uuid.UUID, fn func(DeliveryTx) error) error
	ListDistributions(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Distribution, error)
	ExistsForIdentifierInMonth(ctx context.Context, identifier string, period time.Time) (bool, error)
}

// DeliveryTx is the transactional view used while delivering.
type DeliveryTx interface {
	IsLinked(ctx context.Context, orgID, beneficiaryID uuid.UUID) (bool, error)
	LastDeliveredSince(ctx context.Context, beneficiaryID, productID uuid.UUID, since time.Time) (*time.Time, error)
	LockProduct(ctx context.Context, productID uuid.UUID) error
	CurrentStock(ctx context.Context, productID uuid.UUID) (int64, error)
	InsertMovement(ctx context.Context, m *models.StockMovement) error
	InsertDistribution(ctx context.Context, d *models.Distribution) error
	EnsureEvent(ctx context.Context, orgID uuid.UUID, name string, date time.Time) (*models.Event, error)
	EnsureAttendance(ctx context.Context, eventID, beneficiaryID uuid.UUID) (*models.Attendance, error)
}

// DeliverRequest is one basket delivery with resolved entities.
type DeliverRequest struct {
	Organization *models.Organization
	Beneficiary  *models.Beneficiary
	Product      *models.Product
	PeriodMonth  time.Time
	ActorID      *uuid.UUID
}

// DeliverCommand is a delivery addressed by IDs.
type DeliverCommand struct {
	OrganizationID uuid.UUID
	BeneficiaryID  uuid.UUID
	ProductID      uuid.UUID
	PeriodMonth    time.Time
	ActorID        *uuid.UUID
}

// Service coordinates basket deliveries.
type Service struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewService creates a delivery service. window is how long a beneficiary
// must wait before receiving the same product again.
func NewService(store Store, window time.Duration) *Service {
	return &Service{store: store, window: window, now: time.Now}
}

// Deliver resolves the command's entities and delivers the basket.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) (*models.Distribution, error) {
	org, err := s.store.GetOrganization(ctx, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, models.NewValidationError("organization not found")
	}
	product, err := s.store.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, models.NewValidationError("product not found")
	}
	beneficiary, err := s.store.GetBeneficiary(ctx, cmd.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	if beneficiary == nil {
		return nil, models.NewValidationError("beneficiary not found")
	}
	return s.DeliverBasket(ctx, DeliverRequest{
		Organization: org,
		Beneficiary:  beneficiary,
		Product:      product,
		PeriodMonth:  cmd.PeriodMonth,
		ActorID:      cmd.ActorID,
	})
}

// DeliverBasket hands one unit of the product to the beneficiary for the
// month containing PeriodMonth. It either writes the stock movement, the
// distribution and the attendance together or writes nothing.
func (s *Service) DeliverBasket(ctx context.Context, req DeliverRequest) (d *models.Distribution, err error) {
	log := logger.FromContext(ctx)
	defer func() {
		outcome := outcomeOf(err)
		metrics.DeliveryOutcomes.WithLabelValues(outcome).Inc()
		if err != nil && outcome == "error" {
			log.Error("basket delivery failed", zap.Error(err))
		}
	}()

	org, product, beneficiary := req.Organization, req.Product, req.Beneficiary
	if org == nil || product == nil || beneficiary == nil {
		return nil, models.NewValidationError("organization, beneficiary and product are required")
	}
	if !org.IsActive {
		return nil, models.NewValidationError("organization is inactive")
	}
	if product.OrganizationID != org.ID {
		return nil, models.NewValidationError("product belongs to another organization")
	}
	period := models.MonthStart(req.PeriodMonth)

	err = s.store.WithinDeliveryTx(ctx, beneficiary.ID, product.ID, func(tx DeliveryTx) error {
		linked, err := tx.IsLinked(ctx, org.ID, beneficiary.ID)
		if err != nil {
			return err
		}
		if !linked {
			return models.NewValidationError("beneficiary not linked to this organization")
		}

		now := s.now()
		last, err := tx.LastDeliveredSince(ctx, beneficiary.ID, product.ID, now.Add(-s.window))
		if err != nil {
			return err
		}
		if last != nil {
			return &models.UniqueMonthlyDeliveryError{
				Msg: fmt.Sprintf("beneficiary already received this product in the last %d days", int(s.window.Hours()/24)),
			}
		}

		if err := tx.LockProduct(ctx, product.ID); err != nil {
			return err
		}
		stock, err := tx.CurrentStock(ctx, product.ID)
		if err != nil {
			return err
		}
		if stock < 1 {
			return &models.StockError{Msg: "insufficient stock"}
		}

		if err := tx.InsertMovement(ctx, &models.StockMovement{
			OrganizationID: org.ID,
			ProductID:      product.ID,
			Kind:           models.MovementOut,
			Quantity:       1,
			Reason:         "Distribution " + period.Format("2006-01"),
			CreatedBy:      req.ActorID,
		}); err != nil {
			return err
		}

		dist := &models.Distribution{
			OrganizationID: org.ID,
			BeneficiaryID:  beneficiary.ID,
			ProductID:      product.ID,
			PeriodMonth:    period,
			DeliveredBy:    req.ActorID,
			DeliveredAt:    now,
		}
		if err := tx.InsertDistribution(ctx, dist); err != nil {
			return err
		}

		event, err := tx.EnsureEvent(ctx, org.ID, models.DistributionEventName, period)
		if err != nil {
			return err
		}
		if _, err := tx.EnsureAttendance(ctx, event.ID, beneficiary.ID); err != nil {
			return err
		}
		d = dist
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("basket delivered",
		zap.String("distribution_id", d.ID.String()),
		zap.String("beneficiary_id", beneficiary.ID.String()),
		zap.String("product_id", product.ID.String()),
		zap.String("period_month", period.Format(models.PeriodLayout)),
	)
	return d, nil
}

// CheckByIdentifier reports whether anyone with this identifier received any
// product in the month. It ignores products and the rolling window.
func (s *Service) CheckByIdentifier(ctx context.Context, identifier string, period time.Time) (bool, error) {
	return s.store.ExistsForIdentifierInMonth(ctx, identifier, models.MonthStart(period))
}

// List returns the organization's latest distributions.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit int) ([]models.Distribution, error) {
	return s.store.ListDistributions(ctx, orgID, limit)
}

func outcomeOf(err error) string {
	var (
		ve *models.ValidationError
		ue *models.UniqueMonthlyDeliveryError
		se *models.StockError
		ce *models.ConstraintError
	)
	switch {
	case err == nil:
		return "delivered"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ue):
		return "recent_delivery"
	case errors.As(err, &se):
		return "insufficient_stock"
	case errors.As(err, &ce):
		return "constraint"
	}
	return "error"
}
