package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// waterfallOrder loads installments in payment application order
func waterfallOrder(db *gorm.DB) *gorm.DB {
	return db.Order("due_date ASC, installment_number ASC")
}

// GormPaymentPlanRepository implements settlement.PaymentPlanRepository using GORM
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewGormPaymentPlanRepository creates a new GormPaymentPlanRepository
func NewGormPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// FindByID loads a plan with its installments in waterfall order
func (r *GormPaymentPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.PaymentPlan, error) {
	var model models.PaymentPlanModel
	if err := r.db.WithContext(ctx).
		Preload("Installments", waterfallOrder).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate additionally locks the plan row for the transaction
func (r *GormPaymentPlanRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*settlement.PaymentPlan, error) {
	var model models.PaymentPlanModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	// Preload cannot ride on the locked query; load installments second.
	if err := waterfallOrder(r.db.WithContext(ctx)).
		Where("payment_plan_id = ?", id).
		Find(&model.Installments).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByInvoice returns the invoice's plan still accepting payments
func (r *GormPaymentPlanRepository) FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*settlement.PaymentPlan, error) {
	var model models.PaymentPlanModel
	if err := r.db.WithContext(ctx).
		Preload("Installments", waterfallOrder).
		Where("invoice_id = ? AND status IN ?", invoiceID, []settlement.PlanStatus{
			settlement.PlanStatusPending, settlement.PlanStatusPartial, settlement.PlanStatusOverdue,
		}).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists every plan of an invoice
func (r *GormPaymentPlanRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]settlement.PaymentPlan, error) {
	var planModels []models.PaymentPlanModel
	if err := r.db.WithContext(ctx).
		Preload("Installments", waterfallOrder).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&planModels).Error; err != nil {
		return nil, err
	}
	plans := make([]settlement.PaymentPlan, len(planModels))
	for i := range planModels {
		plans[i] = *planModels[i].ToDomain()
	}
	return plans, nil
}

// Create inserts a plan together with its installments
func (r *GormPaymentPlanRepository) Create(ctx context.Context, plan *settlement.PaymentPlan) error {
	var model models.PaymentPlanModel
	model.FromDomain(plan)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Save updates the plan row with a version check and replaces the
// installment rows. Meant to run inside a transaction holding the plan
// row lock.
func (r *GormPaymentPlanRepository) Save(ctx context.Context, plan *settlement.PaymentPlan) error {
	var model models.PaymentPlanModel
	model.FromDomain(plan)

	result := r.db.WithContext(ctx).
		Model(&models.PaymentPlanModel{}).
		Where("id = ? AND version = ?", plan.ID, plan.Version-1).
		Updates(map[string]interface{}{
			"total_amount": model.TotalAmount,
			"status":       model.Status,
			"description":  model.Description,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	for i := range model.Installments {
		model.Installments[i].PaymentPlanID = plan.ID
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).
			Create(&model.Installments[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindOverdueInstallments lists installments past due with a balance
// remaining, across all plans still accepting payments.
func (r *GormPaymentPlanRepository) FindOverdueInstallments(ctx context.Context, asOf time.Time) ([]settlement.Installment, error) {
	var installmentModels []models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN payment_plans ON payment_plans.id = payment_plan_installments.payment_plan_id").
		Where("payment_plans.status IN ?", []settlement.PlanStatus{
			settlement.PlanStatusPending, settlement.PlanStatusPartial, settlement.PlanStatusOverdue,
		}).
		Where("payment_plan_installments.due_date < ?", asOf).
		Where("payment_plan_installments.paid_amount < payment_plan_installments.amount").
		Order("payment_plan_installments.due_date ASC").
		Find(&installmentModels).Error; err != nil {
		return nil, err
	}
	installments := make([]settlement.Installment, len(installmentModels))
	for i, model := range installmentModels {
		installments[i] = *model.ToDomain()
	}
	return installments, nil
}
