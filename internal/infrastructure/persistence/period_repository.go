package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/openledger/settlement/internal/domain/period"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPeriodRepository implements period.Repository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// FindByDate finds the period of a ledger covering a date
func (r *GormPeriodRepository) FindByDate(ctx context.Context, ledger period.LedgerType, date time.Time) (*period.Period, error) {
	var model models.PeriodModel
	if err := r.db.WithContext(ctx).
		Where("ledger = ? AND start_date <= ? AND end_date >= ?", ledger, date, date).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a ledger's period by name
func (r *GormPeriodRepository) FindByName(ctx context.Context, ledger period.LedgerType, name string) (*period.Period, error) {
	var model models.PeriodModel
	if err := r.db.WithContext(ctx).
		Where("ledger = ? AND name = ?", ledger, name).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a period
func (r *GormPeriodRepository) Save(ctx context.Context, p *period.Period) error {
	var model models.PeriodModel
	model.FromDomain(p)
	return r.db.WithContext(ctx).Save(&model).Error
}
