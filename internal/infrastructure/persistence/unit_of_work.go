package persistence

import (
	"context"

	"github.com/openledger/settlement/internal/domain/settlement"
	"gorm.io/gorm"
)

// GormUnitOfWork implements settlement.UnitOfWork on a GORM transaction.
// The function receives repositories bound to the transaction; returning
// an error rolls back every write, so partial settlement state can never
// become visible.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn inside one database transaction
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos settlement.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// NewRepositories binds the settlement repositories to one db handle,
// which may be a transaction.
func NewRepositories(db *gorm.DB) settlement.Repositories {
	return settlement.Repositories{
		Invoices:    NewGormInvoiceRepository(db),
		Allocations: NewGormAllocationRepository(db),
		Payments:    NewGormPaymentRepository(db),
		Plans:       NewGormPaymentPlanRepository(db),
	}
}
