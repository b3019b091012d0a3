package settlement

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// In-memory repositories backing service tests. They implement the same
// locking contract logically (single-threaded tests, no real locks) and
// copy aggregates on read so a rolled-back transaction cannot leak
// mutations into the store.

type memStore struct {
	invoices    map[uuid.UUID]*settlement.Invoice
	payments    map[uuid.UUID]*settlement.Payment
	allocations map[uuid.UUID]*settlement.Allocation
	plans       map[uuid.UUID]*settlement.PaymentPlan
}

func newMemStore() *memStore {
	return &memStore{
		invoices:    make(map[uuid.UUID]*settlement.Invoice),
		payments:    make(map[uuid.UUID]*settlement.Payment),
		allocations: make(map[uuid.UUID]*settlement.Allocation),
		plans:       make(map[uuid.UUID]*settlement.PaymentPlan),
	}
}

type memInvoiceRepo struct{ store *memStore }

func (r *memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Invoice, error) {
	inv, ok := r.store.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoiceRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*settlement.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *memInvoiceRepo) Save(_ context.Context, invoice *settlement.Invoice) error {
	cp := *invoice
	r.store.invoices[invoice.ID] = &cp
	return nil
}

type memPaymentRepo struct{ store *memStore }

func (r *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Payment, error) {
	p, ok := r.store.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) Save(_ context.Context, payment *settlement.Payment) error {
	cp := *payment
	r.store.payments[payment.ID] = &cp
	return nil
}

type memAllocationRepo struct{ store *memStore }

func (r *memAllocationRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Allocation, error) {
	a, ok := r.store.allocations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAllocationRepo) FindByPaymentAndInvoice(_ context.Context, paymentID, invoiceID uuid.UUID) (*settlement.Allocation, error) {
	for _, a := range r.store.allocations {
		if a.PaymentID == paymentID && a.InvoiceID == invoiceID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memAllocationRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) ([]settlement.Allocation, error) {
	var out []settlement.Allocation
	for _, a := range r.store.allocations {
		if a.PaymentID == paymentID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]settlement.Allocation, error) {
	var out []settlement.Allocation
	for _, a := range r.store.allocations {
		if a.InvoiceID == invoiceID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memAllocationRepo) SumByInvoice(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range r.store.allocations {
		if a.InvoiceID == invoiceID {
			sum = sum.Add(a.AmountAllocated)
		}
	}
	return sum, nil
}

func (r *memAllocationRepo) Create(_ context.Context, allocation *settlement.Allocation) error {
	for _, a := range r.store.allocations {
		if a.PaymentID == allocation.PaymentID && a.InvoiceID == allocation.InvoiceID {
			return shared.ErrAlreadyExists
		}
	}
	cp := *allocation
	r.store.allocations[allocation.ID] = &cp
	return nil
}

func (r *memAllocationRepo) Update(_ context.Context, allocation *settlement.Allocation) error {
	if _, ok := r.store.allocations[allocation.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *allocation
	r.store.allocations[allocation.ID] = &cp
	return nil
}

func (r *memAllocationRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.allocations[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.store.allocations, id)
	return nil
}

type memPlanRepo struct{ store *memStore }

func copyPlan(p *settlement.PaymentPlan) *settlement.PaymentPlan {
	cp := *p
	cp.Installments = make([]settlement.Installment, len(p.Installments))
	copy(cp.Installments, p.Installments)
	return &cp
}

func (r *memPlanRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.PaymentPlan, error) {
	p, ok := r.store.plans[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyPlan(p), nil
}

func (r *memPlanRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*settlement.PaymentPlan, error) {
	return r.FindByID(ctx, id)
}

func (r *memPlanRepo) FindActiveByInvoice(_ context.Context, invoiceID uuid.UUID) (*settlement.PaymentPlan, error) {
	for _, p := range r.store.plans {
		if p.InvoiceID == invoiceID && p.Status.IsActive() {
			return copyPlan(p), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPlanRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]settlement.PaymentPlan, error) {
	var out []settlement.PaymentPlan
	for _, p := range r.store.plans {
		if p.InvoiceID == invoiceID {
			out = append(out, *copyPlan(p))
		}
	}
	return out, nil
}

func (r *memPlanRepo) Create(_ context.Context, plan *settlement.PaymentPlan) error {
	r.store.plans[plan.ID] = copyPlan(plan)
	return nil
}

func (r *memPlanRepo) Save(_ context.Context, plan *settlement.PaymentPlan) error {
	r.store.plans[plan.ID] = copyPlan(plan)
	return nil
}

func (r *memPlanRepo) FindOverdueInstallments(_ context.Context, asOf time.Time) ([]settlement.Installment, error) {
	var out []settlement.Installment
	for _, p := range r.store.plans {
		if !p.Status.IsActive() {
			continue
		}
		for i := range p.Installments {
			if p.Installments[i].IsOverdue(asOf) {
				out = append(out, p.Installments[i])
			}
		}
	}
	return out, nil
}

// memUnitOfWork snapshots the store before running fn and restores it on
// error, mirroring the rollback behavior of the real implementation.
type memUnitOfWork struct{ store *memStore }

func (u *memUnitOfWork) Execute(_ context.Context, fn func(settlement.Repositories) error) error {
	snapshot := u.snapshot()
	err := fn(memRepositories(u.store))
	if err != nil {
		*u.store = *snapshot
	}
	return err
}

func (u *memUnitOfWork) snapshot() *memStore {
	s := newMemStore()
	for id, inv := range u.store.invoices {
		cp := *inv
		s.invoices[id] = &cp
	}
	for id, p := range u.store.payments {
		cp := *p
		s.payments[id] = &cp
	}
	for id, a := range u.store.allocations {
		cp := *a
		s.allocations[id] = &cp
	}
	for id, p := range u.store.plans {
		s.plans[id] = copyPlan(p)
	}
	return s
}

func memRepositories(store *memStore) settlement.Repositories {
	return settlement.Repositories{
		Invoices:    &memInvoiceRepo{store: store},
		Allocations: &memAllocationRepo{store: store},
		Payments:    &memPaymentRepo{store: store},
		Plans:       &memPlanRepo{store: store},
	}
}

// testEnv bundles the store with ready-to-use services
type testEnv struct {
	store       *memStore
	allocations *AllocationService
	plans       *PlanService
	audit       *AuditService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	uow := &memUnitOfWork{store: store}
	reader := memRepositories(store)
	logger := zap.NewNop()
	return &testEnv{
		store:       store,
		allocations: NewAllocationService(uow, reader, logger),
		plans:       NewPlanService(uow, reader, logger),
		audit:       NewAuditService(uow, reader, logger),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func usd(t *testing.T, s string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoneyFromString(s, valueobject.USD)
	require.NoError(t, err)
	return m
}

func eur(t *testing.T, s string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoneyFromString(s, valueobject.EUR)
	require.NoError(t, err)
	return m
}

func seedInvoice(t *testing.T, env *testEnv, partnerID uuid.UUID, total string) *settlement.Invoice {
	t.Helper()
	inv, err := settlement.NewInvoice("INV-1001", settlement.DirectionReceivable, partnerID,
		usd(t, total), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	inv.InvoiceNumber = "INV-" + inv.ID.String()[:8]
	env.store.invoices[inv.ID] = inv
	return inv
}

func seedPayment(t *testing.T, env *testEnv, partnerID uuid.UUID, amount string) *settlement.Payment {
	t.Helper()
	p, err := settlement.NewPayment("PAY-"+uuid.NewString()[:8], settlement.DirectionReceivable, partnerID,
		usd(t, amount), time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	env.store.payments[p.ID] = p
	return p
}
