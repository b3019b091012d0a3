package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/period"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// openGate accepts every date; closedGate rejects every date
type openGate struct{ lastLedger period.LedgerType }

func (g *openGate) AssertOpen(_ context.Context, ledger period.LedgerType, _ time.Time) error {
	g.lastLedger = ledger
	return nil
}

type closedGate struct{}

func (closedGate) AssertOpen(_ context.Context, _ period.LedgerType, _ time.Time) error {
	return shared.NewDomainError("PERIOD_CLOSED", "period is closed")
}

func newRegistry(env *testEnv, gate PeriodGate) *RegistryService {
	uow := &memUnitOfWork{store: env.store}
	return NewRegistryService(uow, memRepositories(env.store), gate, zap.NewNop())
}

func TestRegistryService_CreateInvoice(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()
	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("posts an unpaid invoice in an open period", func(t *testing.T) {
		env := newTestEnv()
		gate := &openGate{}
		svc := newRegistry(env, gate)

		inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
			InvoiceNumber:     "INV-2025-001",
			Direction:         settlement.DirectionReceivable,
			BusinessPartnerID: partnerID,
			Total:             usd(t, "1500.00"),
			Date:              day,
		})
		require.NoError(t, err)

		assert.Equal(t, period.LedgerAR, gate.lastLedger)
		stored := env.store.invoices[inv.ID]
		require.NotNil(t, stored)
		assert.True(t, stored.PaidAmount.IsZero())
		assert.Equal(t, settlement.PaymentStatusUnpaid, stored.PaymentStatus)
	})

	t.Run("payable invoice consults the AP ledger", func(t *testing.T) {
		env := newTestEnv()
		gate := &openGate{}
		svc := newRegistry(env, gate)

		_, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
			InvoiceNumber:     "BILL-77",
			Direction:         settlement.DirectionPayable,
			BusinessPartnerID: partnerID,
			Total:             usd(t, "800.00"),
			Date:              day,
		})
		require.NoError(t, err)
		assert.Equal(t, period.LedgerAP, gate.lastLedger)
	})

	t.Run("closed period rejects the posting", func(t *testing.T) {
		env := newTestEnv()
		svc := newRegistry(env, closedGate{})

		_, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{
			InvoiceNumber:     "INV-2025-002",
			Direction:         settlement.DirectionReceivable,
			BusinessPartnerID: partnerID,
			Total:             usd(t, "100.00"),
			Date:              day,
		})
		require.Error(t, err)
		assert.Equal(t, "PERIOD_CLOSED", err.(*shared.DomainError).Code)
		assert.Empty(t, env.store.invoices)
	})
}

func TestRegistryService_CreatePayment(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()
	day := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)

	t.Run("posts a payment with reference and memo", func(t *testing.T) {
		env := newTestEnv()
		svc := newRegistry(env, &openGate{})

		pay, err := svc.CreatePayment(ctx, CreatePaymentRequest{
			PaymentNumber:     "PAY-2025-001",
			Direction:         settlement.DirectionReceivable,
			BusinessPartnerID: partnerID,
			Amount:            usd(t, "500.00"),
			Date:              day,
			Reference:         "wire-123",
			Memo:              "January settlement",
		})
		require.NoError(t, err)

		stored := env.store.payments[pay.ID]
		require.NotNil(t, stored)
		assert.Equal(t, "wire-123", stored.Reference)
		assert.Equal(t, "January settlement", stored.Memo)
	})

	t.Run("closed period rejects the posting", func(t *testing.T) {
		env := newTestEnv()
		svc := newRegistry(env, closedGate{})

		_, err := svc.CreatePayment(ctx, CreatePaymentRequest{
			PaymentNumber:     "PAY-2025-002",
			Direction:         settlement.DirectionReceivable,
			BusinessPartnerID: partnerID,
			Amount:            usd(t, "500.00"),
			Date:              day,
		})
		require.Error(t, err)
		assert.Empty(t, env.store.payments)
	})
}
