package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocationService_Allocate(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	t.Run("creates allocation and pays the invoice", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "600.00")

		dto, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("600.00"))
		require.NoError(t, err)
		assert.True(t, dto.AmountAllocated.Equal(dec("600.00")))

		stored := env.store.invoices[inv.ID]
		assert.True(t, stored.PaidAmount.Equal(dec("600.00")))
		assert.Equal(t, settlement.PaymentStatusPartiallyPaid, stored.PaymentStatus)
	})

	t.Run("merges a second allocation for the same pair", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "1000.00")

		first, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("300.00"))
		require.NoError(t, err)
		second, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("200.00"))
		require.NoError(t, err)

		// Same record, grown amount; never two rows for one pair.
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.AmountAllocated.Equal(dec("500.00")))
		assert.Len(t, env.store.allocations, 1)
		assert.True(t, env.store.invoices[inv.ID].PaidAmount.Equal(dec("500.00")))
	})

	t.Run("rejects overpayment of the invoice", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "500.00")
		pay := seedPayment(t, env, partnerID, "800.00")

		_, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("600.00"))
		require.Error(t, err)
		assert.Equal(t, "EXCEEDS_REMAINING_BALANCE", err.(*shared.DomainError).Code)

		// Nothing written.
		assert.Empty(t, env.store.allocations)
		assert.True(t, env.store.invoices[inv.ID].PaidAmount.IsZero())
	})

	t.Run("rejects allocating more than the payment", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "400.00")

		_, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("500.00"))
		require.Error(t, err)
		assert.Equal(t, "EXCEEDS_UNALLOCATED_AMOUNT", err.(*shared.DomainError).Code)
	})

	t.Run("rejects currency mismatch", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay, err := settlement.NewPayment("PAY-EUR", settlement.DirectionReceivable, partnerID,
			eur(t, "500.00"), time.Now())
		require.NoError(t, err)
		env.store.payments[pay.ID] = pay

		_, err = env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("100.00"))
		require.Error(t, err)
		assert.Equal(t, "CURRENCY_MISMATCH", err.(*shared.DomainError).Code)
	})

	t.Run("rejects partner mismatch", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, uuid.New(), "500.00")

		_, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("100.00"))
		require.Error(t, err)
		assert.Equal(t, "PARTNER_MISMATCH", err.(*shared.DomainError).Code)
	})

	t.Run("rejects direction mismatch", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay, err := settlement.NewPayment("PAY-AP", settlement.DirectionPayable, partnerID,
			usd(t, "500.00"), time.Now())
		require.NoError(t, err)
		env.store.payments[pay.ID] = pay

		_, err = env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("100.00"))
		require.Error(t, err)
		assert.Equal(t, "DIRECTION_MISMATCH", err.(*shared.DomainError).Code)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "500.00")

		_, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("0"))
		require.Error(t, err)
		_, err = env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("-10.00"))
		require.Error(t, err)
	})

	t.Run("unknown payment leaves no side effects", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")

		_, err := env.allocations.Allocate(ctx, uuid.New(), inv.ID, dec("100.00"))
		require.Error(t, err)
		assert.Empty(t, env.store.allocations)
	})
}

func TestAllocationService_UpdateAllocation(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	setup := func(t *testing.T) (*testEnv, *settlement.Invoice, *AllocationDTO) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "1000.00")
		dto, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("400.00"))
		require.NoError(t, err)
		return env, inv, dto
	}

	t.Run("increase applies the delta", func(t *testing.T) {
		env, inv, dto := setup(t)

		updated, err := env.allocations.UpdateAllocation(ctx, dto.ID, dec("700.00"))
		require.NoError(t, err)
		assert.True(t, updated.AmountAllocated.Equal(dec("700.00")))
		assert.True(t, env.store.invoices[inv.ID].PaidAmount.Equal(dec("700.00")))
	})

	t.Run("decrease refunds the delta", func(t *testing.T) {
		env, inv, dto := setup(t)

		_, err := env.allocations.UpdateAllocation(ctx, dto.ID, dec("150.00"))
		require.NoError(t, err)
		stored := env.store.invoices[inv.ID]
		assert.True(t, stored.PaidAmount.Equal(dec("150.00")))
		assert.Equal(t, settlement.PaymentStatusPartiallyPaid, stored.PaymentStatus)
	})

	t.Run("validates against remaining plus own contribution", func(t *testing.T) {
		env, inv, dto := setup(t)
		// paid 400 of 1000; this allocation may grow to 1000, not beyond
		_, err := env.allocations.UpdateAllocation(ctx, dto.ID, dec("1000.00"))
		require.NoError(t, err)
		assert.Equal(t, settlement.PaymentStatusPaid, env.store.invoices[inv.ID].PaymentStatus)

		_, err = env.allocations.UpdateAllocation(ctx, dto.ID, dec("1000.01"))
		require.Error(t, err)
		assert.Equal(t, "EXCEEDS_REMAINING_BALANCE", err.(*shared.DomainError).Code)
	})

	t.Run("unchanged amount is a no-op", func(t *testing.T) {
		env, inv, dto := setup(t)
		versionBefore := env.store.invoices[inv.ID].Version

		_, err := env.allocations.UpdateAllocation(ctx, dto.ID, dec("400.00"))
		require.NoError(t, err)
		assert.Equal(t, versionBefore, env.store.invoices[inv.ID].Version)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		env, _, dto := setup(t)
		_, err := env.allocations.UpdateAllocation(ctx, dto.ID, dec("0"))
		require.Error(t, err)
	})
}

func TestAllocationService_RemoveAllocation(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	t.Run("deletes the record and refunds the invoice", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		pay := seedPayment(t, env, partnerID, "1000.00")
		dto, err := env.allocations.Allocate(ctx, pay.ID, inv.ID, dec("400.00"))
		require.NoError(t, err)

		require.NoError(t, env.allocations.RemoveAllocation(ctx, dto.ID))

		assert.Empty(t, env.store.allocations)
		stored := env.store.invoices[inv.ID]
		assert.True(t, stored.PaidAmount.IsZero())
		assert.Equal(t, settlement.PaymentStatusUnpaid, stored.PaymentStatus)
	})

	t.Run("unknown allocation is an error", func(t *testing.T) {
		env := newTestEnv()
		err := env.allocations.RemoveAllocation(ctx, uuid.New())
		require.Error(t, err)
	})
}

func TestAllocationService_ClearAllocations(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	t.Run("removes every allocation of the payment", func(t *testing.T) {
		env := newTestEnv()
		invA := seedInvoice(t, env, partnerID, "600.00")
		invB := seedInvoice(t, env, partnerID, "400.00")
		pay := seedPayment(t, env, partnerID, "1000.00")

		_, err := env.allocations.Allocate(ctx, pay.ID, invA.ID, dec("600.00"))
		require.NoError(t, err)
		_, err = env.allocations.Allocate(ctx, pay.ID, invB.ID, dec("250.00"))
		require.NoError(t, err)

		cleared, err := env.allocations.ClearAllocations(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, cleared)

		assert.Empty(t, env.store.allocations)
		assert.True(t, env.store.invoices[invA.ID].PaidAmount.IsZero())
		assert.True(t, env.store.invoices[invB.ID].PaidAmount.IsZero())
	})

	t.Run("does not touch other payments' allocations", func(t *testing.T) {
		env := newTestEnv()
		inv := seedInvoice(t, env, partnerID, "1000.00")
		payA := seedPayment(t, env, partnerID, "500.00")
		payB := seedPayment(t, env, partnerID, "500.00")

		_, err := env.allocations.Allocate(ctx, payA.ID, inv.ID, dec("300.00"))
		require.NoError(t, err)
		_, err = env.allocations.Allocate(ctx, payB.ID, inv.ID, dec("200.00"))
		require.NoError(t, err)

		cleared, err := env.allocations.ClearAllocations(ctx, payA.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, cleared)
		assert.True(t, env.store.invoices[inv.ID].PaidAmount.Equal(dec("200.00")))
	})

	t.Run("empty payment clears zero records", func(t *testing.T) {
		env := newTestEnv()
		pay := seedPayment(t, env, partnerID, "500.00")
		cleared, err := env.allocations.ClearAllocations(ctx, pay.ID)
		require.NoError(t, err)
		assert.Zero(t, cleared)
	})
}

func TestAllocationService_ConflictingAllocations(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	// Two payments compete for the same invoice's remaining balance.
	// The invoice row lock serializes them; whichever commits second must
	// see the first one's paid amount and be rejected, never stacked.
	env := newTestEnv()
	inv := seedInvoice(t, env, partnerID, "1000.00")
	payA := seedPayment(t, env, partnerID, "400.00")
	payB := seedPayment(t, env, partnerID, "700.00")

	_, err := env.allocations.Allocate(ctx, payA.ID, inv.ID, dec("400.00"))
	require.NoError(t, err)

	_, err = env.allocations.Allocate(ctx, payB.ID, inv.ID, dec("700.00"))
	require.Error(t, err)
	assert.Equal(t, "EXCEEDS_REMAINING_BALANCE", err.(*shared.DomainError).Code)

	// Exactly one accepted: paid amount never exceeds the total.
	stored := env.store.invoices[inv.ID]
	assert.True(t, stored.PaidAmount.Equal(dec("400.00")))
	assert.Len(t, env.store.allocations, 1)

	// The loser retries within the remaining balance and succeeds.
	_, err = env.allocations.Allocate(ctx, payB.ID, inv.ID, dec("600.00"))
	require.NoError(t, err)
	assert.True(t, env.store.invoices[inv.ID].PaidAmount.Equal(dec("1000.00")))
	assert.Equal(t, settlement.PaymentStatusPaid, env.store.invoices[inv.ID].PaymentStatus)
}

func TestAllocationService_GetPaymentSummary(t *testing.T) {
	ctx := context.Background()
	partnerID := uuid.New()

	env := newTestEnv()
	inv := seedInvoice(t, env, partnerID, "1000.00")
	payA := seedPayment(t, env, partnerID, "500.00")
	payB := seedPayment(t, env, partnerID, "500.00")

	_, err := env.allocations.Allocate(ctx, payA.ID, inv.ID, dec("500.00"))
	require.NoError(t, err)
	_, err = env.allocations.Allocate(ctx, payB.ID, inv.ID, dec("300.00"))
	require.NoError(t, err)

	summary, err := env.allocations.GetPaymentSummary(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, inv.ID, summary.InvoiceID)
	assert.True(t, summary.PaidAmount.Equal(dec("800.00")))
	assert.True(t, summary.Remaining.Equal(dec("200.00")))
	assert.True(t, summary.AllocationsSum.Equal(summary.PaidAmount))
	assert.Len(t, summary.Allocations, 2)
	assert.Equal(t, settlement.PaymentStatusPartiallyPaid, summary.PaymentStatus)
}
