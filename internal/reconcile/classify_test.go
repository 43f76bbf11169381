package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

func vnd(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func pendingBooking(total, deposit int64) *model.Booking {
	return &model.Booking{
		ID:            1,
		Reference:     "GH25000002",
		Type:          model.BookingTypeGlamping,
		TotalAmount:   vnd(total),
		DepositAmount: vnd(deposit),
		BookingStatus: model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
}

func TestClassifyRegularDepositToleranceBoundary(t *testing.T) {
	b := pendingBooking(5_000_000, 1_000_000)

	// 0.9999% over the deposit: inside the 1% band.
	cls := ClassifyRegular(b, vnd(1_009_999), DefaultTolerance)
	require.Equal(t, OutcomeDeposit, cls.Outcome)
	require.Equal(t, model.PaymentStatusDepositPaid, cls.PaymentStatus)
	require.Equal(t, model.BookingStatusConfirmed, cls.BookingStatus)
	require.True(t, cls.Confirm)

	// Exactly 1% over: the band is strict, so this is a mismatch.
	cls = ClassifyRegular(b, vnd(1_010_000), DefaultTolerance)
	require.Equal(t, OutcomeMismatch, cls.Outcome)

	cls = ClassifyRegular(b, vnd(1_010_001), DefaultTolerance)
	require.Equal(t, OutcomeMismatch, cls.Outcome)
}

func TestClassifyRegularFullWinsOverDeposit(t *testing.T) {
	// No-deposit booking where deposit equals total: an exact payment
	// satisfies both bands and must be filed as fully paid.
	b := pendingBooking(2_000_000, 2_000_000)
	cls := ClassifyRegular(b, vnd(2_000_000), DefaultTolerance)
	require.Equal(t, OutcomeFull, cls.Outcome)
	require.Equal(t, model.PaymentStatusFullyPaid, cls.PaymentStatus)
}

func TestClassifyRegularZeroDepositSkipsDepositCheck(t *testing.T) {
	b := pendingBooking(3_000_000, 0)
	// A zero transfer must not "match" the zero deposit.
	cls := ClassifyRegular(b, vnd(0), DefaultTolerance)
	require.Equal(t, OutcomeMismatch, cls.Outcome)
}

func TestClassifyRegularFullPayment(t *testing.T) {
	b := pendingBooking(3_000_000, 1_000_000)
	cls := ClassifyRegular(b, vnd(2_999_000), DefaultTolerance)
	require.Equal(t, OutcomeFull, cls.Outcome)
	require.Equal(t, model.BookingStatusConfirmed, cls.BookingStatus)
}

func TestClassifyRegularSecondInstallmentOnDepositPaid(t *testing.T) {
	b := pendingBooking(3_000_000, 1_000_000)
	b.PaymentStatus = model.PaymentStatusDepositPaid
	// Paying the full total again while deposit_paid still classifies as
	// full; forward-only status advance is enforced by the updater.
	cls := ClassifyRegular(b, vnd(3_000_000), DefaultTolerance)
	require.Equal(t, OutcomeFull, cls.Outcome)
}

func TestClassifyRegularRejectsSettledBooking(t *testing.T) {
	b := pendingBooking(3_000_000, 1_000_000)
	b.PaymentStatus = model.PaymentStatusFullyPaid
	cls := ClassifyRegular(b, vnd(3_000_000), DefaultTolerance)
	require.Equal(t, OutcomeUnmatched, cls.Outcome)
}

func TestClassifyBalance(t *testing.T) {
	b := pendingBooking(3_000_000, 1_000_000)
	b.BookingStatus = model.BookingStatusConfirmed
	b.PaymentStatus = model.PaymentStatusDepositPaid

	// Exact outstanding balance: accepted, no discrepancy.
	cls := ClassifyBalance(b, vnd(2_000_000), vnd(2_000_000), DefaultTolerance)
	require.Equal(t, OutcomeBalance, cls.Outcome)
	require.Equal(t, model.PaymentStatusFullyPaid, cls.PaymentStatus)
	require.False(t, cls.Discrepancy)

	// Off amount: still accepted, flagged for review.
	cls = ClassifyBalance(b, vnd(2_000_000), vnd(1_500_000), DefaultTolerance)
	require.Equal(t, OutcomeBalance, cls.Outcome)
	require.Equal(t, model.PaymentStatusFullyPaid, cls.PaymentStatus)
	require.True(t, cls.Discrepancy)

	// Nothing outstanding: relative tolerance is undefined, flag it.
	cls = ClassifyBalance(b, vnd(0), vnd(500_000), DefaultTolerance)
	require.True(t, cls.Discrepancy)
}
