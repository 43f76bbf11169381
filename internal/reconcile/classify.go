package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

// DefaultTolerance is the relative tolerance applied to every amount
// comparison: a received amount matches an expected figure when the
// absolute difference is strictly below this fraction of the expected
// figure.  Bank transfers routinely lose a few units to fees and rounding,
// so exact equality would misfile real payments.  The same tolerance is
// used for deposit, full and balance checks.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// Outcome names the result of classifying one incoming transfer.
type Outcome string

const (
	OutcomeDeposit   Outcome = "deposit"
	OutcomeFull      Outcome = "full"
	OutcomeBalance   Outcome = "balance"
	OutcomeMismatch  Outcome = "amount_mismatch"
	OutcomeLate      Outcome = "late_payment"
	OutcomeUnmatched Outcome = "unmatched"
)

// Classification tells the state updater what to write for a classified
// transfer.  BookingStatus and PaymentStatus are the booking's new states;
// both empty means the booking row is left untouched.  Confirm indicates
// confirmed_at should be stamped.  Discrepancy flags a balance payment
// whose amount fell outside tolerance and needs operator review.
type Classification struct {
	Outcome       Outcome
	BookingStatus string
	PaymentStatus string
	Confirm       bool
	Discrepancy   bool
}

// withinTolerance reports whether paid is within the relative tolerance of
// expected.  Comparisons against a zero or negative expected figure never
// match; a relative tolerance is meaningless there.
func withinTolerance(paid, expected, tolerance decimal.Decimal) bool {
	if expected.Sign() <= 0 {
		return false
	}
	return paid.Sub(expected).Abs().Div(expected).Cmp(tolerance) < 0
}

// ClassifyRegular decides what a plain (non-balance) transfer means for a
// booking.  The full-payment check runs before the deposit check so a
// booking whose deposit equals its total is filed as fully paid.  A
// transfer that fits neither band is still matched to the booking but
// leaves its payment status unchanged (OutcomeMismatch); a booking outside
// the pending/deposit_paid states cannot accept a regular transfer at all
// (OutcomeUnmatched).
func ClassifyRegular(b *model.Booking, paid, tolerance decimal.Decimal) Classification {
	if b.PaymentStatus != model.PaymentStatusPending && b.PaymentStatus != model.PaymentStatusDepositPaid {
		return Classification{Outcome: OutcomeUnmatched}
	}
	if withinTolerance(paid, b.TotalAmount, tolerance) {
		return Classification{
			Outcome:       OutcomeFull,
			BookingStatus: model.BookingStatusConfirmed,
			PaymentStatus: model.PaymentStatusFullyPaid,
			Confirm:       true,
		}
	}
	if withinTolerance(paid, b.DepositAmount, tolerance) {
		return Classification{
			Outcome:       OutcomeDeposit,
			BookingStatus: model.BookingStatusConfirmed,
			PaymentStatus: model.PaymentStatusDepositPaid,
			Confirm:       true,
		}
	}
	return Classification{Outcome: OutcomeMismatch}
}

// ClassifyBalance decides what a balance-tagged transfer means.  Balance
// payments are never rejected on amount: the booking is marked fully paid
// regardless, and transfers outside tolerance of the outstanding balance
// only raise the Discrepancy flag for operator visibility.
func ClassifyBalance(b *model.Booking, outstanding, paid, tolerance decimal.Decimal) Classification {
	return Classification{
		Outcome:       OutcomeBalance,
		BookingStatus: b.BookingStatus,
		PaymentStatus: model.PaymentStatusFullyPaid,
		Discrepancy:   !withinTolerance(paid, outstanding, tolerance),
	}
}
