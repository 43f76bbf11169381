package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingType distinguishes the two booking namespaces.  Camping bookings
// carry references prefixed "CP", glamping bookings "GH".  The two kinds
// live in separate tables but share the same shape.
type BookingType string

const (
	BookingTypeCamping  BookingType = "camping"
	BookingTypeGlamping BookingType = "glamping"
)

// Booking lifecycle statuses.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Payment statuses.  payment_status only advances forward
// (pending -> deposit_paid -> fully_paid); expired is a terminal state set
// by the booking-expiry job and is never reversed by reconciliation.
const (
	PaymentStatusPending     = "pending"
	PaymentStatusDepositPaid = "deposit_paid"
	PaymentStatusFullyPaid   = "fully_paid"
	PaymentStatusExpired     = "expired"
)

// Booking mirrors a row of either `camping_bookings` or `glamping_bookings`.
// Only the columns the reconciliation core reads and writes are present;
// the booking flow owns the rest of the schema.
//
// Fields:
//
//	ID            – primary key identifier within the booking's table.
//	Reference     – human-readable code, e.g. "GH25000002"; unique per table.
//	Type          – which namespace (and table) the booking belongs to.
//	CustomerID    – user who placed the booking, used for notifications.
//	TotalAmount   – total amount due for the stay.
//	DepositAmount – deposit due up front; zero for no-deposit bookings.
//	ExtraCosts    – additional line-item costs accrued after booking.
//	AmountPaid    – running total the booking flow has recorded as paid.
//	BookingStatus – one of the BookingStatus* constants.
//	PaymentStatus – one of the PaymentStatus* constants.
//	ConfirmedAt   – when the booking was confirmed, nil until then.
type Booking struct {
	ID            uint64          // id
	Reference     string          // reference
	Type          BookingType     // table discriminator, not a column
	CustomerID    uint64          // customer_id
	TotalAmount   decimal.Decimal // total_amount
	DepositAmount decimal.Decimal // deposit_amount
	ExtraCosts    decimal.Decimal // extra_costs
	AmountPaid    decimal.Decimal // amount_paid
	BookingStatus string          // booking_status
	PaymentStatus string          // payment_status
	ConfirmedAt   *time.Time      // confirmed_at (nullable)
	CreatedAt     time.Time       // created_at
	UpdatedAt     time.Time       // updated_at
}

// IsExpired reports whether the booking timed out unpaid and was cancelled
// by the expiry job.  Money arriving for such a booking is filed as a late
// payment and never resurrects the booking.
func (b *Booking) IsExpired() bool {
	return b.BookingStatus == BookingStatusCancelled && b.PaymentStatus == PaymentStatusExpired
}
