package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

// BookingRepo provides the reconciliation core's view of one booking
// namespace.  Camping and glamping bookings live in separate tables with
// identical columns, so a single implementation is parameterized by table
// name and booking type instead of duplicating the query set per namespace.
type BookingRepo struct {
	db    *sql.DB
	table string
	kind  model.BookingType
}

// NewCampingBookingRepo returns the repository for the camping namespace
// (references prefixed "CP").
func NewCampingBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db, table: "camping_bookings", kind: model.BookingTypeCamping}
}

// NewGlampingBookingRepo returns the repository for the glamping namespace
// (references prefixed "GH").
func NewGlampingBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db, table: "glamping_bookings", kind: model.BookingTypeGlamping}
}

// Type reports which namespace this repository serves.
func (r *BookingRepo) Type() model.BookingType { return r.kind }

const bookingColumns = `id, reference, customer_id, total_amount, deposit_amount,
       extra_costs, amount_paid, booking_status, payment_status, confirmed_at,
       created_at, updated_at`

func (r *BookingRepo) scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var (
		b         model.Booking
		confirmed sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.Reference, &b.CustomerID, &b.TotalAmount, &b.DepositAmount,
		&b.ExtraCosts, &b.AmountPaid, &b.BookingStatus, &b.PaymentStatus, &confirmed,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if confirmed.Valid {
		ts := confirmed.Time
		b.ConfirmedAt = &ts
	}
	b.Type = r.kind
	return &b, nil
}

// FindByReference loads a booking by its human-readable reference.  The
// lookup is case-insensitive on the stored uppercase code.  Returns
// ErrNotFound when the reference does not exist in this namespace.
func (r *BookingRepo) FindByReference(ctx context.Context, reference string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM ` + r.table + ` WHERE reference = ? LIMIT 1`
	b, err := r.scanBooking(r.db.QueryRowContext(ctx, q, strings.ToUpper(reference)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// UpdateStatusTx updates the booking and payment status of a booking inside
// the caller's transaction.  paidAmount is added to the running amount_paid
// total.  confirmedAt is only written when non-nil so confirmations keep
// their original timestamp on later balance payments.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, bookingStatus, paymentStatus string, paidAmount decimal.Decimal, confirmedAt *time.Time) error {
	q := `UPDATE ` + r.table + `
        SET booking_status = ?, payment_status = ?, amount_paid = amount_paid + ?`
	args := []interface{}{bookingStatus, paymentStatus, paidAmount}
	if confirmedAt != nil {
		q += `, confirmed_at = ?`
		args = append(args, confirmedAt.UTC())
	}
	q += ` WHERE id = ?`
	args = append(args, bookingID)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}
