package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

// PaymentRepo provides access to the payments ledger.  Ledger rows are
// append-only; the single exception is upgrading a pending row that the
// booking flow pre-created, which avoids duplicate ledger entries when the
// deposit arrives.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts a ledger entry inside the caller's transaction and
// populates the generated ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments
        (booking_id, booking_type, method, amount, status, external_ref, note, paid_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var paidAt interface{}
	if p.PaidAt != nil {
		paidAt = p.PaidAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q,
		p.BookingID, string(p.BookingType), p.Method, p.Amount, p.Status,
		p.ExternalRef, p.Note, paidAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// UpsertForBookingTx records a settled payment for a booking.  When the
// booking flow pre-created a pending ledger row for the same booking, that
// row is upgraded in place; otherwise a new row is inserted.  Both paths
// run inside the caller's transaction.
func (r *PaymentRepo) UpsertForBookingTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const upd = `UPDATE payments
        SET method = ?, amount = ?, status = ?, external_ref = ?, note = ?, paid_at = ?
        WHERE booking_id = ? AND booking_type = ? AND status = ?
        ORDER BY id LIMIT 1`
	paidAt := time.Now().UTC()
	if p.PaidAt != nil {
		paidAt = p.PaidAt.UTC()
	}
	res, err := tx.ExecContext(ctx, upd,
		p.Method, p.Amount, p.Status, p.ExternalRef, p.Note, paidAt,
		p.BookingID, string(p.BookingType), model.PaymentEntryPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	return r.CreateTx(ctx, tx, p)
}

// SumPaidTx returns the sum of settled ledger amounts for a booking inside
// the caller's transaction.  Pending rows do not count.
func (r *PaymentRepo) SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64, bookingType model.BookingType) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM payments
        WHERE booking_id = ? AND booking_type = ? AND status IN (?, ?)`
	var sum decimal.Decimal
	err := tx.QueryRowContext(ctx, q, bookingID, string(bookingType),
		model.PaymentEntryPaid, model.PaymentEntryCompleted).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// ListByBooking returns all ledger entries for a booking ordered oldest
// first.  Used by the admin transaction detail view.
func (r *PaymentRepo) ListByBooking(ctx context.Context, bookingID uint64, bookingType model.BookingType) ([]model.Payment, error) {
	const q = `SELECT id, booking_id, booking_type, method, amount, status,
                      external_ref, note, paid_at, created_at
               FROM payments WHERE booking_id = ? AND booking_type = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, bookingID, string(bookingType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		var (
			p      model.Payment
			btype  string
			paidAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.BookingID, &btype, &p.Method, &p.Amount,
			&p.Status, &p.ExternalRef, &p.Note, &paidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.BookingType = model.BookingType(btype)
		if paidAt.Valid {
			ts := paidAt.Time
			p.PaidAt = &ts
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
