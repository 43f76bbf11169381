package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
)

// TransactionRepo provides access to the incoming_transactions table.  The
// table is the sole coordination point for webhook deduplication: the
// transaction_code column carries a unique index and ClaimTx performs the
// atomic "claim if still pending" transition that guarantees at most one
// committed match per code even under concurrent deliveries.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span this repository and the booking/payment repositories.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

const txColumns = `id, vendor_id, transaction_code, amount, description, account_number,
       bank_label, transferred_at, transfer_type, raw_payload, status,
       matched_booking_id, matched_booking_type, matched_by, matched_at,
       bank_account_id, created_at, updated_at`

// scanTransaction scans one row into a model.IncomingTransaction.  All
// nullable columns go through sql.Null* wrappers.
func scanTransaction(row interface{ Scan(...interface{}) error }) (*model.IncomingTransaction, error) {
	var (
		t           model.IncomingTransaction
		code        sql.NullString
		transferred sql.NullTime
		matchedID   sql.NullInt64
		matchedType sql.NullString
		matchedBy   sql.NullString
		matchedAt   sql.NullTime
		bankAccount sql.NullInt64
	)
	err := row.Scan(
		&t.ID, &t.VendorID, &code, &t.Amount, &t.Description, &t.AccountNumber,
		&t.BankLabel, &transferred, &t.TransferType, &t.RawPayload, &t.Status,
		&matchedID, &matchedType, &matchedBy, &matchedAt,
		&bankAccount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if code.Valid {
		t.TransactionCode = code.String
	}
	if transferred.Valid {
		ts := transferred.Time
		t.TransferredAt = &ts
	}
	if matchedID.Valid {
		id := uint64(matchedID.Int64)
		t.MatchedBookingID = &id
	}
	if matchedType.Valid {
		bt := matchedType.String
		t.MatchedBookingType = &bt
	}
	if matchedBy.Valid {
		mb := matchedBy.String
		t.MatchedBy = &mb
	}
	if matchedAt.Valid {
		ma := matchedAt.Time
		t.MatchedAt = &ma
	}
	if bankAccount.Valid {
		ba := uint64(bankAccount.Int64)
		t.BankAccountID = &ba
	}
	return &t, nil
}

// GetByCode returns the transaction with the given transaction code.  It
// returns ErrNotFound when the code has never been recorded.
func (r *TransactionRepo) GetByCode(ctx context.Context, code string) (*model.IncomingTransaction, error) {
	const q = `SELECT ` + txColumns + ` FROM incoming_transactions WHERE transaction_code = ? LIMIT 1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetByID returns a single transaction by primary key, or ErrNotFound.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (*model.IncomingTransaction, error) {
	const q = `SELECT ` + txColumns + ` FROM incoming_transactions WHERE id = ? LIMIT 1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Create inserts a new transaction row and populates the generated ID.
// The transaction code is stored as NULL when empty so rejected deliveries
// without a parseable code do not collide on the unique index.
func (r *TransactionRepo) Create(ctx context.Context, t *model.IncomingTransaction) error {
	const q = `INSERT INTO incoming_transactions
        (vendor_id, transaction_code, amount, description, account_number,
         bank_label, transferred_at, transfer_type, raw_payload, status, bank_account_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var code interface{}
	if t.TransactionCode != "" {
		code = t.TransactionCode
	}
	var transferred interface{}
	if t.TransferredAt != nil {
		transferred = t.TransferredAt.UTC()
	}
	var bankAccount interface{}
	if t.BankAccountID != nil {
		bankAccount = *t.BankAccountID
	}
	res, err := r.db.ExecContext(ctx, q,
		t.VendorID, code, t.Amount, t.Description, t.AccountNumber,
		t.BankLabel, transferred, t.TransferType, t.RawPayload, t.Status, bankAccount,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// UpdatePayload refreshes the payload columns of an existing pending row in
// place.  Used when the vendor redelivers a transaction code that never
// matched: the retry may carry a corrected description, so the stored copy
// is replaced before re-attempting the match.
func (r *TransactionRepo) UpdatePayload(ctx context.Context, t *model.IncomingTransaction) error {
	const q = `UPDATE incoming_transactions
        SET vendor_id = ?, amount = ?, description = ?, account_number = ?,
            bank_label = ?, transferred_at = ?, transfer_type = ?, raw_payload = ?,
            bank_account_id = ?
        WHERE id = ? AND status = ?`
	var transferred interface{}
	if t.TransferredAt != nil {
		transferred = t.TransferredAt.UTC()
	}
	var bankAccount interface{}
	if t.BankAccountID != nil {
		bankAccount = *t.BankAccountID
	}
	_, err := r.db.ExecContext(ctx, q,
		t.VendorID, t.Amount, t.Description, t.AccountNumber,
		t.BankLabel, transferred, t.TransferType, t.RawPayload,
		bankAccount, t.ID, model.TxStatusPending,
	)
	return err
}

// ClaimTx transitions a pending transaction to a terminal status inside the
// given transaction.  The status precondition makes the claim atomic: when
// two deliveries race, the row lock serializes them and the loser observes
// zero affected rows.  bookingID and bookingType may be nil for terminal
// states without a match.  Returns true when this caller won the claim.
func (r *TransactionRepo) ClaimTx(ctx context.Context, tx *sql.Tx, id uint64, status string, bookingID *uint64, bookingType *string, matchedBy string) (bool, error) {
	const q = `UPDATE incoming_transactions
        SET status = ?, matched_booking_id = ?, matched_booking_type = ?, matched_by = ?, matched_at = ?
        WHERE id = ? AND status = ? AND matched_booking_id IS NULL`
	var bid, btype interface{}
	if bookingID != nil {
		bid = *bookingID
	}
	if bookingType != nil {
		btype = *bookingType
	}
	res, err := tx.ExecContext(ctx, q, status, bid, btype, matchedBy, time.Now().UTC(), id, model.TxStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordRejected inserts a terminal invalid_signature or validation_error
// row for audit.  Duplicate transaction codes are ignored so a rejected
// redelivery never errors out the request.
func (r *TransactionRepo) RecordRejected(ctx context.Context, t *model.IncomingTransaction) error {
	err := r.Create(ctx, t)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return nil
	}
	return err
}

// ListByStatus returns transactions with the given status ordered newest
// first.  An empty status returns all transactions.  limit is capped at 200.
func (r *TransactionRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]model.IncomingTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + txColumns + ` FROM incoming_transactions`
	args := make([]interface{}, 0, 3)
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.IncomingTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
