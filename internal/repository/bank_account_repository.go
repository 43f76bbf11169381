package repository

import (
	"context"
	"database/sql"
	"errors"
)

// BankAccountRepo resolves source account numbers reported by the payment
// vendor to platform bank account rows so incoming transactions can be
// tagged with the account they arrived on.
type BankAccountRepo struct {
	db *sql.DB
}

// NewBankAccountRepo returns a new BankAccountRepo bound to the given database.
func NewBankAccountRepo(db *sql.DB) *BankAccountRepo { return &BankAccountRepo{db: db} }

// FindIDByNumber returns the id of the active bank account with the given
// account number, or ErrNotFound when the number is not recognized.
func (r *BankAccountRepo) FindIDByNumber(ctx context.Context, accountNumber string) (uint64, error) {
	const q = `SELECT id FROM bank_accounts WHERE account_number = ? AND is_active = 1 LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, accountNumber).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}
