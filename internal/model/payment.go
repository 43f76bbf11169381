package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses for ledger entries.
const (
	PaymentEntryPending   = "pending"
	PaymentEntryPaid      = "paid"
	PaymentEntryCompleted = "completed"
)

// PaymentMethodBankTransfer is the method recorded for reconciled Sepay
// transfers.
const PaymentMethodBankTransfer = "bank_transfer"

// NoteBalancePayment tags ledger entries created for glamping balance
// transfers so reports can separate them from deposits.
const NoteBalancePayment = "balance_payment"

// Payment mirrors the `payments` ledger table.  One row per recorded money
// movement against a booking.  Rows are never deleted; corrections are new
// rows.  The only in-place mutation allowed is upgrading a pending row that
// the booking flow pre-created for the same booking.
type Payment struct {
	ID          uint64          // payments.id
	BookingID   uint64          // payments.booking_id
	BookingType BookingType     // payments.booking_type
	Method      string          // payments.method
	Amount      decimal.Decimal // payments.amount
	Status      string          // payments.status
	ExternalRef string          // payments.external_ref (the transaction code)
	Note        string          // payments.note
	PaidAt      *time.Time      // payments.paid_at (nullable)
	CreatedAt   time.Time       // payments.created_at
}

// BankAccount mirrors the `bank_accounts` table.  Incoming transfers are
// tagged with the platform account they arrived on when the account number
// is recognized.
type BankAccount struct {
	ID            uint64    // bank_accounts.id
	AccountNumber string    // bank_accounts.account_number
	BankName      string    // bank_accounts.bank_name
	IsActive      bool      // bank_accounts.is_active
	CreatedAt     time.Time // bank_accounts.created_at
}
