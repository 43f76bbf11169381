package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IncomingTransaction statuses.  A transaction starts as pending and moves
// to exactly one terminal state.  Pending rows that never matched a booking
// may be re-attempted when the vendor redelivers the same transaction code.
const (
	TxStatusPending          = "pending"
	TxStatusMatched          = "matched"
	TxStatusLatePayment      = "late_payment"
	TxStatusInvalidSignature = "invalid_signature"
	TxStatusValidationError  = "validation_error"
)

// Values for incoming_transactions.matched_by.
const (
	MatchedByAuto   = "auto"
	MatchedByManual = "manual"
)

// IncomingTransaction mirrors the `incoming_transactions` table.  One row
// is stored per Sepay webhook delivery; the transaction code acts as the
// global deduplication key so redeliveries update the existing row instead
// of creating duplicates.
//
// Fields:
//
//	ID                – primary key identifier.
//	VendorID          – transaction id assigned by the payment vendor.
//	TransactionCode   – human-meaningful code, unique across all rows.
//	Amount            – transferred amount in VND.
//	Description       – free-text bank transfer description.
//	AccountNumber     – source account number, may be empty.
//	BankLabel         – bank or gateway label reported by the vendor.
//	TransferredAt     – when the transfer happened according to the bank.
//	TransferType      – "in" or "out".
//	RawPayload        – original webhook body, kept for audit.
//	Status            – one of the TxStatus* constants.
//	MatchedBookingID  – booking the transaction settled, nil until matched.
//	MatchedBookingType – booking namespace of the match, nil until matched.
//	MatchedBy         – "auto" or "manual", nil until matched.
//	MatchedAt         – when the match was committed.
//	BankAccountID     – resolved platform bank account, nil when unknown.
type IncomingTransaction struct {
	ID                 uint64          // incoming_transactions.id
	VendorID           string          // incoming_transactions.vendor_id
	TransactionCode    string          // incoming_transactions.transaction_code
	Amount             decimal.Decimal // incoming_transactions.amount
	Description        string          // incoming_transactions.description
	AccountNumber      string          // incoming_transactions.account_number
	BankLabel          string          // incoming_transactions.bank_label
	TransferredAt      *time.Time      // incoming_transactions.transferred_at (nullable)
	TransferType       string          // incoming_transactions.transfer_type
	RawPayload         string          // incoming_transactions.raw_payload
	Status             string          // incoming_transactions.status
	MatchedBookingID   *uint64         // incoming_transactions.matched_booking_id (nullable)
	MatchedBookingType *string         // incoming_transactions.matched_booking_type (nullable)
	MatchedBy          *string         // incoming_transactions.matched_by (nullable)
	MatchedAt          *time.Time      // incoming_transactions.matched_at (nullable)
	BankAccountID      *uint64         // incoming_transactions.bank_account_id (nullable)
	CreatedAt          time.Time       // incoming_transactions.created_at
	UpdatedAt          time.Time       // incoming_transactions.updated_at
}
