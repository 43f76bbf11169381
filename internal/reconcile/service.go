package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
	"github.com/lehoangnam/glamping-reconciliation/internal/repository"
)

// TransactionStore is the reconciliation core's view of the
// incoming_transactions table.  ClaimTx must implement atomic
// "claim if still pending" semantics (status precondition on the update).
type TransactionStore interface {
	GetByCode(ctx context.Context, code string) (*model.IncomingTransaction, error)
	GetByID(ctx context.Context, id uint64) (*model.IncomingTransaction, error)
	Create(ctx context.Context, t *model.IncomingTransaction) error
	UpdatePayload(ctx context.Context, t *model.IncomingTransaction) error
	ClaimTx(ctx context.Context, tx *sql.Tx, id uint64, status string, bookingID *uint64, bookingType *string, matchedBy string) (bool, error)
}

// BookingStore is the per-namespace booking capability.  Two
// implementations exist, one per booking table, selected by the namespace
// prefix the extractor detected.
type BookingStore interface {
	Type() model.BookingType
	FindByReference(ctx context.Context, reference string) (*model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, bookingStatus, paymentStatus string, paidAmount decimal.Decimal, confirmedAt *time.Time) error
}

// PaymentStore writes and aggregates ledger entries.
type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	UpsertForBookingTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64, bookingType model.BookingType) (decimal.Decimal, error)
}

// AccountResolver maps a source account number to a platform bank account.
type AccountResolver interface {
	FindIDByNumber(ctx context.Context, accountNumber string) (uint64, error)
}

// Notifier dispatches customer and operator notifications.  Implementations
// are fire-and-forget: they log their own failures and never block or fail
// the reconciliation outcome.
type Notifier interface {
	NotifyCustomer(customerID uint64, event string, data map[string]interface{})
	NotifyRole(role string, event string, data map[string]interface{})
}

// CommissionRecalculator is invoked after commit for camping bookings so
// partner commissions reflect the new payment state.  Best-effort.
type CommissionRecalculator interface {
	Recalculate(ctx context.Context, bookingID uint64) error
}

// Notification is the canonical form of one webhook delivery after the
// ingress layer has collapsed the vendor's field-name variants.
type Notification struct {
	VendorID        string
	TransactionCode string
	Amount          decimal.Decimal
	Description     string
	AccountNumber   string
	BankLabel       string
	TransferredAt   *time.Time
	TransferType    string
	Raw             string
}

// Result describes the outcome of one reconciliation attempt.  Every field
// is a valid business outcome, not a fault; infrastructure failures are
// returned as errors instead.
type Result struct {
	Outcome          Outcome
	Matched          bool
	LatePayment      bool
	Duplicate        bool
	AmountMismatch   bool
	BookingReference string
	BookingType      model.BookingType
	TransactionCode  string
}

// Deps collects the collaborators of a Service.  DB, Transactions, Camping,
// Glamping and Payments are required; the rest may be nil and the
// corresponding side effects are skipped.
type Deps struct {
	DB           *sql.DB
	Transactions TransactionStore
	Camping      BookingStore
	Glamping     BookingStore
	Payments     PaymentStore
	Accounts     AccountResolver
	Notifier     Notifier
	Commission   CommissionRecalculator
	Tolerance    decimal.Decimal
}

// Service runs reconciliation attempts.  Each attempt operates inside one
// database transaction; the incoming_transactions row is the coordination
// point, so no in-process state is kept and any number of instances can
// run concurrently against the same store.
type Service struct {
	db           *sql.DB
	transactions TransactionStore
	bookings     map[model.BookingType]BookingStore
	payments     PaymentStore
	accounts     AccountResolver
	notifier     Notifier
	commission   CommissionRecalculator
	tolerance    decimal.Decimal
}

// New constructs a Service from its dependencies.  A zero Tolerance falls
// back to DefaultTolerance.
func New(d Deps) *Service {
	if d.Transactions == nil || d.Camping == nil || d.Glamping == nil || d.Payments == nil {
		panic("nil store passed to reconcile.New")
	}
	tol := d.Tolerance
	if tol.IsZero() {
		tol = DefaultTolerance
	}
	return &Service{
		db:           d.DB,
		transactions: d.Transactions,
		bookings: map[model.BookingType]BookingStore{
			model.BookingTypeCamping:  d.Camping,
			model.BookingTypeGlamping: d.Glamping,
		},
		payments:   d.Payments,
		accounts:   d.Accounts,
		notifier:   d.Notifier,
		commission: d.Commission,
		tolerance:  tol,
	}
}

// errClaimLost signals that a concurrent attempt reached the terminal
// update first; the caller short-circuits with the duplicate response.
var errClaimLost = errors.New("transaction already claimed")

// Process runs one reconciliation attempt for a normalized webhook
// delivery.  It is safe to call concurrently and safe to call repeatedly
// with the same transaction code: completed matches short-circuit, pending
// rows are re-attempted with the fresh payload.
func (s *Service) Process(ctx context.Context, n Notification) (Result, error) {
	trx, err := s.transactions.GetByCode(ctx, n.TransactionCode)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		trx = s.rowFromNotification(ctx, n)
		if err := s.transactions.Create(ctx, trx); err != nil {
			return Result{}, fmt.Errorf("record transaction: %w", err)
		}
	case err != nil:
		return Result{}, fmt.Errorf("lookup transaction: %w", err)
	default:
		if trx.Status != model.TxStatusPending || trx.MatchedBookingID != nil {
			// Terminal or already matched: duplicate delivery, do not
			// reprocess.
			return s.duplicateResult(trx), nil
		}
		// Pending retry: refresh the stored payload (the redelivery may
		// carry a corrected description) and re-attempt the match.
		s.applyNotification(ctx, trx, n)
		if err := s.transactions.UpdatePayload(ctx, trx); err != nil {
			return Result{}, fmt.Errorf("refresh transaction payload: %w", err)
		}
	}
	return s.match(ctx, trx, model.MatchedByAuto, nil)
}

// ManualMatch applies an operator-chosen booking reference to a pending
// transaction.  The transaction must still be pending; terminal
// transactions return repository.ErrConflict.  An unparseable reference
// returns repository.ErrNotFound.
func (s *Service) ManualMatch(ctx context.Context, transactionID uint64, bookingReference string) (Result, error) {
	trx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return Result{}, err
	}
	if trx.Status != model.TxStatusPending || trx.MatchedBookingID != nil {
		return Result{}, repository.ErrConflict
	}
	cand := ExtractReference(bookingReference)
	if cand == nil {
		return Result{}, repository.ErrNotFound
	}
	return s.match(ctx, trx, model.MatchedByManual, cand)
}

// match resolves a candidate booking and drives the classification state
// machine.  cand may be nil, in which case the reference is extracted from
// the stored description.
func (s *Service) match(ctx context.Context, trx *model.IncomingTransaction, matchedBy string, cand *MatchCandidate) (Result, error) {
	if cand == nil {
		cand = ExtractReference(trx.Description)
	}
	unmatched := Result{Outcome: OutcomeUnmatched, TransactionCode: trx.TransactionCode}
	if cand == nil {
		return unmatched, nil
	}
	store := s.bookings[cand.Type]
	booking, err := store.FindByReference(ctx, cand.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		return unmatched, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("lookup booking %s: %w", cand.Reference, err)
	}

	var res Result
	switch {
	case booking.IsExpired():
		res, err = s.applyLatePayment(ctx, trx, booking, matchedBy)
	case cand.IsBalance || (matchedBy == model.MatchedByManual &&
		booking.Type == model.BookingTypeGlamping &&
		booking.PaymentStatus == model.PaymentStatusDepositPaid):
		res, err = s.applyBalancePayment(ctx, trx, booking, matchedBy)
	default:
		res, err = s.applyRegularPayment(ctx, trx, booking, matchedBy)
	}
	if errors.Is(err, errClaimLost) {
		// A concurrent delivery committed first; report its outcome.
		fresh, ferr := s.transactions.GetByID(ctx, trx.ID)
		if ferr != nil {
			return Result{}, ferr
		}
		return s.duplicateResult(fresh), nil
	}
	return res, err
}

// applyRegularPayment handles deposit/full/mismatch transfers against a
// live booking.  The claim, booking update and ledger write share one
// transaction; a failure anywhere rolls back everything so the vendor's
// retry can redo the attempt from scratch.
func (s *Service) applyRegularPayment(ctx context.Context, trx *model.IncomingTransaction, booking *model.Booking, matchedBy string) (Result, error) {
	cls := ClassifyRegular(booking, trx.Amount, s.tolerance)
	if cls.Outcome == OutcomeUnmatched {
		// Booking cannot accept money right now (e.g. already fully
		// paid); leave the transaction pending for manual review.
		return Result{Outcome: OutcomeUnmatched, TransactionCode: trx.TransactionCode}, nil
	}
	now := time.Now().UTC()
	btype := string(booking.Type)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimed, err := s.transactions.ClaimTx(ctx, tx, trx.ID, model.TxStatusMatched, &booking.ID, &btype, matchedBy)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}
		entry := &model.Payment{
			BookingID:   booking.ID,
			BookingType: booking.Type,
			Method:      model.PaymentMethodBankTransfer,
			Amount:      trx.Amount,
			Status:      model.PaymentEntryPaid,
			ExternalRef: trx.TransactionCode,
			PaidAt:      &now,
		}
		if cls.Outcome == OutcomeMismatch {
			// Amount fits no tolerance band: keep the booking untouched
			// but still record the money and bind the transaction so it
			// cannot re-match elsewhere.  Operators reconcile by hand.
			return s.payments.CreateTx(ctx, tx, entry)
		}
		confirmedAt := &now
		if !cls.Confirm {
			confirmedAt = nil
		}
		if err := s.bookings[booking.Type].UpdateStatusTx(ctx, tx, booking.ID, cls.BookingStatus, cls.PaymentStatus, trx.Amount, confirmedAt); err != nil {
			return err
		}
		return s.payments.UpsertForBookingTx(ctx, tx, entry)
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Outcome:          cls.Outcome,
		Matched:          true,
		AmountMismatch:   cls.Outcome == OutcomeMismatch,
		BookingReference: booking.Reference,
		BookingType:      booking.Type,
		TransactionCode:  trx.TransactionCode,
	}
	s.afterCommit(ctx, trx, booking, res)
	return res, nil
}

// applyBalancePayment settles the outstanding balance of a glamping
// booking that already paid its deposit.  Balance transfers are accepted
// even when the amount is off; the discrepancy is only flagged.
func (s *Service) applyBalancePayment(ctx context.Context, trx *model.IncomingTransaction, booking *model.Booking, matchedBy string) (Result, error) {
	if booking.Type != model.BookingTypeGlamping || booking.PaymentStatus != model.PaymentStatusDepositPaid {
		return Result{Outcome: OutcomeUnmatched, TransactionCode: trx.TransactionCode}, nil
	}
	now := time.Now().UTC()
	btype := string(booking.Type)
	var cls Classification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimed, err := s.transactions.ClaimTx(ctx, tx, trx.ID, model.TxStatusMatched, &booking.ID, &btype, matchedBy)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}
		paid, err := s.payments.SumPaidTx(ctx, tx, booking.ID, booking.Type)
		if err != nil {
			return err
		}
		outstanding := booking.TotalAmount.Add(booking.ExtraCosts).Sub(paid)
		cls = ClassifyBalance(booking, outstanding, trx.Amount, s.tolerance)
		if err := s.bookings[booking.Type].UpdateStatusTx(ctx, tx, booking.ID, cls.BookingStatus, cls.PaymentStatus, trx.Amount, nil); err != nil {
			return err
		}
		return s.payments.CreateTx(ctx, tx, &model.Payment{
			BookingID:   booking.ID,
			BookingType: booking.Type,
			Method:      model.PaymentMethodBankTransfer,
			Amount:      trx.Amount,
			Status:      model.PaymentEntryPaid,
			ExternalRef: trx.TransactionCode,
			Note:        model.NoteBalancePayment,
			PaidAt:      &now,
		})
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Outcome:          OutcomeBalance,
		Matched:          true,
		AmountMismatch:   cls.Discrepancy,
		BookingReference: booking.Reference,
		BookingType:      booking.Type,
		TransactionCode:  trx.TransactionCode,
	}
	s.afterCommit(ctx, trx, booking, res)
	return res, nil
}

// applyLatePayment files money received for an expired, cancelled booking.
// The booking is never resurrected; the transaction goes terminal as
// late_payment and a ledger entry keeps the amount traceable for refund or
// manual confirmation.
func (s *Service) applyLatePayment(ctx context.Context, trx *model.IncomingTransaction, booking *model.Booking, matchedBy string) (Result, error) {
	now := time.Now().UTC()
	btype := string(booking.Type)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimed, err := s.transactions.ClaimTx(ctx, tx, trx.ID, model.TxStatusLatePayment, &booking.ID, &btype, matchedBy)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}
		return s.payments.CreateTx(ctx, tx, &model.Payment{
			BookingID:   booking.ID,
			BookingType: booking.Type,
			Method:      model.PaymentMethodBankTransfer,
			Amount:      trx.Amount,
			Status:      model.PaymentEntryPaid,
			ExternalRef: trx.TransactionCode,
			Note:        string(OutcomeLate),
			PaidAt:      &now,
		})
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Outcome:          OutcomeLate,
		LatePayment:      true,
		BookingReference: booking.Reference,
		BookingType:      booking.Type,
		TransactionCode:  trx.TransactionCode,
	}
	s.afterCommit(ctx, trx, booking, res)
	return res, nil
}

// afterCommit fires the best-effort side effects of a committed outcome:
// customer/operator notifications and, for camping bookings, commission
// recalculation.  Failures are logged and never unwind the outcome.
func (s *Service) afterCommit(ctx context.Context, trx *model.IncomingTransaction, booking *model.Booking, res Result) {
	if s.notifier != nil {
		data := map[string]interface{}{
			"booking_reference": res.BookingReference,
			"booking_type":      string(res.BookingType),
			"transaction_code":  res.TransactionCode,
			"amount":            trx.Amount.String(),
			"outcome":           string(res.Outcome),
		}
		switch {
		case res.LatePayment:
			s.notifier.NotifyRole("ADMIN", "payment.late", data)
		case res.AmountMismatch:
			s.notifier.NotifyRole("ADMIN", "payment.mismatch", data)
			s.notifier.NotifyCustomer(booking.CustomerID, "payment.received", data)
		default:
			s.notifier.NotifyCustomer(booking.CustomerID, "payment.confirmed", data)
		}
	}
	if s.commission != nil && res.Matched && booking.Type == model.BookingTypeCamping {
		if err := s.commission.Recalculate(ctx, booking.ID); err != nil {
			log.Printf("reconcile: commission recalculation failed for booking %d: %v", booking.ID, err)
		}
	}
}

// rowFromNotification builds a fresh pending transaction row, resolving
// the source bank account when possible.
func (s *Service) rowFromNotification(ctx context.Context, n Notification) *model.IncomingTransaction {
	trx := &model.IncomingTransaction{Status: model.TxStatusPending}
	s.applyNotification(ctx, trx, n)
	return trx
}

// applyNotification copies payload fields from a normalized delivery onto
// a transaction row.
func (s *Service) applyNotification(ctx context.Context, trx *model.IncomingTransaction, n Notification) {
	trx.VendorID = n.VendorID
	trx.TransactionCode = n.TransactionCode
	trx.Amount = n.Amount
	trx.Description = n.Description
	trx.AccountNumber = n.AccountNumber
	trx.BankLabel = n.BankLabel
	trx.TransferredAt = n.TransferredAt
	trx.TransferType = n.TransferType
	trx.RawPayload = n.Raw
	if s.accounts != nil && n.AccountNumber != "" {
		if id, err := s.accounts.FindIDByNumber(ctx, n.AccountNumber); err == nil {
			trx.BankAccountID = &id
		}
	}
}

// duplicateResult rebuilds the response for a delivery whose transaction
// already reached a terminal state.  The booking reference is recovered
// from the stored description so retries always see a consistent body.
func (s *Service) duplicateResult(trx *model.IncomingTransaction) Result {
	res := Result{
		Duplicate:       true,
		TransactionCode: trx.TransactionCode,
	}
	if cand := ExtractReference(trx.Description); cand != nil {
		res.BookingReference = cand.Reference
		res.BookingType = cand.Type
	} else if trx.MatchedBookingType != nil {
		res.BookingType = model.BookingType(*trx.MatchedBookingType)
	}
	switch trx.Status {
	case model.TxStatusMatched:
		// The stored row does not record which tolerance band the original
		// delivery hit, so the replay reports only that the money landed.
		res.Matched = true
	case model.TxStatusLatePayment:
		res.Outcome = OutcomeLate
		res.LatePayment = true
	default:
		res.Outcome = OutcomeUnmatched
	}
	return res
}

// withTx runs fn inside a database transaction.  With no database handle
// (store fakes in tests) fn runs directly and the stores' own claim
// semantics provide atomicity.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fn(nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
