package reconcile

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
	"github.com/lehoangnam/glamping-reconciliation/internal/repository"
)

// ----- fakes -----

type fakeTxStore struct {
	rows   map[uint64]*model.IncomingTransaction
	byCode map[string]uint64
	nextID uint64
}

var _ TransactionStore = (*fakeTxStore)(nil)

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{rows: map[uint64]*model.IncomingTransaction{}, byCode: map[string]uint64{}}
}

func (f *fakeTxStore) GetByCode(_ context.Context, code string) (*model.IncomingTransaction, error) {
	id, ok := f.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f.rows[id]
	return &cp, nil
}

func (f *fakeTxStore) GetByID(_ context.Context, id uint64) (*model.IncomingTransaction, error) {
	t, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTxStore) Create(_ context.Context, t *model.IncomingTransaction) error {
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.rows[t.ID] = &cp
	f.byCode[t.TransactionCode] = t.ID
	return nil
}

func (f *fakeTxStore) UpdatePayload(_ context.Context, t *model.IncomingTransaction) error {
	if cur, ok := f.rows[t.ID]; ok && cur.Status == model.TxStatusPending {
		cp := *t
		cp.Status = cur.Status
		f.rows[t.ID] = &cp
	}
	return nil
}

func (f *fakeTxStore) ClaimTx(_ context.Context, _ *sql.Tx, id uint64, status string, bookingID *uint64, bookingType *string, matchedBy string) (bool, error) {
	cur, ok := f.rows[id]
	if !ok || cur.Status != model.TxStatusPending || cur.MatchedBookingID != nil {
		return false, nil
	}
	cur.Status = status
	cur.MatchedBookingID = bookingID
	cur.MatchedBookingType = bookingType
	cur.MatchedBy = &matchedBy
	now := time.Now().UTC()
	cur.MatchedAt = &now
	return true, nil
}

type fakeBookingStore struct {
	kind  model.BookingType
	byRef map[string]*model.Booking
}

var _ BookingStore = (*fakeBookingStore)(nil)

func newFakeBookingStore(kind model.BookingType) *fakeBookingStore {
	return &fakeBookingStore{kind: kind, byRef: map[string]*model.Booking{}}
}

func (f *fakeBookingStore) add(b *model.Booking) { b.Type = f.kind; f.byRef[b.Reference] = b }

func (f *fakeBookingStore) Type() model.BookingType { return f.kind }

func (f *fakeBookingStore) FindByReference(_ context.Context, ref string) (*model.Booking, error) {
	b, ok := f.byRef[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) UpdateStatusTx(_ context.Context, _ *sql.Tx, bookingID uint64, bookingStatus, paymentStatus string, paidAmount decimal.Decimal, confirmedAt *time.Time) error {
	for _, b := range f.byRef {
		if b.ID == bookingID {
			b.BookingStatus = bookingStatus
			b.PaymentStatus = paymentStatus
			b.AmountPaid = b.AmountPaid.Add(paidAmount)
			if confirmedAt != nil {
				b.ConfirmedAt = confirmedAt
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakePaymentStore struct {
	entries []*model.Payment
	nextID  uint64
}

var _ PaymentStore = (*fakePaymentStore)(nil)

func (f *fakePaymentStore) CreateTx(_ context.Context, _ *sql.Tx, p *model.Payment) error {
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakePaymentStore) UpsertForBookingTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	for _, e := range f.entries {
		if e.BookingID == p.BookingID && e.BookingType == p.BookingType && e.Status == model.PaymentEntryPending {
			e.Method = p.Method
			e.Amount = p.Amount
			e.Status = p.Status
			e.ExternalRef = p.ExternalRef
			e.Note = p.Note
			e.PaidAt = p.PaidAt
			return nil
		}
	}
	return f.CreateTx(ctx, tx, p)
}

func (f *fakePaymentStore) SumPaidTx(_ context.Context, _ *sql.Tx, bookingID uint64, bookingType model.BookingType) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.BookingID == bookingID && e.BookingType == bookingType &&
			(e.Status == model.PaymentEntryPaid || e.Status == model.PaymentEntryCompleted) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

type recordedNotification struct {
	role, event string
	customerID  uint64
}

type fakeNotifier struct{ sent []recordedNotification }

func (f *fakeNotifier) NotifyCustomer(customerID uint64, event string, _ map[string]interface{}) {
	f.sent = append(f.sent, recordedNotification{customerID: customerID, event: event})
}

func (f *fakeNotifier) NotifyRole(role string, event string, _ map[string]interface{}) {
	f.sent = append(f.sent, recordedNotification{role: role, event: event})
}

type fakeCommission struct{ bookings []uint64 }

func (f *fakeCommission) Recalculate(_ context.Context, bookingID uint64) error {
	f.bookings = append(f.bookings, bookingID)
	return nil
}

// ----- harness -----

type harness struct {
	svc        *Service
	txs        *fakeTxStore
	camping    *fakeBookingStore
	glamping   *fakeBookingStore
	payments   *fakePaymentStore
	notifier   *fakeNotifier
	commission *fakeCommission
}

func newHarness() *harness {
	h := &harness{
		txs:        newFakeTxStore(),
		camping:    newFakeBookingStore(model.BookingTypeCamping),
		glamping:   newFakeBookingStore(model.BookingTypeGlamping),
		payments:   &fakePaymentStore{},
		notifier:   &fakeNotifier{},
		commission: &fakeCommission{},
	}
	h.svc = New(Deps{
		Transactions: h.txs,
		Camping:      h.camping,
		Glamping:     h.glamping,
		Payments:     h.payments,
		Notifier:     h.notifier,
		Commission:   h.commission,
	})
	return h
}

func notification(code, desc string, amount int64) Notification {
	return Notification{
		VendorID:        "v-" + code,
		TransactionCode: code,
		Amount:          vnd(amount),
		Description:     desc,
		AccountNumber:   "0071000123456",
		BankLabel:       "Vietcombank",
		TransferType:    "in",
		Raw:             `{}`,
	}
}

// ----- tests -----

func TestProcessDepositPayment(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002", CustomerID: 42,
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})

	res, err := h.svc.Process(context.Background(), notification("FT001", "CK GH25000002", 1_000_000))
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, OutcomeDeposit, res.Outcome)
	require.Equal(t, "GH25000002", res.BookingReference)
	require.Equal(t, model.BookingTypeGlamping, res.BookingType)

	b := h.glamping.byRef["GH25000002"]
	require.Equal(t, model.BookingStatusConfirmed, b.BookingStatus)
	require.Equal(t, model.PaymentStatusDepositPaid, b.PaymentStatus)
	require.NotNil(t, b.ConfirmedAt)
	require.Len(t, h.payments.entries, 1)
	require.Equal(t, "FT001", h.payments.entries[0].ExternalRef)

	trx := h.txs.rows[1]
	require.Equal(t, model.TxStatusMatched, trx.Status)
	require.Equal(t, model.MatchedByAuto, *trx.MatchedBy)
}

func TestProcessIdempotency(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002", CustomerID: 42,
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})
	n := notification("FT001", "CK GH25000002", 1_000_000)

	first, err := h.svc.Process(context.Background(), n)
	require.NoError(t, err)
	require.True(t, first.Matched)
	require.False(t, first.Duplicate)

	second, err := h.svc.Process(context.Background(), n)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.True(t, second.Matched)
	require.Equal(t, "GH25000002", second.BookingReference)
	// The replay must not invent a tolerance band the stored row does not
	// carry; it reports the match without naming deposit or full.
	require.Equal(t, Outcome(""), second.Outcome)

	// Exactly one ledger entry and one terminal transaction row.
	require.Len(t, h.payments.entries, 1)
	require.Len(t, h.txs.rows, 1)
	require.Equal(t, vnd(1_000_000).String(), h.glamping.byRef["GH25000002"].AmountPaid.String())
}

func TestProcessToleranceBoundary(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002",
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})

	res, err := h.svc.Process(context.Background(), notification("FT001", "GH25000002", 1_009_999))
	require.NoError(t, err)
	require.Equal(t, OutcomeDeposit, res.Outcome)

	h2 := newHarness()
	h2.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002",
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})
	res, err = h2.svc.Process(context.Background(), notification("FT002", "GH25000002", 1_010_001))
	require.NoError(t, err)
	require.Equal(t, OutcomeMismatch, res.Outcome)
	require.True(t, res.Matched)
	require.True(t, res.AmountMismatch)
	// Booking untouched, money still recorded.
	b := h2.glamping.byRef["GH25000002"]
	require.Equal(t, model.PaymentStatusPending, b.PaymentStatus)
	require.Len(t, h2.payments.entries, 1)
}

func TestProcessFullWinsOverDeposit(t *testing.T) {
	h := newHarness()
	h.camping.add(&model.Booking{
		ID: 3, Reference: "CP25000417",
		TotalAmount: vnd(2_000_000), DepositAmount: vnd(2_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})

	res, err := h.svc.Process(context.Background(), notification("FT001", "CP25000417", 2_000_000))
	require.NoError(t, err)
	require.Equal(t, OutcomeFull, res.Outcome)
	require.Equal(t, model.PaymentStatusFullyPaid, h.camping.byRef["CP25000417"].PaymentStatus)
	// Camping matches trigger commission recalculation.
	require.Equal(t, []uint64{3}, h.commission.bookings)
}

func TestProcessLatePaymentOnExpiredBooking(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 9, Reference: "GH25000010",
		TotalAmount: vnd(4_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusCancelled, PaymentStatus: model.PaymentStatusExpired,
	})

	res, err := h.svc.Process(context.Background(), notification("FT009", "GH25000010", 1_000_000))
	require.NoError(t, err)
	require.True(t, res.LatePayment)
	require.False(t, res.Matched)
	require.Equal(t, OutcomeLate, res.Outcome)

	// Booking never resurrected.
	b := h.glamping.byRef["GH25000010"]
	require.Equal(t, model.BookingStatusCancelled, b.BookingStatus)
	require.Equal(t, model.PaymentStatusExpired, b.PaymentStatus)

	// Money still traceable in the ledger, transaction terminal.
	require.Len(t, h.payments.entries, 1)
	require.Equal(t, model.TxStatusLatePayment, h.txs.rows[1].Status)

	// Operators are alerted.
	require.NotEmpty(t, h.notifier.sent)
	require.Equal(t, "payment.late", h.notifier.sent[0].event)
	require.Equal(t, "ADMIN", h.notifier.sent[0].role)
}

func TestProcessBalancePaymentPrecedence(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002", CustomerID: 42,
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000), ExtraCosts: vnd(500_000),
		BookingStatus: model.BookingStatusConfirmed, PaymentStatus: model.PaymentStatusDepositPaid,
	})
	// A settled deposit already sits in the ledger.
	require.NoError(t, h.payments.CreateTx(context.Background(), nil, &model.Payment{
		BookingID: 7, BookingType: model.BookingTypeGlamping,
		Amount: vnd(1_000_000), Status: model.PaymentEntryPaid,
	}))

	// The description also contains the bare reference; the balance tag
	// must take precedence over a fresh deposit match.
	res, err := h.svc.Process(context.Background(), notification("FT010", "IB GH25000002_balance DEPOSIT", 4_500_000))
	require.NoError(t, err)
	require.Equal(t, OutcomeBalance, res.Outcome)
	require.True(t, res.Matched)
	require.False(t, res.AmountMismatch)

	b := h.glamping.byRef["GH25000002"]
	require.Equal(t, model.PaymentStatusFullyPaid, b.PaymentStatus)

	require.Len(t, h.payments.entries, 2)
	require.Equal(t, model.NoteBalancePayment, h.payments.entries[1].Note)
}

func TestProcessBalanceDiscrepancyStillSettles(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002",
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusConfirmed, PaymentStatus: model.PaymentStatusDepositPaid,
	})

	res, err := h.svc.Process(context.Background(), notification("FT011", "GH25000002_balance", 1_234_567))
	require.NoError(t, err)
	require.Equal(t, OutcomeBalance, res.Outcome)
	require.True(t, res.AmountMismatch)
	require.Equal(t, model.PaymentStatusFullyPaid, h.glamping.byRef["GH25000002"].PaymentStatus)
}

func TestProcessUnmatchedStaysPendingAndRetries(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002",
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})

	// First delivery has no usable reference.
	res, err := h.svc.Process(context.Background(), notification("FT001", "chuyen khoan", 1_000_000))
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.False(t, res.Duplicate)
	require.Equal(t, OutcomeUnmatched, res.Outcome)
	require.Equal(t, model.TxStatusPending, h.txs.rows[1].Status)
	require.Empty(t, h.payments.entries)

	// The vendor redelivers with a corrected description: same code, and
	// the pending row is re-attempted instead of duplicated.
	res, err = h.svc.Process(context.Background(), notification("FT001", "CK GH25000002", 1_000_000))
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, OutcomeDeposit, res.Outcome)
	require.Len(t, h.txs.rows, 1)
	require.Len(t, h.payments.entries, 1)
}

func TestProcessUnknownReferenceStaysPending(t *testing.T) {
	h := newHarness()
	res, err := h.svc.Process(context.Background(), notification("FT001", "CK GH99999999", 1_000_000))
	require.NoError(t, err)
	require.False(t, res.Matched)
	require.Equal(t, OutcomeUnmatched, res.Outcome)
	require.Equal(t, model.TxStatusPending, h.txs.rows[1].Status)
}

func TestProcessUpgradesPrecreatedPendingLedgerRow(t *testing.T) {
	h := newHarness()
	h.glamping.add(&model.Booking{
		ID: 7, Reference: "GH25000002",
		TotalAmount: vnd(5_000_000), DepositAmount: vnd(1_000_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})
	// The booking flow pre-created a pending payment row.
	require.NoError(t, h.payments.CreateTx(context.Background(), nil, &model.Payment{
		BookingID: 7, BookingType: model.BookingTypeGlamping,
		Amount: vnd(1_000_000), Status: model.PaymentEntryPending,
	}))

	_, err := h.svc.Process(context.Background(), notification("FT001", "GH25000002", 1_000_000))
	require.NoError(t, err)

	// The pending row was upgraded in place, not duplicated.
	require.Len(t, h.payments.entries, 1)
	require.Equal(t, model.PaymentEntryPaid, h.payments.entries[0].Status)
	require.Equal(t, "FT001", h.payments.entries[0].ExternalRef)
}

func TestManualMatch(t *testing.T) {
	h := newHarness()
	h.camping.add(&model.Booking{
		ID: 3, Reference: "CP25000417",
		TotalAmount: vnd(2_000_000), DepositAmount: vnd(500_000),
		BookingStatus: model.BookingStatusPending, PaymentStatus: model.PaymentStatusPending,
	})
	// Filed as unmatched first.
	_, err := h.svc.Process(context.Background(), notification("FT001", "khong ro noi dung", 500_000))
	require.NoError(t, err)

	res, err := h.svc.ManualMatch(context.Background(), 1, "CP25000417")
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, OutcomeDeposit, res.Outcome)
	require.Equal(t, model.MatchedByManual, *h.txs.rows[1].MatchedBy)

	// Terminal transactions cannot be manually re-matched.
	_, err = h.svc.ManualMatch(context.Background(), 1, "CP25000417")
	require.ErrorIs(t, err, repository.ErrConflict)
}
