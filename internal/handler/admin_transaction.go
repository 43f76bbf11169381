package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
	"github.com/lehoangnam/glamping-reconciliation/internal/reconcile"
	"github.com/lehoangnam/glamping-reconciliation/internal/repository"
)

// ManualMatcher is the handler's view of the operator-driven match path.
type ManualMatcher interface {
	ManualMatch(ctx context.Context, transactionID uint64, bookingReference string) (reconcile.Result, error)
}

// TransactionLister reads incoming transactions for the admin surface.
type TransactionLister interface {
	GetByID(ctx context.Context, id uint64) (*model.IncomingTransaction, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]model.IncomingTransaction, error)
}

// AdminTransactionHandler exposes the incoming transaction audit log and
// the manual match operation to platform operators.
type AdminTransactionHandler struct {
	Transactions TransactionLister
	Matcher      ManualMatcher
}

func NewAdminTransactionHandler(t TransactionLister, m ManualMatcher) *AdminTransactionHandler {
	return &AdminTransactionHandler{Transactions: t, Matcher: m}
}

// transactionDTO is the wire form of one incoming transaction row.
type transactionDTO struct {
	ID                 uint64     `json:"id"`
	VendorID           string     `json:"vendor_id"`
	TransactionCode    string     `json:"transaction_code"`
	Amount             string     `json:"amount"`
	Description        string     `json:"description"`
	AccountNumber      string     `json:"account_number,omitempty"`
	BankLabel          string     `json:"bank_label,omitempty"`
	TransferredAt      *time.Time `json:"transferred_at,omitempty"`
	Status             string     `json:"status"`
	MatchedBookingID   *uint64    `json:"matched_booking_id,omitempty"`
	MatchedBookingType *string    `json:"matched_booking_type,omitempty"`
	MatchedBy          *string    `json:"matched_by,omitempty"`
	MatchedAt          *time.Time `json:"matched_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toTransactionDTO(t model.IncomingTransaction) transactionDTO {
	return transactionDTO{
		ID:                 t.ID,
		VendorID:           t.VendorID,
		TransactionCode:    t.TransactionCode,
		Amount:             t.Amount.String(),
		Description:        t.Description,
		AccountNumber:      t.AccountNumber,
		BankLabel:          t.BankLabel,
		TransferredAt:      t.TransferredAt,
		Status:             t.Status,
		MatchedBookingID:   t.MatchedBookingID,
		MatchedBookingType: t.MatchedBookingType,
		MatchedBy:          t.MatchedBy,
		MatchedAt:          t.MatchedAt,
		CreatedAt:          t.CreatedAt,
	}
}

// List returns transactions filtered by ?status= with ?limit=/?offset=
// paging, newest first.
func (h *AdminTransactionHandler) List(c echo.Context) error {
	status := strings.TrimSpace(c.QueryParam("status"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Transactions.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]transactionDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTransactionDTO(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// Get returns one transaction by id, including the raw webhook payload
// for incident debugging.
func (h *AdminTransactionHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Transactions.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	dto := toTransactionDTO(*t)
	return c.JSON(http.StatusOK, echo.Map{"transaction": dto, "raw_payload": t.RawPayload})
}

type manualMatchReq struct {
	BookingReference string `json:"booking_reference"`
}

// Match applies an operator-chosen booking reference to a pending
// transaction.  Terminal transactions answer 409; an unknown reference or
// booking answers 404.
func (h *AdminTransactionHandler) Match(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req manualMatchReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.BookingReference) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_reference required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Matcher.ManualMatch(ctx, id, strings.TrimSpace(req.BookingReference))
	switch {
	case err == repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction or booking not found"})
	case err == repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "transaction already settled"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "match failed"})
	}
	if !res.Matched && !res.LatePayment {
		// The reference parsed but nothing could accept the money; the
		// transaction stays pending for another attempt.
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"matched": false,
			"outcome": string(res.Outcome),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"matched":           res.Matched,
		"late_payment":      res.LatePayment,
		"outcome":           string(res.Outcome),
		"booking_reference": res.BookingReference,
		"booking_type":      string(res.BookingType),
	})
}
