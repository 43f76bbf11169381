package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/lehoangnam/glamping-reconciliation/internal/alert"
	"github.com/lehoangnam/glamping-reconciliation/internal/model"
	"github.com/lehoangnam/glamping-reconciliation/internal/reconcile"
)

// Reconciler is the handler's view of the reconciliation core.
type Reconciler interface {
	Process(ctx context.Context, n reconcile.Notification) (reconcile.Result, error)
}

// RejectionSink records deliveries that failed signature or payload
// validation so every attempt stays auditable.
type RejectionSink interface {
	RecordRejected(ctx context.Context, t *model.IncomingTransaction) error
}

// WebhookHandler terminates Sepay webhook deliveries.  It verifies the
// HMAC signature, collapses the vendor's two payload dialects into one
// normalized form and hands the result to the reconciliation core.
type WebhookHandler struct {
	reconciler Reconciler
	rejections RejectionSink
	monitor    *alert.Monitor
	secret     string
}

// NewWebhookHandler builds a WebhookHandler.  secret may be empty, which
// disables signature verification.  rejections and monitor may be nil.
func NewWebhookHandler(r Reconciler, rejections RejectionSink, monitor *alert.Monitor, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: r, rejections: rejections, monitor: monitor, secret: secret}
}

// sepayPayload accepts both field dialects Sepay has shipped: the current
// camelCase names and the snake_case names older integrations still send.
// Numbers arrive as json.Number so amounts survive as exact decimals.
type sepayPayload struct {
	ID            json.Number `json:"id"`
	ReferenceCode string      `json:"referenceCode"`
	TxCode        string      `json:"transaction_code"`
	TransferAmt   json.Number `json:"transferAmount"`
	Amount        json.Number `json:"amount"`
	Content       string      `json:"content"`
	Description   string      `json:"description"`
	AccountNumber string      `json:"accountNumber"`
	AccountNumAlt string      `json:"account_number"`
	Gateway       string      `json:"gateway"`
	BankName      string      `json:"bank_name"`
	TxDate        string      `json:"transactionDate"`
	TxDateAlt     string      `json:"transaction_date"`
	TransferType  string      `json:"transferType"`
}

// Receive handles POST /v1/webhooks/sepay.  Business outcomes always
// answer 200; only transport faults use 401/400/500.
func (h *WebhookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "unreadable body"})
	}

	if h.secret != "" {
		sig := c.Request().Header.Get("x-sepay-signature")
		if !verifySignature(h.secret, body, sig) {
			h.reject(ctx, body, model.TxStatusInvalidSignature, alert.KindSignature)
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid signature"})
		}
	}

	var p sepayPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		h.reject(ctx, body, model.TxStatusValidationError, alert.KindValidation)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "malformed payload"})
	}

	n, verr := normalize(p, body)
	if verr != "" {
		h.reject(ctx, body, model.TxStatusValidationError, alert.KindValidation)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": verr})
	}

	res, err := h.reconciler.Process(ctx, n)
	if err != nil {
		log.Printf("webhook: reconciliation failed for code %q: %v", n.TransactionCode, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal error"})
	}
	if h.monitor != nil {
		h.monitor.Success(ctx)
	}
	return c.JSON(http.StatusOK, responseBody(res))
}

// responseBody maps a reconciliation result to the wire contract the
// vendor's retry logic keys off.
func responseBody(res reconcile.Result) echo.Map {
	switch {
	case res.Matched:
		return echo.Map{
			"success":           true,
			"matched":           true,
			"booking_reference": res.BookingReference,
			"transaction_code":  res.TransactionCode,
			"booking_type":      string(res.BookingType),
		}
	case res.LatePayment:
		return echo.Map{
			"success":           true,
			"matched":           false,
			"late_payment":      true,
			"booking_reference": res.BookingReference,
			"booking_type":      string(res.BookingType),
		}
	default:
		return echo.Map{
			"success":          true,
			"matched":          false,
			"transaction_code": res.TransactionCode,
		}
	}
}

// verifySignature recomputes the HMAC-SHA256 of the raw body and compares
// it against the presented header in constant time.  A missing header
// counts as a failure when a secret is configured.
func verifySignature(secret string, body []byte, presented string) bool {
	if presented == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(presented))))
}

// normalize collapses the dual payload dialect into the canonical
// Notification.  It returns a non-empty error string when a required
// field is missing or unparseable.
func normalize(p sepayPayload, raw []byte) (reconcile.Notification, string) {
	amountSrc := p.TransferAmt
	if amountSrc == "" {
		amountSrc = p.Amount
	}
	if amountSrc == "" {
		return reconcile.Notification{}, "missing amount"
	}
	amount, err := decimal.NewFromString(amountSrc.String())
	if err != nil {
		return reconcile.Notification{}, "invalid amount"
	}

	desc := p.Content
	if desc == "" {
		desc = p.Description
	}
	if desc == "" {
		return reconcile.Notification{}, "missing description"
	}

	code := p.ReferenceCode
	if code == "" {
		code = p.TxCode
	}
	account := p.AccountNumber
	if account == "" {
		account = p.AccountNumAlt
	}
	bank := p.Gateway
	if bank == "" {
		bank = p.BankName
	}
	dateSrc := p.TxDate
	if dateSrc == "" {
		dateSrc = p.TxDateAlt
	}

	return reconcile.Notification{
		VendorID:        p.ID.String(),
		TransactionCode: code,
		Amount:          amount,
		Description:     desc,
		AccountNumber:   account,
		BankLabel:       bank,
		TransferredAt:   parseVendorTime(dateSrc),
		TransferType:    p.TransferType,
		Raw:             string(raw),
	}, ""
}

// parseVendorTime parses the timestamp formats Sepay has been observed to
// send.  Unparseable values become nil rather than failing the delivery.
func parseVendorTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// reject files a terminal audit row for a refused delivery and feeds the
// failure monitor.  Both are best-effort: a rejection must never turn
// into a 500.
func (h *WebhookHandler) reject(ctx context.Context, body []byte, status, kind string) {
	if h.rejections != nil {
		err := h.rejections.RecordRejected(ctx, &model.IncomingTransaction{
			Amount:      decimal.Zero,
			Description: "rejected delivery",
			RawPayload:  string(body),
			Status:      status,
		})
		if err != nil {
			log.Printf("webhook: audit row for %s delivery: %v", status, err)
		}
	}
	if h.monitor != nil {
		h.monitor.Failure(ctx, kind)
	}
}
