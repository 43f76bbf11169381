package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lehoangnam/glamping-reconciliation/internal/model"
	"github.com/lehoangnam/glamping-reconciliation/internal/reconcile"
	"github.com/lehoangnam/glamping-reconciliation/internal/repository"
)

type stubMatcher struct {
	gotID  uint64
	gotRef string
	result reconcile.Result
	err    error
}

func (s *stubMatcher) ManualMatch(_ context.Context, id uint64, ref string) (reconcile.Result, error) {
	s.gotID, s.gotRef = id, ref
	return s.result, s.err
}

type stubLister struct {
	rows      []model.IncomingTransaction
	gotStatus string
}

func (s *stubLister) GetByID(_ context.Context, id uint64) (*model.IncomingTransaction, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubLister) ListByStatus(_ context.Context, status string, _, _ int) ([]model.IncomingTransaction, error) {
	s.gotStatus = status
	return s.rows, nil
}

func adminRequest(h echo.HandlerFunc, method, target, body, paramID string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramID != "" {
		c.SetParamNames("id")
		c.SetParamValues(paramID)
	}
	_ = h(c)
	return rec
}

func TestAdminManualMatch(t *testing.T) {
	t.Run("matched", func(t *testing.T) {
		m := &stubMatcher{result: reconcile.Result{
			Outcome:          reconcile.OutcomeBalance,
			Matched:          true,
			BookingReference: "GH25000002",
			BookingType:      model.BookingTypeGlamping,
		}}
		h := NewAdminTransactionHandler(&stubLister{}, m)

		rec := adminRequest(h.Match, http.MethodPost, "/v1/admin/transactions/7/match",
			`{"booking_reference":"GH25000002"}`, "7")

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, uint64(7), m.gotID)
		require.Equal(t, "GH25000002", m.gotRef)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, true, resp["matched"])
		require.Equal(t, "glamping", resp["booking_type"])
	})

	t.Run("already settled", func(t *testing.T) {
		h := NewAdminTransactionHandler(&stubLister{}, &stubMatcher{err: repository.ErrConflict})
		rec := adminRequest(h.Match, http.MethodPost, "/v1/admin/transactions/7/match",
			`{"booking_reference":"GH25000002"}`, "7")
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown reference", func(t *testing.T) {
		h := NewAdminTransactionHandler(&stubLister{}, &stubMatcher{err: repository.ErrNotFound})
		rec := adminRequest(h.Match, http.MethodPost, "/v1/admin/transactions/7/match",
			`{"booking_reference":"XX123"}`, "7")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nothing accepts the money", func(t *testing.T) {
		h := NewAdminTransactionHandler(&stubLister{}, &stubMatcher{result: reconcile.Result{Outcome: reconcile.OutcomeUnmatched}})
		rec := adminRequest(h.Match, http.MethodPost, "/v1/admin/transactions/7/match",
			`{"booking_reference":"GH25000002"}`, "7")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing reference", func(t *testing.T) {
		h := NewAdminTransactionHandler(&stubLister{}, &stubMatcher{})
		rec := adminRequest(h.Match, http.MethodPost, "/v1/admin/transactions/7/match", `{}`, "7")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminListAndGet(t *testing.T) {
	lister := &stubLister{rows: []model.IncomingTransaction{{
		ID:              4,
		TransactionCode: "FT1",
		Amount:          decimal.NewFromInt(1_000_000),
		Description:     "IB GH25000002",
		Status:          model.TxStatusPending,
		RawPayload:      `{"id":4}`,
	}}}
	h := NewAdminTransactionHandler(lister, &stubMatcher{})

	rec := adminRequest(h.List, http.MethodGet, "/v1/admin/transactions?status=pending", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pending", lister.gotStatus)
	var listResp struct {
		Transactions []transactionDTO `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Transactions, 1)
	require.Equal(t, "1000000", listResp.Transactions[0].Amount)

	rec = adminRequest(h.Get, http.MethodGet, "/v1/admin/transactions/4", "", "4")
	require.Equal(t, http.StatusOK, rec.Code)
	var getResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Equal(t, `{"id":4}`, getResp["raw_payload"])

	rec = adminRequest(h.Get, http.MethodGet, "/v1/admin/transactions/99", "", "99")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
