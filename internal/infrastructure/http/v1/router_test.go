package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gstledger/internal/app/apptest"
	"gstledger/internal/core/types"
	v1 "gstledger/internal/infrastructure/http/v1"
	"gstledger/internal/infrastructure/http/v1/dto"
	"gstledger/internal/infrastructure/http/v1/middleware"
)

type server struct {
	*apptest.Fixture
	router *gin.Engine
}

func newServer(t *testing.T, reportRate string) *server {
	t.Helper()
	f := apptest.New(t)
	r, err := v1.NewRouter(v1.RouterConfig{
		Container:  f.Container,
		ReportRate: reportRate,
	})
	require.NoError(t, err)
	return &server{Fixture: f, router: r}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got)
}

// createProduct posts a product with 50 units of opening stock.
func (s *server) createProduct(t *testing.T, sku string) dto.ProductResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name":           sku + " laptop",
		"sku":            sku,
		"hsnCode":        "8471",
		"category":       "Electronics",
		"gstRatePercent": "18",
		"openingStock":   50,
		"purchasePrice":  "60",
		"salePrice":      "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.ProductResponse](t, w)
}

type docResp struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Status     string          `json:"status"`
	AmendsID   *string         `json:"amendsId"`
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
	Lines      []struct {
		TaxableValue decimal.Decimal `json:"taxableValue"`
	} `json:"lines"`
}

func invoiceBody(partyID, productID, date string, qty int) map[string]any {
	return map[string]any{
		"docType":        "invoice",
		"date":           date,
		"counterpartyId": partyID,
		"lines": []map[string]any{
			{"productId": productID, "quantity": qty, "rate": "100"},
		},
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestDocumentLifecycle(t *testing.T) {
	s := newServer(t, "")
	prod := s.createProduct(t, "LAP-1")

	w := s.do(t, http.MethodPost, "/api/v1/documents",
		invoiceBody(s.LocalB2B.ID.String(), prod.ID, "2024-05-10", 10))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	draft := decode[docResp](t, w)
	assert.Equal(t, "draft", draft.Status)
	assertMoney(t, "90", draft.CGST)
	assertMoney(t, "90", draft.SGST)
	assertMoney(t, "0", draft.IGST)
	assertMoney(t, "1180", draft.GrandTotal)

	w = s.do(t, http.MethodPost, "/api/v1/documents/"+draft.ID+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	posted := decode[docResp](t, w)
	assert.Equal(t, "posted", posted.Status)
	assert.Equal(t, "INV/2024-25/00001", posted.Number)

	// Posted documents are immutable.
	w = s.do(t, http.MethodPut, "/api/v1/documents/"+draft.ID, map[string]any{
		"date":           "2024-05-10",
		"counterpartyId": s.LocalB2B.ID.String(),
		"lines":          []map[string]any{{"productId": prod.ID, "quantity": 1, "rate": "100"}},
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "INVALID_DOCUMENT_STATE", decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/stock/"+prod.ID+"/balance?asOf=2024-05-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bal := decode[dto.StockBalanceResponse](t, w)
	assert.Equal(t, types.NewQuantity(40), bal.Balance)
	assert.Equal(t, "2024-05-10", bal.AsOf)
}

func TestDocumentList(t *testing.T) {
	s := newServer(t, "")
	prod := s.createProduct(t, "LAP-1")

	for _, date := range []string{"2024-05-10", "2024-06-01"} {
		w := s.do(t, http.MethodPost, "/api/v1/documents",
			invoiceBody(s.InterB2B.ID.String(), prod.ID, date, 1))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/v1/documents?docType=invoice&from=2024-06-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[dto.ListResponse[dto.DocumentSummary]](t, w)
	require.Len(t, list.Items, 1)
	assert.EqualValues(t, 1, list.TotalCount)
	assert.Equal(t, "2024-06-01", list.Items[0].Date)
	assertMoney(t, "118", list.Items[0].GrandTotal)

	w = s.do(t, http.MethodGet, "/api/v1/documents?from=June", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayments(t *testing.T) {
	s := newServer(t, "")
	prod := s.createProduct(t, "LAP-1")

	w := s.do(t, http.MethodPost, "/api/v1/documents",
		invoiceBody(s.LocalB2B.ID.String(), prod.ID, "2024-05-10", 10))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[docResp](t, w)

	// Drafts do not accept payments.
	w = s.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID+"/payments", map[string]any{
		"amount": "100", "method": "cash", "paidOn": "2024-05-11",
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID+"/payments", map[string]any{
		"amount": "1000", "method": "upi", "paidOn": "2024-05-11", "reference": "UPI-991",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pay := decode[dto.PaymentResponse](t, w)
	assert.Equal(t, "Bank", pay.AccountHead)
	assert.Equal(t, "2024-05-11", pay.PaidOn)

	w = s.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID+"/payments", map[string]any{
		"amount": "500", "method": "cash", "paidOn": "2024-05-12",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "OVERPAYMENT", decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/outstanding", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertMoney(t, "180", decode[dto.OutstandingResponse](t, w).Outstanding)

	w = s.do(t, http.MethodPost, "/api/v1/payments/"+pay.ID+"/reverse", map[string]any{"reason": "bounced"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rev := decode[dto.PaymentResponse](t, w)
	require.NotNil(t, rev.ReversesID)
	assert.Equal(t, pay.ID, *rev.ReversesID)

	w = s.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/outstanding", nil)
	assertMoney(t, "1180", decode[dto.OutstandingResponse](t, w).Outstanding)

	w = s.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[struct {
		Items []dto.PaymentResponse `json:"items"`
	}](t, w).Items
	assert.Len(t, items, 2)
}

func TestStockAdjustmentAndVoid(t *testing.T) {
	s := newServer(t, "")
	prod := s.createProduct(t, "LAP-1")

	w := s.do(t, http.MethodPost, "/api/v1/stock/adjustments", map[string]any{
		"productId": prod.ID, "date": "2024-04-15", "quantity": "-5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[dto.StockEntryResponse](t, w)
	assert.Equal(t, "ADJUST", entry.EntryType)
	assert.Equal(t, "manual", entry.ReferenceType)

	w = s.do(t, http.MethodPost, "/api/v1/stock/adjustments", map[string]any{
		"productId": prod.ID, "date": "2024-04-16", "quantity": "-100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "INSUFFICIENT_STOCK", decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/stock/entries/"+entry.ID+"/void", map[string]any{"reason": "count error"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[dto.StockEntryResponse](t, w).Voided)

	w = s.do(t, http.MethodGet, "/api/v1/stock/"+prod.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		Items []dto.StockEntryResponse `json:"items"`
	}](t, w).Items
	require.Len(t, hist, 2)
	assert.Equal(t, hist[0].RunningBalance, hist[1].RunningBalance)

	w = s.do(t, http.MethodGet, "/api/v1/stock/0190a7a4-0000-7000-8000-000000000000/balance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPartyValidation(t *testing.T) {
	s := newServer(t, "")

	w := s.do(t, http.MethodPost, "/api/v1/parties", map[string]any{
		"name": "Bad GSTIN", "role": "customer", "gstStatus": "GST",
		"gstin": "27AAPFU0939F1ZA", "homeStateCode": "27",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodPost, "/api/v1/parties", map[string]any{
		"name": "Chennai Mart", "role": "customer", "gstStatus": "Non-GST", "homeStateCode": "33",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[dto.PartyResponse](t, w)
	assert.Equal(t, "Tamil Nadu", p.HomeState)

	w = s.do(t, http.MethodPut, "/api/v1/parties/"+p.ID, map[string]any{"phone": "9876543210", "version": p.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "9876543210", decode[dto.PartyResponse](t, w).Phone)

	// Stale version.
	w = s.do(t, http.MethodPut, "/api/v1/parties/"+p.ID, map[string]any{"phone": "1", "version": p.Version})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/parties?search=chennai", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ListResponse[dto.PartyResponse]](t, w).Items, 1)
}

func TestIdempotentReplay(t *testing.T) {
	s := newServer(t, "")
	body := map[string]any{"date": "2024-05-01", "accountHead": "Rent", "amount": "15000", "paidFrom": "Bank"}

	first := s.do(t, http.MethodPost, "/api/v1/expenses", body, middleware.HeaderIdempotencyKey, "exp-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(t, http.MethodPost, "/api/v1/expenses", body, middleware.HeaderIdempotencyKey, "exp-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	w := s.do(t, http.MethodGet, "/api/v1/expenses", nil)
	assert.EqualValues(t, 1, decode[dto.ListResponse[dto.ExpenseResponse]](t, w).TotalCount)

	body["amount"] = "16000"
	w = s.do(t, http.MethodPost, "/api/v1/expenses", body, middleware.HeaderIdempotencyKey, "exp-1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decode[dto.ErrorResponse](t, w).Code)
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	s := newServer(t, "")
	body := map[string]any{"date": "2024-05-01", "accountHead": "Rent", "amount": "-5"}

	first := s.do(t, http.MethodPost, "/api/v1/expenses", body, middleware.HeaderIdempotencyKey, "exp-bad")
	require.Equal(t, http.StatusBadRequest, first.Code)

	second := s.do(t, http.MethodPost, "/api/v1/expenses", body, middleware.HeaderIdempotencyKey, "exp-bad")
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestReports(t *testing.T) {
	s := newServer(t, "")
	prod := s.createProduct(t, "LAP-1")

	w := s.do(t, http.MethodPost, "/api/v1/documents",
		invoiceBody(s.LocalB2B.ID.String(), prod.ID, "2024-05-10", 10))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode[docResp](t, w)
	w = s.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/reports/gstr1?from=2024-05-01&to=2024-05-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"kind":"gstr1"`)

	w = s.do(t, http.MethodGet, "/api/v1/reports/gstr1?from=2024-05-01&to=2024-05-31&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "GSTIN,Invoice No,Invoice Date,Taxable Value,Rate,CGST,SGST,IGST", lines[0])
	assert.Contains(t, lines[1], "INV/2024-25/00001")

	w = s.do(t, http.MethodGet, "/api/v1/reports/gstr1?from=2024-06-01&to=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RANGE", decode[dto.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/api/v1/reports/gstr9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportRateLimit(t *testing.T) {
	s := newServer(t, "1-M")

	w := s.do(t, http.MethodGet, "/api/v1/reports/outstanding?to=2024-05-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = s.do(t, http.MethodGet, "/api/v1/reports/outstanding?to=2024-05-31", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[dto.ErrorResponse](t, w).Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, "")
	w := s.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
