package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/infrastructure/http/v1/dto"
)

// ProductChecker reports whether a product exists.
type ProductChecker interface {
	Exists(ctx context.Context, productID id.ID) (bool, error)
}

// StockHandler serves the stock ledger.
type StockHandler struct {
	*BaseHandler
	ledger   *stock.Ledger
	products ProductChecker
	now      func() time.Time
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, ledger *stock.Ledger, products ProductChecker) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		ledger:      ledger,
		products:    products,
		now:         time.Now,
	}
}

// productParam parses :productId and checks the product exists.
func (h *StockHandler) productParam(c *gin.Context) (id.ID, bool) {
	productID, ok := h.productParam(c)
	if !ok {
		return productID, false
	}
	exists, err := h.products.Exists(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return productID, false
	}
	if !exists {
		h.Error(c, apperror.NewNotFound("product", productID.String()))
		return productID, false
	}
	return productID, true
}

// Adjust handles POST /stock/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := req.ToMovement()
	if err != nil {
		h.Error(c, err)
		return
	}

	entry, err := h.ledger.Append(c.Request.Context(), m)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockEntry(entry))
}

// Void handles POST /stock/entries/:id/void
func (h *StockHandler) Void(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.VoidEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entry, err := h.ledger.Void(c.Request.Context(), entryID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockEntry(entry))
}

// Balance handles GET /stock/:productId/balance?asOf=YYYY-MM-DD.
// Without asOf the balance is taken as of today.
func (h *StockHandler) Balance(c *gin.Context) {
	productID, ok := h.productParam(c)
	if !ok {
		return
	}
	var q dto.BalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	asOf := types.DateOf(h.now())
	if q.AsOf != "" {
		d, err := dto.ParseDate("asOf", q.AsOf)
		if err != nil {
			h.Error(c, err)
			return
		}
		asOf = d
	}

	pos, err := h.ledger.PositionAsOf(c.Request.Context(), productID, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPosition(pos, asOf))
}

// History handles GET /stock/:productId/history
func (h *StockHandler) History(c *gin.Context) {
	productID, ok := h.productParam(c)
	if !ok {
		return
	}
	entries, err := h.ledger.History(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromStockEntries(entries)})
}
