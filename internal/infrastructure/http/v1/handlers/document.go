package handlers

import (
	"github.com/gin-gonic/gin"

	"gstledger/internal/domain/documents/transaction"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves invoices and purchases and the payments made
// against them.
type DocumentHandler struct {
	*BaseHandler
	engine   *transaction.Engine
	payments *payment.Ledger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, engine *transaction.Engine, payments *payment.Ledger) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		engine:      engine,
		payments:    payments,
	}
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var q dto.DocumentListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.Filter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.engine.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DocumentList(result))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.engine.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Create handles POST /documents. The document is created as a draft.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	header, lines, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.engine.Create(c.Request.Context(), transaction.DocType(req.DocType), header, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// Edit handles PUT /documents/:id. Only drafts can be edited.
func (h *DocumentHandler) Edit(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DocumentBody
	if !h.BindJSON(c, &req) {
		return
	}
	header, lines, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.engine.Edit(c.Request.Context(), docID, header, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Post handles POST /documents/:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.engine.Post(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.engine.Cancel(c.Request.Context(), docID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Amend handles POST /documents/:id/amend. The original is cancelled and
// the replacement draft is returned.
func (h *DocumentHandler) Amend(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DocumentBody
	if !h.BindJSON(c, &req) {
		return
	}
	header, lines, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.engine.Amend(c.Request.Context(), docID, header, lines)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// ApplyPayment handles POST /documents/:id/payments
func (h *DocumentHandler) ApplyPayment(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ApplyPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	apply, err := req.ToApply(docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.payments.Apply(c.Request.Context(), apply)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPayment(rec))
}

// ListPayments handles GET /documents/:id/payments
func (h *DocumentHandler) ListPayments(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	recs, err := h.payments.List(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromPayments(recs)})
}

// Outstanding handles GET /documents/:id/outstanding
func (h *DocumentHandler) Outstanding(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.payments.Balance(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBalance(b))
}

// ReversePayment handles POST /payments/:id/reverse
func (h *DocumentHandler) ReversePayment(c *gin.Context) {
	paymentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReversePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.payments.Reverse(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPayment(rec))
}
