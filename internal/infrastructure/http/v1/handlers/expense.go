package handlers

import (
	"github.com/gin-gonic/gin"

	"gstledger/internal/domain/expense"
	"gstledger/internal/infrastructure/http/v1/dto"
)

// ExpenseHandler serves operating expenses.
type ExpenseHandler struct {
	*BaseHandler
	service *expense.Service
}

// NewExpenseHandler creates a new expense handler.
func NewExpenseHandler(base *BaseHandler, service *expense.Service) *ExpenseHandler {
	return &ExpenseHandler{BaseHandler: base, service: service}
}

// Record handles POST /expenses
func (h *ExpenseHandler) Record(c *gin.Context) {
	var req dto.RecordExpenseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rr, err := req.ToRecord()
	if err != nil {
		h.Error(c, err)
		return
	}

	e, err := h.service.Record(c.Request.Context(), rr)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromExpense(e))
}

// List handles GET /expenses
func (h *ExpenseHandler) List(c *gin.Context) {
	var q dto.ExpenseListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.Filter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromExpense))
}
