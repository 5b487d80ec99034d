package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/types"
	"gstledger/internal/domain/reports"
	"gstledger/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	engine *reports.Engine
	now    func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, engine *reports.Engine) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		engine:      engine,
		now:         time.Now,
	}
}

// Generate handles GET /reports/:type?from=&to=&format=json|csv
func (h *ReportsHandler) Generate(c *gin.Context) {
	kind, ok := reports.ParseKind(c.Param("type"))
	if !ok {
		h.Error(c, apperror.NewNotFound("report", c.Param("type")))
		return
	}

	var q dto.ReportQuery
	if !h.BindQuery(c, &q) {
		return
	}
	req, err := q.ToRequest(kind, h.now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.engine.Generate(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	if q.OutputFormat() == dto.FormatCSV {
		var buf bytes.Buffer
		if err := reports.WriteCSV(&buf, res); err != nil {
			h.Error(c, err)
			return
		}
		filename := fmt.Sprintf("%s_%s_%s.csv", kind, types.FormatDate(req.From), types.FormatDate(req.To))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	h.OK(c, res)
}
