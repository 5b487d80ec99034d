package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/entity"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/documents/transaction"
)

// HeaderRequest carries the editable document header.
type HeaderRequest struct {
	Date           string  `json:"date" binding:"required,date"`
	DueDate        *string `json:"dueDate" binding:"omitempty,date"`
	CounterpartyID string  `json:"counterpartyId" binding:"required,uuid"`
	PlaceOfSupply  string  `json:"placeOfSupply" binding:"omitempty,statecode"`
	VendorRef      string  `json:"vendorRef" binding:"omitempty,max=64"`
	Notes          string  `json:"notes" binding:"omitempty,max=1000"`
}

// LineRequest is one requested goods line.
type LineRequest struct {
	ProductID      string           `json:"productId" binding:"required,uuid"`
	Quantity       types.Quantity   `json:"quantity"`
	Rate           types.Money      `json:"rate"`
	Discount       types.Money      `json:"discount"`
	GSTRatePercent *decimal.Decimal `json:"gstRatePercent"`
}

// DocumentBody is the header plus lines, shared by create, edit and amend.
type DocumentBody struct {
	HeaderRequest
	Lines []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	DocType string `json:"docType" binding:"required,oneof=invoice purchase"`
	DocumentBody
}

// ToInput converts the body to engine input.
func (b DocumentBody) ToInput() (transaction.Header, []transaction.LineInput, error) {
	var h transaction.Header

	date, err := ParseDate("date", b.Date)
	if err != nil {
		return h, nil, err
	}
	due, err := ParseOptionalDate("dueDate", b.DueDate)
	if err != nil {
		return h, nil, err
	}
	cp, err := ParseID("counterpartyId", b.CounterpartyID)
	if err != nil {
		return h, nil, err
	}
	h = transaction.Header{
		Date:           date,
		DueDate:        due,
		CounterpartyID: cp,
		PlaceOfSupply:  b.PlaceOfSupply,
		VendorRef:      b.VendorRef,
		Notes:          b.Notes,
	}

	lines := make([]transaction.LineInput, len(b.Lines))
	for i, l := range b.Lines {
		pid, err := ParseID("lines.productId", l.ProductID)
		if err != nil {
			return h, nil, err
		}
		lines[i] = transaction.LineInput{
			ProductID:      pid,
			Quantity:       l.Quantity,
			Rate:           l.Rate,
			Discount:       l.Discount,
			GSTRatePercent: l.GSTRatePercent,
		}
	}
	return h, lines, nil
}

// CancelRequest is the body of POST /documents/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// DocumentListQuery holds GET /documents parameters.
type DocumentListQuery struct {
	ListQuery
	DocType        string `form:"docType" binding:"omitempty,oneof=invoice purchase"`
	Status         string `form:"status" binding:"omitempty,oneof=draft posted cancelled"`
	CounterpartyID string `form:"counterpartyId" binding:"omitempty,uuid"`
	From           string `form:"from" binding:"omitempty,date"`
	To             string `form:"to" binding:"omitempty,date"`
}

// Filter converts the query into an engine filter.
func (q DocumentListQuery) Filter() (transaction.ListFilter, error) {
	f := transaction.ListFilter{ListFilter: q.ListQuery.Filter("date")}
	if q.DocType != "" {
		t := transaction.DocType(q.DocType)
		f.DocType = &t
	}
	if q.Status != "" {
		s := entity.DocumentStatus(q.Status)
		f.Status = &s
	}
	if q.CounterpartyID != "" {
		cp, err := ParseID("counterpartyId", q.CounterpartyID)
		if err != nil {
			return f, err
		}
		f.CounterpartyID = &cp
	}
	var err error
	if f.DateFrom, err = ParseOptionalDate("from", &q.From); err != nil {
		return f, err
	}
	if f.DateTo, err = ParseOptionalDate("to", &q.To); err != nil {
		return f, err
	}
	return f, nil
}

// LineResponse is a computed document line.
type LineResponse struct {
	LineNo         int             `json:"lineNo"`
	ProductID      string          `json:"productId"`
	HSNCode        string          `json:"hsnCode"`
	Quantity       types.Quantity  `json:"quantity"`
	Rate           types.Money     `json:"rate"`
	Discount       types.Money     `json:"discount"`
	GSTRatePercent decimal.Decimal `json:"gstRatePercent"`
	TaxableValue   types.Money     `json:"taxableValue"`
	CGST           types.Money     `json:"cgst"`
	SGST           types.Money     `json:"sgst"`
	IGST           types.Money     `json:"igst"`
	LineTotal      types.Money     `json:"lineTotal"`
}

// DocumentResponse is an invoice or purchase in API responses.
type DocumentResponse struct {
	ID            string  `json:"id"`
	DocType       string  `json:"docType"`
	Number        string  `json:"number"`
	FinancialYear string  `json:"financialYear"`
	Date          string  `json:"date"`
	DueDate       *string `json:"dueDate,omitempty"`
	Status        string  `json:"status"`

	CounterpartyID string                   `json:"counterpartyId"`
	Counterparty   transaction.Counterparty `json:"counterparty"`
	PlaceOfSupply  string                   `json:"placeOfSupply"`
	VendorRef      string                   `json:"vendorRef,omitempty"`
	Notes          string                   `json:"notes,omitempty"`

	AmendsID     *string    `json:"amendsId,omitempty"`
	CancelReason string     `json:"cancelReason,omitempty"`
	PostedAt     *time.Time `json:"postedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`

	transaction.Totals
	Lines []LineResponse `json:"lines"`

	Version   int       `json:"version"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromDocument maps a document to its response.
func FromDocument(d *transaction.Document) DocumentResponse {
	lines := make([]LineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = LineResponse{
			LineNo:         l.LineNo,
			ProductID:      l.ProductID.String(),
			HSNCode:        l.HSNCode,
			Quantity:       l.Quantity,
			Rate:           l.Rate,
			Discount:       l.Discount,
			GSTRatePercent: l.GSTRatePercent,
			TaxableValue:   l.TaxableValue,
			CGST:           l.CGST,
			SGST:           l.SGST,
			IGST:           l.IGST,
			LineTotal:      l.LineTotal,
		}
	}

	return DocumentResponse{
		ID:             d.ID.String(),
		DocType:        string(d.DocType),
		Number:         d.Number,
		FinancialYear:  d.FinancialYear,
		Date:           types.FormatDate(d.Date),
		DueDate:        formatDatePtr(d.DueDate),
		Status:         string(d.Status),
		CounterpartyID: d.CounterpartyID.String(),
		Counterparty:   d.Counterparty,
		PlaceOfSupply:  d.PlaceOfSupply,
		VendorRef:      d.VendorRef,
		Notes:          d.Notes,
		AmendsID:       idPtrString(d.AmendsID),
		CancelReason:   d.CancelReason,
		PostedAt:       d.PostedAt,
		CancelledAt:    d.CancelledAt,
		Totals:         d.Totals,
		Lines:          lines,
		Version:        d.Version,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// DocumentSummary is a list row without lines.
type DocumentSummary struct {
	ID             string      `json:"id"`
	DocType        string      `json:"docType"`
	Number         string      `json:"number"`
	Date           string      `json:"date"`
	Status         string      `json:"status"`
	CounterpartyID string      `json:"counterpartyId"`
	Counterparty   string      `json:"counterpartyName"`
	GrandTotal     types.Money `json:"grandTotal"`
}

// FromDocumentSummary maps a document to its list row.
func FromDocumentSummary(d *transaction.Document) DocumentSummary {
	return DocumentSummary{
		ID:             d.ID.String(),
		DocType:        string(d.DocType),
		Number:         d.Number,
		Date:           types.FormatDate(d.Date),
		Status:         string(d.Status),
		CounterpartyID: d.CounterpartyID.String(),
		Counterparty:   d.Counterparty.Name,
		GrandTotal:     d.GrandTotal,
	}
}

// DocumentList maps an engine page to its response.
func DocumentList(res domain.ListResult[*transaction.Document]) ListResponse[DocumentSummary] {
	return NewListResponse(res, FromDocumentSummary)
}
