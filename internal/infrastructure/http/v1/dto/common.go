// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain page to its response form.
func NewListResponse[E, T any](res domain.ListResult[E], mapFn func(E) T) ListResponse[T] {
	items := make([]T, len(res.Items))
	for i, item := range res.Items {
		items[i] = mapFn(item)
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}

// ListQuery holds the common list parameters.
type ListQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// Filter converts the query into a domain filter with defaults applied.
func (q ListQuery) Filter(defaultOrder string) domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.OrderBy = defaultOrder
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Dates ---

// ParseDate parses a YYYY-MM-DD request field.
func ParseDate(field, s string) (time.Time, error) {
	d, err := types.ParseDate(s)
	if err != nil {
		return time.Time{}, apperror.NewValidation("date must be YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return d, nil
}

// ParseOptionalDate parses an optional YYYY-MM-DD field; empty yields nil.
func ParseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := ParseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseID parses a UUID request field.
func ParseID(field, s string) (id.ID, error) {
	v, err := id.Parse(s)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return v, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := types.FormatDate(*t)
	return &s
}

func idPtrString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
