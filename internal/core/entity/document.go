package entity

import (
	"context"
	"time"

	"gstledger/internal/core/apperror"
)

// DocumentStatus is the posting state of a business document.
// Transitions: draft -> posted -> cancelled. Nothing returns to draft.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPosted    DocumentStatus = "posted"
	StatusCancelled DocumentStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusCancelled:
		return true
	}
	return false
}

// Document is the base type for business transactions.
type Document struct {
	BaseDocument

	// Number is the document number (unique within type + financial year)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	Status      DocumentStatus `db:"status" json:"status"`
	PostedAt    *time.Time     `db:"posted_at" json:"postedAt,omitempty"`
	CancelledAt *time.Time     `db:"cancelled_at" json:"cancelledAt,omitempty"`

	// Notes is an optional user comment
	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewDocument creates a draft Document dated on date.
func NewDocument(date time.Time) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         date,
		Status:       StatusDraft,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	if !d.Status.Valid() {
		return apperror.NewValidation("unknown status").
			WithDetail("field", "status")
	}
	return nil
}

func (d *Document) stateError(operation string) error {
	return apperror.NewInvalidDocumentState(d.ID.String(), string(d.Status), operation)
}

// CanModify checks that the document is still an editable draft.
func (d *Document) CanModify() error {
	if d.Status != StatusDraft {
		return d.stateError("edit")
	}
	return nil
}

// CanPost checks the draft -> posted transition.
func (d *Document) CanPost() error {
	if d.Status != StatusDraft {
		return d.stateError("post")
	}
	return nil
}

// CanCancel checks the posted -> cancelled transition.
func (d *Document) CanCancel() error {
	if d.Status != StatusPosted {
		return d.stateError("cancel")
	}
	return nil
}

// IsPosted returns true if document is currently posted.
func (d *Document) IsPosted() bool {
	return d.Status == StatusPosted
}

// MarkPosted moves the document to posted. Version is bumped by the repository.
func (d *Document) MarkPosted() {
	now := time.Now().UTC()
	d.Status = StatusPosted
	d.PostedAt = &now
	d.UpdatedAt = now
}

// MarkCancelled moves the document to cancelled.
func (d *Document) MarkCancelled() {
	now := time.Now().UTC()
	d.Status = StatusCancelled
	d.CancelledAt = &now
	d.UpdatedAt = now
}
