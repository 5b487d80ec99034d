package expense

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gstledger/internal/core/id"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/audit"
	"gstledger/pkg/logger"
)

// Service records and lists expenses.
type Service struct {
	repo  Repository
	txm   tx.Manager
	audit *audit.Recorder
	now   func() time.Time
}

// NewService creates the expense service. rec may be nil.
func NewService(repo Repository, txm tx.Manager, rec *audit.Recorder) *Service {
	return &Service{
		repo:  repo,
		txm:   txm,
		audit: rec,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordRequest describes a new expense.
type RecordRequest struct {
	Date        time.Time
	AccountHead string
	Amount      types.Money
	PaidFrom    string
	Description string
}

// Record validates and stores an expense.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Expense, error) {
	e := &Expense{
		ID:          id.New(),
		Date:        types.DateOf(req.Date),
		AccountHead: strings.TrimSpace(req.AccountHead),
		Amount:      req.Amount,
		PaidFrom:    strings.TrimSpace(req.PaidFrom),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	}
	if e.PaidFrom == "" {
		e.PaidFrom = PaidFromCash
	}
	if req.Date.IsZero() {
		e.Date = time.Time{}
	}
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}
	if err := audit.EnrichCreatedBy(ctx, e); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if s.audit == nil {
			return nil
		}
		return s.audit.Record(ctx, "expense", e.ID, audit.ActionCreate, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "expense recorded",
		"id", e.ID,
		"account_head", e.AccountHead,
		"amount", types.FormatMoney(e.Amount))

	return e, nil
}

// List retrieves expenses with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Expense], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListRange returns expenses dated within [from, to] (used by reports).
func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]*Expense, error) {
	return s.repo.ListRange(ctx, from, to)
}
