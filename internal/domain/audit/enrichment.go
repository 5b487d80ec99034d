package audit

import (
	"context"

	appctx "gstledger/internal/core/context"
)

// EnrichCreatedBy sets CreatedBy and UpdatedBy from the context actor.
// Use in BeforeCreate hooks. Without an actor this is a no-op.
func EnrichCreatedBy(ctx context.Context, entity any) error {
	userID := appctx.GetUserID(ctx)
	if userID == "" {
		return nil
	}

	if e, ok := entity.(interface {
		SetCreatedBy(string)
		SetUpdatedBy(string)
	}); ok {
		e.SetCreatedBy(userID)
		e.SetUpdatedBy(userID)
	}
	return nil
}

// EnrichUpdatedBy sets only UpdatedBy from the context actor.
func EnrichUpdatedBy(ctx context.Context, entity any) error {
	userID := appctx.GetUserID(ctx)
	if userID == "" {
		return nil
	}

	if e, ok := entity.(interface{ SetUpdatedBy(string) }); ok {
		e.SetUpdatedBy(userID)
	}
	return nil
}
