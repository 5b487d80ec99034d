package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"gstledger/internal/core/id"
	"gstledger/internal/domain/audit"
)

// AuditStore implements audit.Store over sys_audit. Compression is done by
// audit.Recorder; the store persists whichever column is set.
type AuditStore struct {
	txManager *TxManager
}

// NewAuditStore creates the audit store.
func NewAuditStore(txManager *TxManager) *AuditStore {
	return &AuditStore{txManager: txManager}
}

var _ audit.Store = (*AuditStore)(nil)

// Insert records an audit entry in the caller's transaction.
func (s *AuditStore) Insert(ctx context.Context, entry *audit.Entry) error {
	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, source, request_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var changes any
	if len(entry.Changes) > 0 {
		changes = string(entry.Changes)
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.Source, entry.RequestID,
		changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History retrieves audit history for an entity, newest first.
func (s *AuditStore) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, user_id, source, request_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	var entries []audit.Entry
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, sql, entityType, entityID, limit); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}
