// Package audit records who changed what, with large change sets stored
// zstd-compressed.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "gstledger/internal/core/context"
	"gstledger/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionPost    Action = "post"
	ActionCancel  Action = "cancel"
	ActionPayment Action = "payment"
	ActionReverse Action = "reverse"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the change-set size above which payloads are compressed.
const DefaultCompressThreshold = 10 * 1024

// Entry represents a single audit log entry.
type Entry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            Action          `db:"action" json:"action"`
	UserID            string          `db:"user_id" json:"userId,omitempty"`
	Source            string          `db:"source" json:"source,omitempty"`
	RequestID         string          `db:"request_id" json:"requestId,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"compressionAlgo"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// Store persists audit entries in the caller's transaction.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	// History returns entries newest first.
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Recorder is the audit service used by the engines.
type Recorder struct {
	store             Store
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewRecorder creates a recorder. threshold <= 0 selects the default.
func NewRecorder(store Store, threshold int) (*Recorder, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}

	return &Recorder{
		store:             store,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Record writes one audit entry for entityID. changes is marshalled to JSON.
func (r *Recorder) Record(ctx context.Context, entityType string, entityID id.ID, action Action, changes any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	entry := Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		RequestID:  appctx.GetRequestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if actor := appctx.GetActor(ctx); actor != nil {
		entry.UserID = actor.UserID
		entry.Source = actor.Source
	}

	r.encode(&entry, raw)
	return r.store.Insert(ctx, &entry)
}

func (r *Recorder) encode(entry *Entry, raw []byte) {
	entry.CompressionAlgo = CompressionNone
	entry.Changes = raw
	if len(raw) > r.compressThreshold {
		entry.ChangesCompressed = r.encoder.EncodeAll(raw, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

func (r *Recorder) decode(entry *Entry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := r.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = decompressed
	entry.ChangesCompressed = nil
	return nil
}

// History returns an entity's audit trail with payloads decompressed.
func (r *Recorder) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := r.store.History(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for i := range entries {
		if err := r.decode(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}
