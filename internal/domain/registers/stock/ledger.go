package stock

import (
	"context"
	"fmt"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/keylock"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/pkg/logger"
)

// LockKey is the keylock key guarding a product's entries.
func LockKey(productID id.ID) string {
	return "stock:" + productID.String()
}

// Ledger provides business operations for the stock ledger.
// Writers on one product are serialized; the committed per-product index
// is replaced only after the writing transaction commits, and is rebuilt
// whenever another writer sharing the repository has changed the product.
type Ledger struct {
	repo  Repository
	txm   tx.Manager
	locks *keylock.Locker
	cache *indexCache
	now   func() time.Time
}

// NewLedger creates a stock ledger. locks must be shared with every service
// that takes product locks.
func NewLedger(repo Repository, txm tx.Manager, locks *keylock.Locker) *Ledger {
	return &Ledger{
		repo:  repo,
		txm:   txm,
		locks: locks,
		cache: newIndexCache(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) hold(ctx context.Context, productIDs []id.ID) (context.Context, func(), error) {
	keys := make([]string, len(productIDs))
	for i, p := range productIDs {
		keys[i] = LockKey(p)
	}
	return l.locks.Hold(ctx, keys...)
}

// Append inserts one movement at its (date, sequence) position.
func (l *Ledger) Append(ctx context.Context, m Movement) (*Entry, error) {
	entries, err := l.AppendBatch(ctx, []Movement{m})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// AppendBatch inserts movements atomically. Results follow input order.
// Each product is recomputed once, however many of its movements arrive.
func (l *Ledger) AppendBatch(ctx context.Context, movements []Movement) ([]Entry, error) {
	if len(movements) == 0 {
		return nil, nil
	}

	productIDs := make([]id.ID, 0, len(movements))
	for i := range movements {
		if err := movements[i].Validate(); err != nil {
			return nil, err
		}
		movements[i].OccurredOn = types.DateOf(movements[i].OccurredOn)
		productIDs = append(productIDs, movements[i].ProductID)
	}
	productIDs = id.SortedUnique(productIDs)

	ctx, unlock, err := l.hold(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]Entry, len(movements))
	err = l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.LockProducts(ctx, productIDs); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		now := l.now()
		newIDs := make([]id.ID, len(movements))
		for _, pid := range productIDs {
			b, err := l.load(ctx, pid)
			if err != nil {
				return err
			}
			for i := range movements {
				if movements[i].ProductID == pid {
					newIDs[i] = b.add(movements[i], now)
				}
			}
			if err := l.persist(ctx, b); err != nil {
				return err
			}
			for i := range movements {
				if movements[i].ProductID == pid {
					out[i] = *b.find(newIDs[i])
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "stock entries appended",
		"count", len(out),
		"products", len(productIDs))

	return out, nil
}

// RecordOpening posts a product's opening stock as a manual adjustment.
func (l *Ledger) RecordOpening(ctx context.Context, productID id.ID, on time.Time, qty types.Quantity, unitValue types.Money) error {
	_, err := l.Append(ctx, Movement{
		ProductID:     productID,
		OccurredOn:    on,
		EntryType:     EntryAdjust,
		Quantity:      qty,
		UnitValue:     unitValue,
		ReferenceType: RefManual,
	})
	return err
}

// Void zeroes an entry's effective quantity and recomputes later balances.
func (l *Ledger) Void(ctx context.Context, entryID id.ID, reason string) (*Entry, error) {
	e, err := l.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	ctx, unlock, err := l.hold(ctx, []id.ID{e.ProductID})
	if err != nil {
		return nil, err
	}
	defer unlock()

	var voided Entry
	err = l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.LockProducts(ctx, []id.ID{e.ProductID}); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		b, err := l.load(ctx, e.ProductID)
		if err != nil {
			return err
		}
		if err := b.void(entryID, l.now(), reason); err != nil {
			return err
		}
		if err := l.persist(ctx, b); err != nil {
			return err
		}
		voided = *b.find(entryID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock entry voided",
		"entry_id", entryID,
		"product_id", e.ProductID)

	return &voided, nil
}

// VoidByReference voids every live entry produced by a document.
// Returns the number of entries voided.
func (l *Ledger) VoidByReference(ctx context.Context, refType ReferenceType, refID id.ID, reason string) (int, error) {
	refs, err := l.repo.ListByReference(ctx, refType, refID)
	if err != nil {
		return 0, err
	}
	productIDs := make([]id.ID, 0, len(refs))
	for _, e := range refs {
		productIDs = append(productIDs, e.ProductID)
	}
	productIDs = id.SortedUnique(productIDs)
	if len(productIDs) == 0 {
		return 0, nil
	}

	ctx, unlock, err := l.hold(ctx, productIDs)
	if err != nil {
		return 0, err
	}
	defer unlock()

	count := 0
	err = l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		count = 0
		if err := l.repo.LockProducts(ctx, productIDs); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		refs, err := l.repo.ListByReference(ctx, refType, refID)
		if err != nil {
			return err
		}
		now := l.now()
		for _, pid := range productIDs {
			b, err := l.load(ctx, pid)
			if err != nil {
				return err
			}
			for _, e := range refs {
				if e.ProductID != pid || e.IsVoided() {
					continue
				}
				if err := b.void(e.ID, now, reason); err != nil {
					return err
				}
				count++
			}
			if err := l.persist(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (l *Ledger) load(ctx context.Context, productID id.ID) (*book, error) {
	entries, err := l.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load stock entries: %w", err)
	}
	return newBook(productID, entries), nil
}

// persist writes a settled book and schedules the cache swap for commit.
func (l *Ledger) persist(ctx context.Context, b *book) error {
	inserts, updates, err := b.settle()
	if err != nil {
		return err
	}
	for i := range inserts {
		if err := l.repo.Insert(ctx, &inserts[i]); err != nil {
			return fmt.Errorf("insert stock entry: %w", err)
		}
	}
	for _, entryID := range b.voided {
		e := b.find(entryID)
		if err := l.repo.MarkVoided(ctx, entryID, *e.VoidedAt, e.VoidReason); err != nil {
			return fmt.Errorf("void stock entry: %w", err)
		}
	}
	if len(updates) > 0 {
		if err := l.repo.UpdateRunningBalances(ctx, updates); err != nil {
			return fmt.Errorf("update running balances: %w", err)
		}
	}

	idx := newProductIndex(b.entries)
	tx.AfterCommit(ctx, func(context.Context) {
		l.cache.replace(b.productID, idx)
	})
	return nil
}

// index returns the product's ordered entries. Reads inside a transaction
// or snapshot bypass the shared cache in both directions. A cached index is
// checked against the repository revision so commits made by other
// processes are not missed.
func (l *Ledger) index(ctx context.Context, productID id.ID) (*productIndex, error) {
	if tx.InTransaction(ctx) {
		entries, err := l.repo.ListByProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		return newProductIndex(entries), nil
	}

	cached, gen, ok := l.cache.get(productID)
	if ok {
		rev, err := l.repo.Revision(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("stock revision: %w", err)
		}
		if rev == cached.rev {
			return cached, nil
		}
	}
	entries, err := l.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	idx := newProductIndex(entries)
	l.cache.install(productID, idx, gen)
	return idx, nil
}

// CurrentBalance returns the latest running balance.
func (l *Ledger) CurrentBalance(ctx context.Context, productID id.ID) (types.Quantity, error) {
	idx, err := l.index(ctx, productID)
	if err != nil {
		return 0, err
	}
	return idx.current(), nil
}

// BalanceAsOf returns the running balance after the last entry dated on or
// before date.
func (l *Ledger) BalanceAsOf(ctx context.Context, productID id.ID, date time.Time) (types.Quantity, error) {
	idx, err := l.index(ctx, productID)
	if err != nil {
		return 0, err
	}
	return idx.asOf(date), nil
}

// PositionAsOf returns the balance and the latest inward unit value as of date.
func (l *Ledger) PositionAsOf(ctx context.Context, productID id.ID, date time.Time) (Position, error) {
	idx, err := l.index(ctx, productID)
	if err != nil {
		return Position{}, err
	}
	return Position{
		ProductID:       productID,
		Balance:         idx.asOf(date),
		LastInwardValue: idx.lastInwardValue(date),
	}, nil
}

// PositionsAsOf returns the position of every product with entries on or
// before date.
func (l *Ledger) PositionsAsOf(ctx context.Context, date time.Time) (map[id.ID]Position, error) {
	productIDs, err := l.repo.ProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock products: %w", err)
	}
	out := make(map[id.ID]Position, len(productIDs))
	for _, pid := range productIDs {
		idx, err := l.index(ctx, pid)
		if err != nil {
			return nil, err
		}
		if idx.upTo(date) == 0 {
			continue
		}
		out[pid] = Position{
			ProductID:       pid,
			Balance:         idx.asOf(date),
			LastInwardValue: idx.lastInwardValue(date),
		}
	}
	return out, nil
}

// History returns the product's entries in ledger order with balances.
func (l *Ledger) History(ctx context.Context, productID id.ID) ([]Entry, error) {
	idx, err := l.index(ctx, productID)
	if err != nil {
		return nil, err
	}
	return idx.history(), nil
}

// Entry returns one entry by id.
func (l *Ledger) Entry(ctx context.Context, entryID id.ID) (*Entry, error) {
	e, err := l.repo.GetByID(ctx, entryID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("stock entry", entryID.String())
		}
		return nil, err
	}
	return e, nil
}

// Verify re-walks a product's stored entries and reports every entry whose
// stored running balance differs from the recomputed one.
func (l *Ledger) Verify(ctx context.Context, productID id.ID) ([]Drift, error) {
	entries, err := l.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	idx := newProductIndex(entries)

	var drift []Drift
	var bal types.Quantity
	for _, e := range idx.entries {
		bal += e.EffectiveQuantity()
		if e.RunningBalance != bal {
			drift = append(drift, Drift{EntryID: e.ID, Stored: e.RunningBalance, Expected: bal})
		}
	}
	return drift, nil
}

// VerifyAll runs Verify for every product that has entries.
func (l *Ledger) VerifyAll(ctx context.Context) (map[id.ID][]Drift, error) {
	productIDs, err := l.repo.ProductIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[id.ID][]Drift)
	for _, pid := range productIDs {
		drift, err := l.Verify(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", pid, err)
		}
		if len(drift) > 0 {
			out[pid] = drift
		}
	}
	return out, nil
}

// ResetCache drops every cached index.
func (l *Ledger) ResetCache() {
	l.cache.invalidate()
}
