package stock

import (
	"sort"
	"time"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/id"
	"gstledger/internal/core/types"
)

// book is the working copy of one product's entries during a write.
// Changes are applied in memory, then settle recomputes balances from the
// earliest touched position and reports what to persist.
type book struct {
	productID id.ID
	entries   []Entry
	stored    map[id.ID]types.Quantity
	inserted  map[id.ID]bool
	voided    []id.ID
	dirtyFrom int
	maxSeq    int64
}

func newBook(productID id.ID, entries []Entry) *book {
	b := &book{
		productID: productID,
		entries:   make([]Entry, len(entries)),
		stored:    make(map[id.ID]types.Quantity, len(entries)),
		inserted:  make(map[id.ID]bool),
		dirtyFrom: len(entries),
	}
	copy(b.entries, entries)
	sort.SliceStable(b.entries, func(i, j int) bool { return before(&b.entries[i], &b.entries[j]) })
	for _, e := range b.entries {
		b.stored[e.ID] = e.RunningBalance
		if e.Sequence > b.maxSeq {
			b.maxSeq = e.Sequence
		}
	}
	return b
}

func (b *book) touch(pos int) {
	if pos < b.dirtyFrom {
		b.dirtyFrom = pos
	}
}

// add places a new entry after every entry on or before its date.
func (b *book) add(m Movement, now time.Time) id.ID {
	b.maxSeq++
	e := Entry{
		ID:            id.New(),
		ProductID:     b.productID,
		OccurredOn:    types.DateOf(m.OccurredOn),
		Sequence:      b.maxSeq,
		EntryType:     m.EntryType,
		Quantity:      m.Quantity,
		UnitValue:     types.RoundMoney(m.UnitValue),
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		CreatedAt:     now,
	}

	pos := sort.Search(len(b.entries), func(i int) bool { return before(&e, &b.entries[i]) })
	b.entries = append(b.entries, Entry{})
	copy(b.entries[pos+1:], b.entries[pos:])
	b.entries[pos] = e

	b.inserted[e.ID] = true
	b.touch(pos)
	return e.ID
}

func (b *book) void(entryID id.ID, at time.Time, reason string) error {
	for i := range b.entries {
		e := &b.entries[i]
		if e.ID != entryID {
			continue
		}
		if e.IsVoided() {
			return apperror.NewValidation("stock entry is already voided").
				WithDetail("entry_id", entryID.String())
		}
		e.VoidedAt = &at
		e.VoidReason = reason
		b.voided = append(b.voided, entryID)
		b.touch(i)
		return nil
	}
	return apperror.NewNotFound("stock entry", entryID.String())
}

func (b *book) find(entryID id.ID) *Entry {
	for i := range b.entries {
		if b.entries[i].ID == entryID {
			return &b.entries[i]
		}
	}
	return nil
}

// settle re-walks balances from the first touched position. An OUT entry
// may not end below zero unless its balance was already there and did not
// get worse.
func (b *book) settle() (inserts []Entry, updates []BalanceUpdate, err error) {
	var prev types.Quantity
	if b.dirtyFrom > 0 {
		prev = b.entries[b.dirtyFrom-1].RunningBalance
	}

	for i := b.dirtyFrom; i < len(b.entries); i++ {
		e := &b.entries[i]
		bal := prev + e.EffectiveQuantity()

		if e.EntryType == EntryOut && !e.IsVoided() && bal.IsNegative() {
			old, existed := b.stored[e.ID]
			if b.inserted[e.ID] || !existed || bal < old {
				return nil, nil, apperror.NewInsufficientStock(
					b.productID.String(),
					types.FormatDate(e.OccurredOn),
					bal.String(),
				)
			}
		}

		e.RunningBalance = bal
		prev = bal

		if b.inserted[e.ID] {
			inserts = append(inserts, *e)
		} else if b.stored[e.ID] != bal {
			updates = append(updates, BalanceUpdate{EntryID: e.ID, RunningBalance: bal})
		}
	}
	return inserts, updates, nil
}
