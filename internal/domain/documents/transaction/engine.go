package transaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gstledger/internal/core/apperror"
	"gstledger/internal/core/entity"
	"gstledger/internal/core/id"
	"gstledger/internal/core/keylock"
	"gstledger/internal/core/numerator"
	"gstledger/internal/core/tx"
	"gstledger/internal/core/types"
	"gstledger/internal/domain"
	"gstledger/internal/domain/audit"
	"gstledger/internal/domain/catalogs/party"
	"gstledger/internal/domain/catalogs/product"
	"gstledger/internal/domain/registers/payment"
	"gstledger/internal/domain/registers/stock"
	"gstledger/internal/domain/tax"
	"gstledger/pkg/logger"
	pkgnumerator "gstledger/pkg/numerator"
)

// SellerProfile is our own registration, the seller on every invoice.
type SellerProfile struct {
	Name      string
	GSTIN     string
	StateCode string
	Status    tax.Status
}

// Header carries the editable header fields.
type Header struct {
	Date           time.Time
	DueDate        *time.Time
	CounterpartyID id.ID
	// PlaceOfSupply overrides the default derived from the party.
	PlaceOfSupply string
	VendorRef     string
	Notes         string
}

// LineInput is one requested line. GSTRatePercent defaults to the product's.
type LineInput struct {
	ProductID      id.ID
	Quantity       types.Quantity
	Rate           types.Money
	Discount       types.Money
	GSTRatePercent *decimal.Decimal
}

// Engine runs the document lifecycle: draft -> posted -> cancelled.
type Engine struct {
	repo      Repository
	parties   party.Directory
	products  product.Directory
	stock     *stock.Ledger
	payments  *payment.Ledger
	numerator numerator.Generator
	txm       tx.Manager
	locks     *keylock.Locker
	events    domain.EventPublisher
	audit     *audit.Recorder
	seller    SellerProfile
	hooks     *domain.HookRegistry[*Document]
}

// EngineConfig wires an Engine. Locks must be the instance shared with the
// stock and payment ledgers.
type EngineConfig struct {
	Repo      Repository
	Parties   party.Directory
	Products  product.Directory
	Stock     *stock.Ledger
	Payments  *payment.Ledger
	Numerator numerator.Generator
	TxManager tx.Manager
	Locks     *keylock.Locker
	Events    domain.EventPublisher
	Audit     *audit.Recorder
	Seller    SellerProfile
}

// NewEngine creates a document engine.
func NewEngine(cfg EngineConfig) *Engine {
	events := cfg.Events
	if events == nil {
		events = domain.NopPublisher{}
	}
	e := &Engine{
		repo:      cfg.Repo,
		parties:   cfg.Parties,
		products:  cfg.Products,
		stock:     cfg.Stock,
		payments:  cfg.Payments,
		numerator: cfg.Numerator,
		txm:       cfg.TxManager,
		locks:     cfg.Locks,
		events:    events,
		audit:     cfg.Audit,
		seller:    cfg.Seller,
		hooks:     domain.NewHookRegistry[*Document](),
	}
	e.hooks.OnBeforeCreate(func(ctx context.Context, d *Document) error { return audit.EnrichCreatedBy(ctx, d) })
	e.hooks.OnBeforeUpdate(func(ctx context.Context, d *Document) error { return audit.EnrichUpdatedBy(ctx, d) })
	return e
}

// Hooks returns the hook registry for registering callbacks.
func (e *Engine) Hooks() *domain.HookRegistry[*Document] {
	return e.hooks
}

// build assembles a draft from header and lines, snapshotting the party and
// defaulting line fields from products.
func (e *Engine) build(ctx context.Context, doc *Document, h Header, inputs []LineInput) error {
	if !doc.DocType.Valid() {
		return apperror.NewValidation("unknown document type").
			WithDetail("field", "docType").
			WithDetail("value", string(doc.DocType))
	}
	if h.Date.IsZero() {
		return apperror.NewValidation("date is required").WithDetail("field", "date")
	}
	if id.IsNil(h.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").WithDetail("field", "counterpartyId")
	}

	p, err := e.parties.GetByID(ctx, h.CounterpartyID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("counterparty not found").
				WithDetail("field", "counterpartyId").
				WithDetail("value", h.CounterpartyID.String())
		}
		return err
	}

	doc.Date = types.DateOf(h.Date)
	doc.FinancialYear = pkgnumerator.FinancialYear(doc.Date)
	if h.DueDate != nil {
		due := types.DateOf(*h.DueDate)
		doc.DueDate = &due
	} else {
		doc.DueDate = nil
	}
	doc.CounterpartyID = p.ID
	doc.Counterparty = Counterparty{
		Name:      p.Name,
		GSTStatus: p.GSTStatus,
		GSTIN:     p.GSTIN,
		StateCode: p.HomeStateCode,
	}
	doc.VendorRef = strings.TrimSpace(h.VendorRef)
	doc.Notes = strings.TrimSpace(h.Notes)

	switch doc.DocType {
	case DocInvoice:
		if !p.IsCustomer() {
			return apperror.NewValidation("party is not a customer").WithDetail("field", "counterpartyId")
		}
		doc.SellerStateCode = e.seller.StateCode
		doc.SellerStatus = e.seller.Status
		doc.PlaceOfSupply = p.PlaceOfSupply()
	case DocPurchase:
		if !p.IsVendor() {
			return apperror.NewValidation("party is not a vendor").WithDetail("field", "counterpartyId")
		}
		doc.SellerStateCode = p.HomeStateCode
		doc.SellerStatus = p.GSTStatus
		doc.PlaceOfSupply = e.seller.StateCode
	}
	if pos := strings.TrimSpace(h.PlaceOfSupply); pos != "" {
		doc.PlaceOfSupply = pos
	}

	if len(inputs) == 0 {
		return apperror.NewValidation("document has no lines").WithDetail("field", "lines")
	}
	doc.Lines = make([]Line, 0, len(inputs))
	for i, in := range inputs {
		prod, err := e.products.GetByID(ctx, in.ProductID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("product not found").
					WithDetail("field", fmt.Sprintf("lines[%d].productId", i+1)).
					WithDetail("value", in.ProductID.String())
			}
			return err
		}
		if !prod.IsActive {
			return apperror.NewValidation("product is inactive").
				WithDetail("field", fmt.Sprintf("lines[%d].productId", i+1))
		}
		rate := prod.GSTRatePercent
		if in.GSTRatePercent != nil {
			rate = *in.GSTRatePercent
		}
		doc.Lines = append(doc.Lines, Line{
			ProductID:      prod.ID,
			HSNCode:        prod.HSNCode,
			Quantity:       in.Quantity,
			Rate:           in.Rate,
			Discount:       in.Discount,
			GSTRatePercent: rate,
		})
	}

	if err := doc.Compute(); err != nil {
		return err
	}
	return doc.Validate(ctx)
}

func (e *Engine) assignNumber(ctx context.Context, doc *Document) error {
	cfg := numerator.DefaultConfig(doc.DocType.NumberPrefix())
	number, err := e.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, doc.Date)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	return nil
}

// Create builds, numbers and stores a draft.
func (e *Engine) Create(ctx context.Context, docType DocType, h Header, lines []LineInput) (*Document, error) {
	var doc *Document
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = e.create(ctx, docType, h, lines, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "id", doc.ID, "error", err)
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"type", doc.DocType,
		"number", doc.Number,
		"grand_total", types.FormatMoney(doc.GrandTotal))

	return doc, nil
}

// create runs inside the caller's transaction so the number is returned to
// the sequence if anything after it fails.
func (e *Engine) create(ctx context.Context, docType DocType, h Header, lines []LineInput, amends *id.ID) (*Document, error) {
	doc := &Document{
		Document: entity.NewDocument(h.Date),
		DocType:  docType,
		AmendsID: amends,
	}
	if err := e.build(ctx, doc, h, lines); err != nil {
		return nil, err
	}
	if err := e.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return nil, err
	}
	if err := e.assignNumber(ctx, doc); err != nil {
		return nil, err
	}
	if err := e.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := e.record(ctx, doc, audit.ActionCreate, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// Edit rewrites a draft in place. A posted document is amended instead:
// it is cancelled and the returned document is its replacement draft.
func (e *Engine) Edit(ctx context.Context, docID id.ID, h Header, lines []LineInput) (*Document, error) {
	current, err := e.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case entity.StatusPosted:
		return e.Amend(ctx, docID, h, lines)
	case entity.StatusCancelled:
		return nil, current.CanModify()
	}

	ctx, unlock, err := e.locks.Hold(ctx, payment.LockKey(docID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var doc *Document
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = e.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if fy := pkgnumerator.FinancialYear(types.DateOf(h.Date)); !h.Date.IsZero() && fy != doc.FinancialYear {
			return apperror.NewValidation("date must stay within the document's financial year").
				WithDetail("field", "date").
				WithDetail("financialYear", doc.FinancialYear)
		}
		if err := e.build(ctx, doc, h, lines); err != nil {
			return err
		}
		if err := e.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
			return err
		}
		if err := e.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return e.record(ctx, doc, audit.ActionUpdate, nil)
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Run(ctx, domain.AfterUpdate, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "id", doc.ID, "error", err)
	}
	return doc, nil
}

// lockDocument takes the document lock, then the locks of the products the
// document carries once that lock is held. Edit takes the same document
// lock, so the product set cannot change before unlock.
func (e *Engine) lockDocument(ctx context.Context, docID id.ID) (context.Context, *Document, func(), error) {
	ctx, unlockDoc, err := e.locks.Hold(ctx, payment.LockKey(docID))
	if err != nil {
		return ctx, nil, nil, err
	}
	doc, err := e.Get(ctx, docID)
	if err != nil {
		unlockDoc()
		return ctx, nil, nil, err
	}
	keys := make([]string, 0, len(doc.Lines))
	for _, pid := range doc.ProductIDs() {
		keys = append(keys, stock.LockKey(pid))
	}
	ctx, unlockProducts, err := e.locks.Hold(ctx, keys...)
	if err != nil {
		unlockDoc()
		return ctx, nil, nil, err
	}
	return ctx, doc, func() {
		unlockProducts()
		unlockDoc()
	}, nil
}

// Post moves a draft to posted. Stock movements, the payment balance, the
// outbox event and the audit entry commit together or not at all.
func (e *Engine) Post(ctx context.Context, docID id.ID) (*Document, error) {
	ctx, _, unlock, err := e.lockDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var doc *Document
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = e.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		return e.post(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Run(ctx, domain.AfterPost, doc); err != nil {
		logger.Warn(ctx, "after-post hook failed", "id", doc.ID, "error", err)
	}

	logger.Info(ctx, "document posted",
		"id", doc.ID,
		"number", doc.Number,
		"lines", len(doc.Lines))

	return doc, nil
}

func (e *Engine) post(ctx context.Context, doc *Document) error {
	if err := doc.CanPost(); err != nil {
		return err
	}
	if _, ok := doc.Recompute(); !ok {
		return apperror.NewReconciliation("document", "stored totals differ from recomputed totals").
			WithDetail("document_id", doc.ID.String())
	}
	for _, l := range doc.Lines {
		prod, err := e.products.GetByID(ctx, l.ProductID)
		if err != nil {
			return err
		}
		if !prod.IsActive {
			return apperror.NewValidation("product is inactive").
				WithDetail("field", fmt.Sprintf("lines[%d].productId", l.LineNo))
		}
	}

	entryType, refType := doc.DocType.stockEntry()
	movements := make([]stock.Movement, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		qty := l.Quantity
		if entryType == stock.EntryOut {
			qty = qty.Neg()
		}
		unit := l.Rate
		if !l.Discount.IsZero() {
			unit = types.RoundMoney(l.TaxableValue.Div(l.Quantity.Decimal()))
		}
		docID := doc.ID
		movements = append(movements, stock.Movement{
			ProductID:     l.ProductID,
			OccurredOn:    doc.Date,
			EntryType:     entryType,
			Quantity:      qty,
			UnitValue:     unit,
			ReferenceType: refType,
			ReferenceID:   &docID,
		})
	}
	if _, err := e.stock.AppendBatch(ctx, movements); err != nil {
		return err
	}

	if _, err := e.payments.Open(ctx, payment.OpenRequest{
		DocumentID:     doc.ID,
		Kind:           doc.DocType.balanceKind(),
		CounterpartyID: doc.CounterpartyID,
		DocumentDate:   doc.Date,
		DueDate:        doc.DueDate,
		GrandTotal:     doc.GrandTotal,
	}); err != nil {
		return err
	}

	doc.MarkPosted()
	if err := e.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := e.publish(ctx, doc, domain.EventDocumentPosted); err != nil {
		return err
	}
	return e.record(ctx, doc, audit.ActionPost, nil)
}

// Cancel moves a posted document to cancelled. It is refused while any net
// payment stands against the document.
func (e *Engine) Cancel(ctx context.Context, docID id.ID, reason string) (*Document, error) {
	ctx, _, unlock, err := e.lockDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var doc *Document
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = e.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		return e.cancel(ctx, doc, reason)
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Run(ctx, domain.AfterCancel, doc); err != nil {
		logger.Warn(ctx, "after-cancel hook failed", "id", doc.ID, "error", err)
	}

	logger.Info(ctx, "document cancelled",
		"id", doc.ID,
		"number", doc.Number)

	return doc, nil
}

func (e *Engine) cancel(ctx context.Context, doc *Document, reason string) error {
	if err := doc.CanCancel(); err != nil {
		return err
	}
	if err := e.payments.Close(ctx, doc.ID); err != nil {
		return err
	}

	_, refType := doc.DocType.stockEntry()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "document cancelled"
	}
	if _, err := e.stock.VoidByReference(ctx, refType, doc.ID, reason); err != nil {
		return err
	}

	doc.MarkCancelled()
	doc.CancelReason = reason
	if err := e.repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := e.publish(ctx, doc, domain.EventDocumentCancelled); err != nil {
		return err
	}
	return e.record(ctx, doc, audit.ActionCancel, map[string]any{"reason": reason})
}

// Amend cancels a posted document and creates its replacement draft, which
// carries amends_id. Both happen in one transaction.
func (e *Engine) Amend(ctx context.Context, docID id.ID, h Header, lines []LineInput) (*Document, error) {
	ctx, _, unlock, err := e.lockDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var original, replacement *Document
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		original, err = e.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if original.Status != entity.StatusPosted {
			return apperror.NewInvalidDocumentState(docID.String(), string(original.Status), "amend")
		}
		if err := e.cancel(ctx, original, "amended"); err != nil {
			return err
		}
		replacement, err = e.create(ctx, original.DocType, h, lines, &original.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Run(ctx, domain.AfterCancel, original); err != nil {
		logger.Warn(ctx, "after-cancel hook failed", "id", original.ID, "error", err)
	}

	logger.Info(ctx, "document amended",
		"id", original.ID,
		"replacement_id", replacement.ID,
		"replacement_number", replacement.Number)

	return replacement, nil
}

// Get retrieves a document with lines.
func (e *Engine) Get(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := e.repo.GetByID(ctx, docID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, err
	}
	return doc, nil
}

// List retrieves document headers with filtering.
func (e *Engine) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	filter.Normalize()
	return e.repo.List(ctx, filter)
}

// ListPosted returns posted documents in a date range (used by reports).
func (e *Engine) ListPosted(ctx context.Context, docType DocType, from, to time.Time) ([]*Document, error) {
	return e.repo.ListPosted(ctx, docType, from, to)
}

func (e *Engine) publish(ctx context.Context, doc *Document, eventType string) error {
	err := e.events.Publish(ctx, domain.Event{
		AggregateType: "document",
		AggregateID:   doc.ID,
		EventType:     eventType,
		Payload: map[string]any{
			"documentId":     doc.ID,
			"docType":        doc.DocType,
			"number":         doc.Number,
			"date":           types.FormatDate(doc.Date),
			"counterpartyId": doc.CounterpartyID,
			"grandTotal":     types.FormatMoney(doc.GrandTotal),
			"status":         doc.Status,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, doc *Document, action audit.Action, extra map[string]any) error {
	if e.audit == nil {
		return nil
	}
	changes := map[string]any{
		"number":     doc.Number,
		"status":     doc.Status,
		"grandTotal": types.FormatMoney(doc.GrandTotal),
		"lines":      len(doc.Lines),
	}
	for k, v := range extra {
		changes[k] = v
	}
	if err := e.audit.Record(ctx, "document", doc.ID, action, changes); err != nil {
		return fmt.Errorf("audit document: %w", err)
	}
	return nil
}
