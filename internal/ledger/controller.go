package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"owner_ledger/internal/models"
	"owner_ledger/internal/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Catalog resolves the rate of a coupon, payment method or shipping
// company from its name. found is false when no record carries the name.
type Catalog interface {
	Rate(ctx context.Context, kind models.LookupKind, name string) (rate decimal.Decimal, found bool, err error)
}

// DraftStore keeps a copy of rows whose last save failed.
type DraftStore interface {
	SetDraft(ctx context.Context, key uint64, draft interface{}) error
	DeleteDraft(ctx context.Context, key uint64) error
}

// Persistence is the Store the controller saves through, plus deletion.
type Persistence interface {
	Store
	DeleteOrder(ctx context.Context, id int64) error
}

// PersistResult reports how one queued save of a row ended.
type PersistResult struct {
	Key     uint64
	Row     int
	Outcome Outcome
	ID      int64
	Err     error
}

// EditResult is what an edit or an explicit save produced. Outcome and ID
// are only meaningful when Queued is false.
type EditResult struct {
	Row     int     `json:"row"`
	Derived Result  `json:"-"`
	Outcome Outcome `json:"-"`
	ID      int64   `json:"id"`
	Queued  bool    `json:"queued"`
}

type Options struct {
	Kind Kind
	// Async returns from edits before the row is saved; results arrive
	// through OnPersisted.
	Async   bool
	Catalog Catalog
	Drafts  DraftStore
	// OnPersisted runs on the queue goroutine after every save attempt. It
	// must not call back into the controller.
	OnPersisted func(PersistResult)
	// OnCellWritten observes programmatic writes, e.g. to repaint a view.
	// Edits it feeds back through OnCellEdited are ignored.
	OnCellWritten func(row int, f Field, cell Cell)
	Logger        *zap.Logger
}

// TableController owns a Sheet and turns cell edits into recalculation and
// persistence. Edits are handled one at a time; saves of the same row are
// serialized on a per-row queue so a pending create is never repeated.
type TableController struct {
	mu       sync.Mutex
	suppress atomic.Int32

	kind          Kind
	async         bool
	catalog       Catalog
	drafts        DraftStore
	onPersisted   func(PersistResult)
	onCellWritten func(row int, f Field, cell Cell)

	sheet    *Sheet
	memos    *MemoStore
	engine   *Engine
	upserter *Upserter
	store    Persistence
	queue    *rowQueue
	log      *zap.Logger
}

func NewTableController(store Persistence, opts Options) *TableController {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	kind := opts.Kind
	if kind == 0 {
		kind = KindOwnerOrder
	}

	c := &TableController{
		kind:          kind,
		async:         opts.Async,
		catalog:       opts.Catalog,
		drafts:        opts.Drafts,
		onPersisted:   opts.OnPersisted,
		onCellWritten: opts.OnCellWritten,
		sheet:         NewSheet(),
		memos:         NewMemoStore(),
		engine:        NewEngine(log),
		upserter:      NewUpserter(store, log),
		store:         store,
		queue:         newRowQueue(),
		log:           log,
	}
	c.sheet.OnStructureChange(c.invalidateMemos)
	return c
}

func (c *TableController) invalidateMemos(from int) {
	if from == 0 {
		c.memos.ResetAll()
		return
	}
	c.memos.InvalidateFrom(from)
}

func (c *TableController) Kind() Kind { return c.kind }

func (c *TableController) Len() int { return c.sheet.Len() }

func (c *TableController) Row(row int) (Cells, error) { return c.sheet.Row(row) }

func (c *TableController) Snapshot() []RowView { return c.sheet.Snapshot() }

func (c *TableController) Sums() map[Field]decimal.Decimal { return c.sheet.Sums() }

// SetCell writes one cell without recalculating. The engine and the
// upserter write derived values through it.
func (c *TableController) SetCell(row int, f Field, display string, value any) {
	c.sheet.SetCell(row, f, display, value)
	c.notify(row, f, Cell{Display: display, Value: value})
}

func (c *TableController) notify(row int, f Field, cell Cell) {
	if c.onCellWritten != nil {
		c.onCellWritten(row, f, cell)
	}
}

// quietly runs fn with recalculation suppressed.
func (c *TableController) quietly(fn func()) {
	c.suppress.Add(1)
	defer c.suppress.Add(-1)
	fn()
}

// OnCellEdited applies a user edit of field f in row, recalculates the row
// and saves it. value, when non-nil, is the stored value chosen alongside
// the text (e.g. the rate picked with a coupon name).
func (c *TableController) OnCellEdited(ctx context.Context, row int, f Field, text string, value any) (EditResult, error) {
	out := EditResult{Row: row, ID: UnassignedID}
	if c.suppress.Load() > 0 {
		return out, nil
	}
	if f < 0 || f >= fieldCount {
		return out, fmt.Errorf("%w: %d", ErrUnknownField, f)
	}
	if f.Derived() {
		return out, fmt.Errorf("%w: %s", ErrReadOnlyField, f)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.sheet.Key(row)
	if err != nil {
		return out, err
	}
	prior, err := c.sheet.Row(row)
	if err != nil {
		return out, err
	}
	cell := c.parseCell(ctx, f, text, value, prior[f])

	var res Result
	c.quietly(func() {
		c.SetCell(row, f, cell.Display, cell.Value)
		cells, _ := c.sheet.Row(row)
		res = c.engine.Recalculate(c, row, cells, c.memos.GetOrCreate(row))
	})
	out.Derived = res

	if c.async {
		c.enqueue(ctx, key, &res)
		out.Queued = true
		return out, nil
	}
	pr := c.persistNow(ctx, key, &res)
	out.Outcome, out.ID = pr.Outcome, pr.ID
	return out, pr.Err
}

// Save recalculates the row and saves it, waiting for the result in either
// mode. It is the retry for a row left unsaved.
func (c *TableController) Save(ctx context.Context, row int) (EditResult, error) {
	out := EditResult{Row: row, ID: UnassignedID}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.sheet.Key(row)
	if err != nil {
		return out, err
	}
	cells, err := c.sheet.Row(row)
	if err != nil {
		return out, err
	}

	var res Result
	c.quietly(func() {
		res = c.engine.Recalculate(c, row, cells, c.memos.GetOrCreate(row))
	})
	out.Derived = res

	pr := c.persistNow(ctx, key, &res)
	out.Outcome, out.ID = pr.Outcome, pr.ID
	return out, pr.Err
}

// Load replaces every row with orders. Pending saves finish first.
func (c *TableController) Load(orders []models.OwnerOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.wait()

	rows := make([]Cells, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, CellsFromOrder(o))
	}
	c.quietly(func() {
		c.sheet.Replace(rows)
	})
	c.log.Info("ledger loaded", zap.Stringer("kind", c.kind), zap.Int("rows", len(rows)))
}

// AddRow inserts a blank row at position, or appends when position is out
// of range, and returns where it landed.
func (c *TableController) AddRow(position int) (int, error) {
	cells, err := BlankRow(c.kind)
	if err != nil {
		return -1, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var idx int
	c.quietly(func() {
		idx = c.sheet.InsertRow(position, cells)
	})
	if key, err := c.sheet.Key(idx); err == nil {
		c.sheet.MarkUnsaved(key, true)
	}
	return idx, nil
}

// RemoveRow deletes the row's record, if it has one, then drops the row.
// A failed delete leaves the row in place.
func (c *TableController) RemoveRow(ctx context.Context, row int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.sheet.Key(row)
	if err != nil {
		return err
	}
	// let a pending create hand back its id first
	c.queue.flush(key)

	cells, err := c.sheet.Row(row)
	if err != nil {
		return err
	}
	id := cells.ID()
	if id != UnassignedID {
		if err := c.store.DeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("delete order %d: %w", id, err)
		}
	}

	c.quietly(func() {
		_, err = c.sheet.RemoveRow(row)
	})
	if err != nil {
		return err
	}
	c.dropDraft(ctx, key)
	c.log.Info("row removed", zap.Int("row", row), zap.Int64("id", id))
	return nil
}

// Wait blocks until every queued save has finished.
func (c *TableController) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.wait()
}

func (c *TableController) enqueue(ctx context.Context, key uint64, derived *Result) {
	ctx = context.WithoutCancel(ctx)
	c.queue.submit(key, func() {
		c.persist(ctx, key, derived)
	})
}

func (c *TableController) persistNow(ctx context.Context, key uint64, derived *Result) PersistResult {
	var pr PersistResult
	done := make(chan struct{})
	c.queue.submit(key, func() {
		pr = c.persist(ctx, key, derived)
		close(done)
	})
	<-done
	return pr
}

// persist saves the row with key as it is now, not as it was when the
// save was queued.
func (c *TableController) persist(ctx context.Context, key uint64, derived *Result) PersistResult {
	row, cells, ok := c.sheet.RowByKey(key)
	if !ok {
		pr := PersistResult{Key: key, Row: -1, ID: UnassignedID, Err: ErrRowRemoved}
		c.report(pr)
		return pr
	}

	w := &keyedWriter{c: c, key: key, echo: !c.async}
	outcome, id, err := c.upserter.Upsert(ctx, w, row, cells, derived)
	pr := PersistResult{Key: key, Row: row, Outcome: outcome, ID: id, Err: err}

	switch {
	case err != nil:
		c.sheet.MarkUnsaved(key, true)
		c.keepDraft(ctx, key)
	case outcome == OutcomeSkipped:
		c.sheet.MarkUnsaved(key, true)
	default:
		c.sheet.MarkUnsaved(key, false)
		c.dropDraft(ctx, key)
	}
	c.report(pr)
	return pr
}

func (c *TableController) report(pr PersistResult) {
	if pr.Err != nil {
		c.log.Warn("row not saved", zap.Uint64("key", pr.Key), zap.Int("row", pr.Row), zap.Error(pr.Err))
	}
	if c.onPersisted != nil {
		c.onPersisted(pr)
	}
}

func (c *TableController) keepDraft(ctx context.Context, key uint64) {
	if c.drafts == nil {
		return
	}
	view, ok := c.sheet.View(key)
	if !ok {
		return
	}
	if err := c.drafts.SetDraft(ctx, key, view); err != nil {
		c.log.Warn("failed to keep draft", zap.Uint64("key", key), zap.Error(err))
	}
}

func (c *TableController) dropDraft(ctx context.Context, key uint64) {
	if c.drafts == nil {
		return
	}
	if err := c.drafts.DeleteDraft(ctx, key); err != nil {
		c.log.Warn("failed to drop draft", zap.Uint64("key", key), zap.Error(err))
	}
}

// keyedWriter follows a row by key, so an id written back after other rows
// moved still lands on the right row.
type keyedWriter struct {
	c    *TableController
	key  uint64
	echo bool
}

func (w *keyedWriter) SetCell(_ int, f Field, display string, value any) {
	if !w.c.sheet.SetCellByKey(w.key, f, display, value) {
		return
	}
	if !w.echo {
		return
	}
	if row, ok := w.c.sheet.IndexOf(w.key); ok {
		w.c.quietly(func() {
			w.c.notify(row, f, Cell{Display: display, Value: value})
		})
	}
}

// parseCell turns edit text into the cell to store. Unreadable amounts and
// dates keep their text and read as empty.
func (c *TableController) parseCell(ctx context.Context, f Field, text string, value any, prior Cell) Cell {
	raw := strings.TrimSpace(text)
	if raw == "" && value != nil && !f.Selector() && !f.Money() {
		raw = strings.TrimSpace(fmt.Sprint(value))
	}

	switch {
	case f.Money():
		if value != nil {
			d := money.Round(money.FromValue(value))
			return Cell{Display: money.Format(d), Value: d}
		}
		if raw == "" {
			return Cell{Display: "", Value: decimal.Zero}
		}
		d, err := money.TryParse(raw)
		if err != nil {
			c.log.Debug("unreadable amount", zap.Stringer("field", f), zap.String("text", raw))
			return Cell{Display: raw}
		}
		d = money.Round(d)
		return Cell{Display: money.Format(d), Value: d}

	case f.Selector():
		return c.selectorCell(ctx, f, raw, value, prior)

	case f == FieldOrderStatus:
		if raw == "" {
			return Cell{}
		}
		s, err := models.ParseOrderStatus(raw)
		if err != nil {
			return Cell{Display: raw}
		}
		return Cell{Display: s.String(), Value: s}

	case f == FieldPaymentStatus:
		if raw == "" {
			return Cell{}
		}
		s, err := models.ParsePaymentStatus(raw)
		if err != nil {
			return Cell{Display: raw}
		}
		return Cell{Display: s.String(), Value: s}

	case f == FieldOrderDate || f == FieldPaymentDate:
		if raw == "" {
			return Cell{}
		}
		t, err := time.ParseInLocation(DateLayout, raw, time.Local)
		if err != nil {
			return Cell{Display: raw}
		}
		return Cell{Display: t.Format(DateLayout), Value: t}
	}
	return Cell{Display: raw, Value: raw}
}

// selectorCell picks the rate for a sub-entity name: the rate sent with the
// edit, then the catalog, then whatever the cell held before.
func (c *TableController) selectorCell(ctx context.Context, f Field, name string, value any, prior Cell) Cell {
	if name == "" {
		return Cell{Display: "", Value: decimal.Zero}
	}
	if value != nil {
		return Cell{Display: name, Value: money.FromValue(value)}
	}
	if c.catalog != nil {
		rate, found, err := c.catalog.Rate(ctx, lookupKindOf(f), name)
		switch {
		case err != nil:
			c.log.Warn("rate lookup failed", zap.Stringer("field", f), zap.String("name", name), zap.Error(err))
		case found:
			return Cell{Display: name, Value: rate}
		}
	}
	return Cell{Display: name, Value: money.FromValue(prior.Value)}
}

func lookupKindOf(f Field) models.LookupKind {
	switch f {
	case FieldCoupon:
		return models.LookupCoupon
	case FieldPaymentMethod:
		return models.LookupPayment
	}
	return models.LookupShipping
}
