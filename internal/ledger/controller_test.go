package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"owner_ledger/internal/models"
	"owner_ledger/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	creates   []CreateOrderRequest
	updates   []UpdateOrderRequest
	deleted   []int64
	createErr error
	deleteErr error
	delay     time.Duration
}

func (s *fakeStore) CreateOrder(_ context.Context, req CreateOrderRequest) (int64, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.nextID++
	s.creates = append(s.creates, req)
	return s.nextID, nil
}

func (s *fakeStore) UpdateOrder(_ context.Context, req UpdateOrderRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, req)
	return nil
}

func (s *fakeStore) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) counts() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates), len(s.updates)
}

type fakeCatalog map[string]decimal.Decimal

func (c fakeCatalog) Rate(_ context.Context, kind models.LookupKind, name string) (decimal.Decimal, bool, error) {
	rate, ok := c[string(kind)+":"+name]
	return rate, ok, nil
}

type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[uint64]interface{}
}

func (d *fakeDrafts) SetDraft(_ context.Context, key uint64, draft interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drafts[key] = draft
	return nil
}

func (d *fakeDrafts) DeleteDraft(_ context.Context, key uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, key)
	return nil
}

func (d *fakeDrafts) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.drafts)
}

func sampleOrder(id uint, store string) models.OwnerOrder {
	return models.OwnerOrder{
		ID:             id,
		StoreName:      store,
		OrderStatus:    models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		SallaTotal:     dec("100"),
		ShippingAmount: dec("10"),
		Cost:           dec("50"),
		Coupon:         &models.Coupon{ID: 1, Code: "SAVE10", Discount: dec("10")},
		Payment:        &models.PaymentMethod{ID: 1, Name: "Card", Percentage: dec("5")},
	}
}

func TestController_CreateThenUpdate(t *testing.T) {
	store := &fakeStore{}
	c := NewTableController(store, Options{})
	ctx := context.Background()

	row, err := c.AddRow(-1)
	require.NoError(t, err)

	res, err := c.OnCellEdited(ctx, row, FieldSallaTotal, "100", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.True(t, c.Snapshot()[row].Unsaved)

	res, err = c.OnCellEdited(ctx, row, FieldStoreName, "Acme", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, int64(1), res.ID)

	cells, err := c.Row(row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cells.ID())
	assert.Equal(t, "1", cells.Text(FieldID))
	assert.False(t, c.Snapshot()[row].Unsaved)

	res, err = c.OnCellEdited(ctx, row, FieldOrderNumber, "A-7", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)

	creates, updates := store.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)
	assert.Equal(t, "Acme", store.creates[0].StoreName)
	require.NotNil(t, store.updates[0].OrderNumber)
	assert.Equal(t, "A-7", *store.updates[0].OrderNumber)
}

func TestController_UnrelatedEditKeepsDiscountCell(t *testing.T) {
	var mu sync.Mutex
	discountWrites := 0
	c := NewTableController(&fakeStore{}, Options{
		OnCellWritten: func(_ int, f Field, _ Cell) {
			if f == FieldTotalDiscount {
				mu.Lock()
				discountWrites++
				mu.Unlock()
			}
		},
	})
	c.Load([]models.OwnerOrder{sampleOrder(5, "Acme")})
	ctx := context.Background()

	res, err := c.OnCellEdited(ctx, 0, FieldOrderNumber, "A-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Derived.DiscountRecomputed)
	assert.Equal(t, "15.50", money.Format(res.Derived.TotalDiscount))
	assert.Equal(t, 1, discountWrites)

	res, err = c.OnCellEdited(ctx, 0, FieldOrderNumber, "A-2", nil)
	require.NoError(t, err)
	assert.False(t, res.Derived.DiscountRecomputed)
	assert.Equal(t, 1, discountWrites)
	assert.Equal(t, "34.50", money.Format(res.Derived.TotalGrossProfit))
}

func TestController_RejectsDerivedAndMissingRows(t *testing.T) {
	c := NewTableController(&fakeStore{}, Options{})
	ctx := context.Background()

	_, err := c.OnCellEdited(ctx, 0, FieldStoreName, "Acme", nil)
	assert.ErrorIs(t, err, ErrRowOutOfRange)

	row, _ := c.AddRow(-1)
	for _, f := range []Field{FieldID, FieldTotalOfOrders, FieldTotalDiscount, FieldTotalGrossProfit} {
		_, err = c.OnCellEdited(ctx, row, f, "1", nil)
		assert.ErrorIs(t, err, ErrReadOnlyField, f.String())
	}
	_, err = c.OnCellEdited(ctx, row, Field(99), "1", nil)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestController_ProgrammaticWritesDoNotRecalculate(t *testing.T) {
	store := &fakeStore{}
	var c *TableController
	var echoes []error
	c = NewTableController(store, Options{
		OnCellWritten: func(row int, f Field, cell Cell) {
			_, err := c.OnCellEdited(context.Background(), row, FieldCost, "999", nil)
			echoes = append(echoes, err)
		},
	})
	c.Load([]models.OwnerOrder{sampleOrder(3, "Acme")})

	_, err := c.OnCellEdited(context.Background(), 0, FieldSallaTotal, "200", nil)
	require.NoError(t, err)

	require.NotEmpty(t, echoes)
	for _, e := range echoes {
		assert.NoError(t, e)
	}
	cells, _ := c.Row(0)
	assert.Equal(t, "50.00", cells.Text(FieldCost))
	_, updates := store.counts()
	assert.Equal(t, 1, updates)
}

func TestController_AsyncNeverCreatesTwice(t *testing.T) {
	store := &fakeStore{delay: 20 * time.Millisecond}
	var mu sync.Mutex
	var results []PersistResult
	c := NewTableController(store, Options{
		Async: true,
		OnPersisted: func(pr PersistResult) {
			mu.Lock()
			results = append(results, pr)
			mu.Unlock()
		},
	})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	res, err := c.OnCellEdited(ctx, row, FieldStoreName, "Acme", nil)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	_, err = c.OnCellEdited(ctx, row, FieldSallaTotal, "10", nil)
	require.NoError(t, err)
	_, err = c.OnCellEdited(ctx, row, FieldCost, "4", nil)
	require.NoError(t, err)

	c.Wait()

	creates, updates := store.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 2, updates)
	require.Len(t, results, 3)
	assert.Equal(t, OutcomeCreated, results[0].Outcome)
	assert.Equal(t, OutcomeUpdated, results[1].Outcome)
	assert.Equal(t, int64(1), results[2].ID)

	cells, _ := c.Row(row)
	assert.Equal(t, int64(1), cells.ID())
}

func TestController_AsyncIDFollowsRowAfterInsertAbove(t *testing.T) {
	store := &fakeStore{delay: 20 * time.Millisecond}
	c := NewTableController(store, Options{Async: true})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	_, err := c.OnCellEdited(ctx, row, FieldStoreName, "Acme", nil)
	require.NoError(t, err)
	_, err = c.AddRow(0)
	require.NoError(t, err)
	c.Wait()

	top, _ := c.Row(0)
	moved, _ := c.Row(1)
	assert.Equal(t, UnassignedID, top.ID())
	assert.Equal(t, int64(1), moved.ID())
	assert.Equal(t, "Acme", moved.Text(FieldStoreName))
}

func TestController_RemoveRowDeletesRecordAndInvalidatesMemos(t *testing.T) {
	store := &fakeStore{}
	c := NewTableController(store, Options{})
	c.Load([]models.OwnerOrder{
		sampleOrder(1, "A"),
		sampleOrder(2, "B"),
		sampleOrder(3, "C"),
	})
	ctx := context.Background()
	for row := 0; row < 3; row++ {
		_, err := c.OnCellEdited(ctx, row, FieldOrderNumber, "n", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.memos.count())

	require.NoError(t, c.RemoveRow(ctx, 1))

	assert.Equal(t, []int64{2}, store.deleted)
	assert.Equal(t, 2, c.Len())
	_, ok := c.memos.peek(0)
	assert.True(t, ok)
	_, ok = c.memos.peek(1)
	assert.False(t, ok)
	_, ok = c.memos.peek(2)
	assert.False(t, ok)

	cells, _ := c.Row(1)
	assert.Equal(t, "C", cells.Text(FieldStoreName))
}

func TestController_RemoveRowKeepsRowWhenDeleteFails(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("locked")}
	c := NewTableController(store, Options{})
	c.Load([]models.OwnerOrder{sampleOrder(1, "A")})

	err := c.RemoveRow(context.Background(), 0)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestController_RemoveUnsavedRowSkipsStore(t *testing.T) {
	store := &fakeStore{}
	c := NewTableController(store, Options{})
	row, _ := c.AddRow(-1)

	require.NoError(t, c.RemoveRow(context.Background(), row))
	assert.Empty(t, store.deleted)
	assert.Zero(t, c.Len())
}

func TestController_FailedSaveKeepsDraftUntilRetry(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	drafts := &fakeDrafts{drafts: map[uint64]interface{}{}}
	c := NewTableController(store, Options{Drafts: drafts})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	_, err := c.OnCellEdited(ctx, row, FieldStoreName, "Acme", nil)
	require.Error(t, err)
	assert.True(t, c.Snapshot()[row].Unsaved)
	assert.Equal(t, 1, drafts.len())
	cells, _ := c.Row(row)
	assert.Equal(t, "Acme", cells.Text(FieldStoreName))
	assert.Equal(t, UnassignedID, cells.ID())

	store.mu.Lock()
	store.createErr = nil
	store.mu.Unlock()

	res, err := c.Save(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.False(t, c.Snapshot()[row].Unsaved)
	assert.Zero(t, drafts.len())
}

func TestController_SelectorRates(t *testing.T) {
	catalog := fakeCatalog{
		"coupon:SAVE10": dec("10"),
		"payment:Card":  dec("5"),
	}
	c := NewTableController(&fakeStore{}, Options{Catalog: catalog})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	_, err := c.OnCellEdited(ctx, row, FieldSallaTotal, "100", nil)
	require.NoError(t, err)

	res, err := c.OnCellEdited(ctx, row, FieldCoupon, "SAVE10", nil)
	require.NoError(t, err)
	assert.Equal(t, "10.00", money.Format(res.Derived.TotalDiscount))

	// an explicit rate wins over the catalog
	res, err = c.OnCellEdited(ctx, row, FieldPaymentMethod, "Card", 2)
	require.NoError(t, err)
	assert.Equal(t, "12.00", money.Format(res.Derived.TotalDiscount))

	// unknown name keeps the rate the cell had
	_, err = c.OnCellEdited(ctx, row, FieldCoupon, "RENAMED", nil)
	require.NoError(t, err)
	cells, _ := c.Row(row)
	assert.Equal(t, "10", money.FromValue(cells[FieldCoupon].Value).String())

	res, err = c.OnCellEdited(ctx, row, FieldCoupon, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "2.00", money.Format(res.Derived.TotalDiscount))
}

func TestController_NumericSelectorNameIsNotARate(t *testing.T) {
	store := &fakeStore{}
	c := NewTableController(store, Options{})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	_, err := c.OnCellEdited(ctx, row, FieldSallaTotal, "100", nil)
	require.NoError(t, err)
	res, err := c.OnCellEdited(ctx, row, FieldCoupon, "50", nil)
	require.NoError(t, err)
	assert.Equal(t, "0.00", money.Format(res.Derived.TotalDiscount))
	assert.Equal(t, "100.00", money.Format(res.Derived.TotalGrossProfit))

	res, err = c.OnCellEdited(ctx, row, FieldStoreName, "Acme", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.creates, 1)
	require.NotNil(t, store.creates[0].Coupon)
	assert.Equal(t, "50", store.creates[0].Coupon.Name)
	assert.True(t, store.creates[0].Coupon.Rate.IsZero())
	assert.True(t, store.creates[0].TotalDiscount.IsZero())
}

func TestController_UnreadableAmountKeepsItsText(t *testing.T) {
	c := NewTableController(&fakeStore{}, Options{})
	ctx := context.Background()
	row, _ := c.AddRow(-1)

	res, err := c.OnCellEdited(ctx, row, FieldSallaTotal, "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "0.00", money.Format(res.Derived.TotalOfOrders))

	cells, _ := c.Row(row)
	assert.Equal(t, "abc", cells.Text(FieldSallaTotal))
	assert.Equal(t, "0.00", cells.Text(FieldTotalOfOrders))
}

func TestController_StatusLabelMarksRefund(t *testing.T) {
	c := NewTableController(&fakeStore{}, Options{})
	c.Load([]models.OwnerOrder{sampleOrder(1, "A")})

	res, err := c.OnCellEdited(context.Background(), 0, FieldOrderStatus, models.OrderRefused.Label(), nil)
	require.NoError(t, err)

	require.NotNil(t, res.Derived.RetrievedOrder)
	assert.Equal(t, "100.00", money.Format(*res.Derived.RetrievedOrder))
	assert.Equal(t, "-34.50", money.Format(res.Derived.TotalGrossProfit))
	cells, _ := c.Row(0)
	assert.Equal(t, models.OrderRefused, cells.OrderStatus())
}

func TestController_LoadResetsMemos(t *testing.T) {
	c := NewTableController(&fakeStore{}, Options{})
	c.Load([]models.OwnerOrder{sampleOrder(1, "A")})
	_, err := c.OnCellEdited(context.Background(), 0, FieldOrderNumber, "x", nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.memos.count())

	c.Load([]models.OwnerOrder{sampleOrder(1, "A"), sampleOrder(2, "B")})

	assert.Zero(t, c.memos.count())
	assert.Equal(t, 2, c.Len())
	sums := c.Sums()
	assert.Equal(t, "200.00", money.Format(sums[FieldSallaTotal]))
	assert.Equal(t, "220.00", money.Format(sums[FieldTotalOfOrders]))
}

func TestBlankRowAndParseKind(t *testing.T) {
	cells, err := BlankRow(KindOwnerOrder)
	require.NoError(t, err)
	assert.Equal(t, UnassignedID, cells.ID())
	assert.Equal(t, models.OrderPending, cells.OrderStatus())
	assert.Equal(t, models.PaymentPending, cells.PaymentStatus())
	assert.NotNil(t, cells.Date(FieldOrderDate))
	assert.Equal(t, "0.00", cells.Text(FieldSallaTotal))

	_, err = BlankRow(Kind(42))
	assert.ErrorIs(t, err, ErrUnknownKind)

	k, err := ParseKind("owner_order")
	require.NoError(t, err)
	assert.Equal(t, KindOwnerOrder, k)
	_, err = ParseKind("employee")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
