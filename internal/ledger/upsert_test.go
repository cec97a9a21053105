package ledger

import (
	"context"
	"errors"
	"testing"

	"owner_ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateOrder(ctx context.Context, req CreateOrderRequest) (int64, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpdateOrder(ctx context.Context, req UpdateOrderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func TestUpsert_CreatesThenUpdates(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	cells := scenarioRow(models.OrderPending)
	w := newRecorder(cells)
	derived := NewEngine(nil).Recalculate(w, 0, cells, &Memo{})

	store.On("CreateOrder", ctx, mock.MatchedBy(func(req CreateOrderRequest) bool {
		return req.StoreName == "Acme" &&
			req.Coupon != nil && req.Coupon.Name == "SAVE10" &&
			req.TotalDiscount.Equal(dec("15.5")) &&
			req.TotalGrossProfit.Equal(dec("34.5"))
	})).Return(int64(42), nil).Once()

	u := NewUpserter(store, nil)
	outcome, id, err := u.Upsert(ctx, w, 0, w.cells, &derived)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "42", w.display(FieldID))
	assert.Equal(t, int64(42), w.cells.ID())

	store.On("UpdateOrder", ctx, mock.MatchedBy(func(req UpdateOrderRequest) bool {
		return req.ID == 42
	})).Return(nil).Once()

	outcome, id, err = u.Upsert(ctx, w, 0, w.cells, &derived)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, int64(42), id)

	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestUpsert_SkipsWithoutStoreName(t *testing.T) {
	store := new(MockStore)
	cells := scenarioRow(models.OrderPending)
	cells[FieldStoreName] = Cell{Display: "   "}
	w := newRecorder(cells)

	outcome, id, err := NewUpserter(store, nil).Upsert(context.Background(), w, 0, cells, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, UnassignedID, id)
	assert.Empty(t, w.writes)
	store.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestUpsert_CreateFailureLeavesRowUntouched(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	cells := scenarioRow(models.OrderPending)
	w := newRecorder(cells)
	boom := errors.New("connection refused")

	store.On("CreateOrder", ctx, mock.Anything).Return(int64(0), boom).Once()

	outcome, id, err := NewUpserter(store, nil).Upsert(ctx, w, 0, cells, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, UnassignedID, id)
	assert.Empty(t, w.writes)
}

func TestUpsert_UpdateIsPartial(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	cells := Cells{
		FieldID:            {Display: "7", Value: int64(7)},
		FieldStoreName:     {Display: ""},
		FieldCost:          {Display: "12.00"},
		FieldCoupon:        {Display: "GHOST", Value: dec("0")},
		FieldPaymentMethod: {Display: "Card", Value: dec("2.5")},
	}

	var got UpdateOrderRequest
	store.On("UpdateOrder", ctx, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(UpdateOrderRequest)
	}).Return(nil).Once()

	outcome, _, err := NewUpserter(store, nil).Upsert(ctx, newRecorder(cells), 0, cells, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	assert.Equal(t, int64(7), got.ID)
	assert.Nil(t, got.StoreName)
	assert.Nil(t, got.SallaTotal)
	assert.Nil(t, got.OrderStatus)
	require.NotNil(t, got.Cost)
	assert.Equal(t, "12", got.Cost.String())
	assert.Nil(t, got.Coupon, "zero rate is not linked on update")
	require.NotNil(t, got.Payment)
	assert.Equal(t, "Card", got.Payment.Name)
	assert.Nil(t, got.TotalDiscount, "no derived values without a recalculation")
	assert.Nil(t, got.TotalGrossProfit)
}

func TestUpsert_UpdateFailureIsReturned(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	cells := Cells{FieldID: {Display: "9"}, FieldStoreName: {Display: "Acme"}}
	boom := errors.New("timeout")
	store.On("UpdateOrder", ctx, mock.Anything).Return(boom)

	outcome, id, err := NewUpserter(store, nil).Upsert(ctx, newRecorder(cells), 0, cells, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, int64(9), id)
}

func TestCellsID(t *testing.T) {
	cases := []struct {
		cell Cell
		want int64
	}{
		{Cell{Display: ""}, UnassignedID},
		{Cell{Display: "0"}, UnassignedID},
		{Cell{Display: "abc"}, UnassignedID},
		{Cell{Display: "-1", Value: UnassignedID}, UnassignedID},
		{Cell{Display: "15"}, 15},
		{Cell{Value: 15}, 15},
		{Cell{Value: uint(16)}, 16},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Cells{FieldID: tc.cell}.ID(), "%+v", tc.cell)
	}
	assert.Equal(t, UnassignedID, Cells{}.ID())
}
