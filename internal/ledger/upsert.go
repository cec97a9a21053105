package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"owner_ledger/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UnassignedID marks a row that has no persisted record yet.
const UnassignedID int64 = -1

// SubEntity is a coupon, payment method or shipping company referenced by
// its natural key. Rate is the discount or percentage.
type SubEntity struct {
	Name string
	Rate decimal.Decimal
}

type CreateOrderRequest struct {
	StoreName        string
	OrderNumber      string
	OrderStatus      models.OrderStatus
	PaymentStatus    models.PaymentStatus
	OrderDate        *time.Time
	PaymentDate      *time.Time
	SallaTotal       decimal.Decimal
	ShippingAmount   decimal.Decimal
	Cost             decimal.Decimal
	TotalDemand      decimal.Decimal
	RetrievedOrder   decimal.Decimal
	TotalDiscount    decimal.Decimal
	TotalGrossProfit decimal.Decimal
	Coupon           *SubEntity
	Payment          *SubEntity
	Shipping         *SubEntity
}

// UpdateOrderRequest is a partial update: nil fields are left as stored.
type UpdateOrderRequest struct {
	ID               int64
	StoreName        *string
	OrderNumber      *string
	OrderStatus      *models.OrderStatus
	PaymentStatus    *models.PaymentStatus
	OrderDate        *time.Time
	PaymentDate      *time.Time
	SallaTotal       *decimal.Decimal
	ShippingAmount   *decimal.Decimal
	Cost             *decimal.Decimal
	TotalDemand      *decimal.Decimal
	RetrievedOrder   *decimal.Decimal
	TotalDiscount    *decimal.Decimal
	TotalGrossProfit *decimal.Decimal
	Coupon           *SubEntity
	Payment          *SubEntity
	Shipping         *SubEntity
}

// Store is the persistence collaborator. Implementations resolve each
// SubEntity by exact natural key, creating it when absent, before linking.
type Store interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (int64, error)
	UpdateOrder(ctx context.Context, req UpdateOrderRequest) error
}

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	}
	return "skipped"
}

// Upserter decides between creating and updating the record behind a row.
type Upserter struct {
	store Store
	log   *zap.Logger
}

func NewUpserter(store Store, log *zap.Logger) *Upserter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Upserter{store: store, log: log}
}

// Upsert persists the row. derived is the result of this pass's
// recalculation, or nil when none ran. On create the new id is written to
// the row's id cell through w. On error nothing is written.
func (u *Upserter) Upsert(ctx context.Context, w CellWriter, row int, cells Cells, derived *Result) (Outcome, int64, error) {
	id := cells.ID()

	if id == UnassignedID {
		if cells.Text(FieldStoreName) == "" {
			return OutcomeSkipped, UnassignedID, nil
		}
		req := buildCreate(cells, derived)
		newID, err := u.store.CreateOrder(ctx, req)
		if err != nil {
			u.log.Warn("create order failed", zap.Int("row", row), zap.Error(err))
			return OutcomeSkipped, UnassignedID, fmt.Errorf("create order for row %d: %w", row, err)
		}
		w.SetCell(row, FieldID, strconv.FormatInt(newID, 10), newID)
		u.log.Info("order created", zap.Int("row", row), zap.Int64("id", newID))
		return OutcomeCreated, newID, nil
	}

	req := buildUpdate(id, cells, derived)
	if err := u.store.UpdateOrder(ctx, req); err != nil {
		u.log.Warn("update order failed", zap.Int("row", row), zap.Int64("id", id), zap.Error(err))
		return OutcomeSkipped, id, fmt.Errorf("update order %d: %w", id, err)
	}
	u.log.Debug("order updated", zap.Int("row", row), zap.Int64("id", id))
	return OutcomeUpdated, id, nil
}

func buildCreate(cells Cells, derived *Result) CreateOrderRequest {
	req := CreateOrderRequest{
		StoreName:      cells.Text(FieldStoreName),
		OrderNumber:    cells.Text(FieldOrderNumber),
		OrderStatus:    cells.OrderStatus(),
		PaymentStatus:  cells.PaymentStatus(),
		OrderDate:      cells.Date(FieldOrderDate),
		PaymentDate:    cells.Date(FieldPaymentDate),
		SallaTotal:     cells.Amount(FieldSallaTotal),
		ShippingAmount: cells.Amount(FieldShippingAmount),
		Cost:           cells.Amount(FieldCost),
		TotalDemand:    cells.Amount(FieldTotalDemand),
		RetrievedOrder: cells.Amount(FieldRetrievedOrder),
		Coupon:         createSub(cells, FieldCoupon),
		Payment:        createSub(cells, FieldPaymentMethod),
		Shipping:       createSub(cells, FieldShippingCompany),
	}
	if derived != nil {
		req.TotalDiscount = derived.TotalDiscount
		req.TotalGrossProfit = derived.TotalGrossProfit
	}
	return req
}

func buildUpdate(id int64, cells Cells, derived *Result) UpdateOrderRequest {
	req := UpdateOrderRequest{
		ID:             id,
		OrderNumber:    textPtr(cells, FieldOrderNumber),
		OrderDate:      cells.Date(FieldOrderDate),
		PaymentDate:    cells.Date(FieldPaymentDate),
		SallaTotal:     amountPtr(cells, FieldSallaTotal),
		ShippingAmount: amountPtr(cells, FieldShippingAmount),
		Cost:           amountPtr(cells, FieldCost),
		TotalDemand:    amountPtr(cells, FieldTotalDemand),
		RetrievedOrder: amountPtr(cells, FieldRetrievedOrder),
		Coupon:         updateSub(cells, FieldCoupon),
		Payment:        updateSub(cells, FieldPaymentMethod),
		Shipping:       updateSub(cells, FieldShippingCompany),
	}
	// store name is required on the record, an emptied cell keeps the stored one
	if name := cells.Text(FieldStoreName); name != "" {
		req.StoreName = &name
	}
	if s := cells.OrderStatus(); s.Valid() {
		req.OrderStatus = &s
	}
	if s := cells.PaymentStatus(); s.Valid() {
		req.PaymentStatus = &s
	}
	if derived != nil {
		discount, profit := derived.TotalDiscount, derived.TotalGrossProfit
		req.TotalDiscount = &discount
		req.TotalGrossProfit = &profit
	}
	return req
}

// createSub carries the sub-entity whenever a name is present.
func createSub(cells Cells, f Field) *SubEntity {
	name := cells.Text(f)
	if name == "" {
		return nil
	}
	return &SubEntity{Name: name, Rate: cells.Rate(f)}
}

// updateSub needs both a name and a nonzero rate.
func updateSub(cells Cells, f Field) *SubEntity {
	sub := createSub(cells, f)
	if sub == nil || sub.Rate.IsZero() {
		return nil
	}
	return sub
}

func textPtr(cells Cells, f Field) *string {
	if !cells.Has(f) {
		return nil
	}
	s := cells.Text(f)
	return &s
}

func amountPtr(cells Cells, f Field) *decimal.Decimal {
	if !cells.Has(f) {
		return nil
	}
	d := cells.Amount(f)
	return &d
}
