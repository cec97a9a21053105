package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"owner_ledger/internal/models"
	"owner_ledger/internal/money"

	"github.com/shopspring/decimal"
)

// Kind selects which ledger a controller drives. It is fixed at
// construction and decides the shape of new rows.
type Kind int

const (
	KindOwnerOrder Kind = iota + 1
)

func (k Kind) String() string {
	switch k {
	case KindOwnerOrder:
		return "owner_order"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner_order", "owner_orders", "owner":
		return KindOwnerOrder, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// BlankRow returns the default cells of a freshly added row of kind.
func BlankRow(kind Kind) (Cells, error) {
	switch kind {
	case KindOwnerOrder:
		today := time.Now()
		today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.Local)
		zero := Cell{Display: money.Format(decimal.Zero), Value: decimal.Zero}

		cells := Cells{
			FieldID:              {Display: "", Value: UnassignedID},
			FieldStoreName:       {Display: ""},
			FieldOrderNumber:     {Display: ""},
			FieldOrderStatus:     {Display: models.OrderPending.String(), Value: models.OrderPending},
			FieldPaymentStatus:   {Display: models.PaymentPending.String(), Value: models.PaymentPending},
			FieldOrderDate:       {Display: today.Format(DateLayout), Value: today},
			FieldPaymentDate:     {Display: today.Format(DateLayout), Value: today},
			FieldCoupon:          {Display: ""},
			FieldPaymentMethod:   {Display: ""},
			FieldShippingCompany: {Display: ""},
		}
		for _, f := range Fields() {
			if f.Money() {
				cells[f] = zero
			}
		}
		return cells, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

// CellsFromOrder renders a stored order as ledger cells.
func CellsFromOrder(o models.OwnerOrder) Cells {
	cells := Cells{
		FieldID:               {Display: strconv.FormatUint(uint64(o.ID), 10), Value: int64(o.ID)},
		FieldStoreName:        {Display: o.StoreName, Value: o.StoreName},
		FieldOrderNumber:      {Display: o.OrderNumber, Value: o.OrderNumber},
		FieldOrderStatus:      statusCell(o.OrderStatus.Valid(), o.OrderStatus.String(), o.OrderStatus),
		FieldPaymentStatus:    statusCell(o.PaymentStatus.Valid(), o.PaymentStatus.String(), o.PaymentStatus),
		FieldOrderDate:        dateCell(o.OrderDate),
		FieldPaymentDate:      dateCell(o.PaymentDate),
		FieldSallaTotal:       amountCell(o.SallaTotal),
		FieldShippingAmount:   amountCell(o.ShippingAmount),
		FieldTotalOfOrders:    amountCell(o.TotalOfOrders()),
		FieldCost:             amountCell(o.Cost),
		FieldTotalDemand:      amountCell(o.TotalDemand),
		FieldRetrievedOrder:   amountCell(o.RetrievedOrder),
		FieldTotalDiscount:    amountCell(o.TotalDiscount),
		FieldTotalGrossProfit: amountCell(o.TotalProfit),
		FieldCoupon:           {Display: ""},
		FieldPaymentMethod:    {Display: ""},
		FieldShippingCompany:  {Display: ""},
	}
	if o.Coupon != nil {
		cells[FieldCoupon] = Cell{Display: o.Coupon.Code, Value: o.Coupon.Discount}
	}
	if o.Payment != nil {
		cells[FieldPaymentMethod] = Cell{Display: o.Payment.Name, Value: o.Payment.Percentage}
	}
	if o.Shipping != nil {
		cells[FieldShippingCompany] = Cell{Display: o.Shipping.Name, Value: o.Shipping.Percentage}
	}
	return cells
}

func amountCell(d decimal.Decimal) Cell {
	d = money.Round(d)
	return Cell{Display: money.Format(d), Value: d}
}

func dateCell(t *time.Time) Cell {
	if t == nil {
		return Cell{Display: ""}
	}
	return Cell{Display: t.Format(DateLayout), Value: *t}
}

func statusCell(valid bool, name string, value any) Cell {
	if !valid {
		return Cell{Display: ""}
	}
	return Cell{Display: name, Value: value}
}
