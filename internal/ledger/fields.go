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

// Field identifies a ledger column.
type Field int

const (
	FieldID Field = iota
	FieldStoreName
	FieldOrderNumber
	FieldOrderStatus
	FieldOrderDate
	FieldPaymentDate
	FieldPaymentStatus
	FieldSallaTotal
	FieldShippingAmount
	FieldTotalOfOrders
	FieldCost
	FieldTotalDemand
	FieldRetrievedOrder
	FieldCoupon
	FieldPaymentMethod
	FieldShippingCompany
	FieldTotalDiscount
	FieldTotalGrossProfit
	fieldCount
)

var fieldNames = [...]string{
	FieldID:               "id",
	FieldStoreName:        "store_name",
	FieldOrderNumber:      "order_number",
	FieldOrderStatus:      "order_status",
	FieldOrderDate:        "order_date",
	FieldPaymentDate:      "payment_date",
	FieldPaymentStatus:    "payment_status",
	FieldSallaTotal:       "salla_total",
	FieldShippingAmount:   "shipping_amount",
	FieldTotalOfOrders:    "total_of_orders",
	FieldCost:             "cost",
	FieldTotalDemand:      "total_demand",
	FieldRetrievedOrder:   "retrieved_order",
	FieldCoupon:           "coupon",
	FieldPaymentMethod:    "payment_method",
	FieldShippingCompany:  "shipping_company",
	FieldTotalDiscount:    "total_discount",
	FieldTotalGrossProfit: "total_gross_profit",
}

// DateLayout is the on-screen date format.
const DateLayout = "2006-01-02"

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

func ParseField(s string) (Field, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Fields lists every column in display order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// Derived reports whether the column is computed and therefore not editable.
func (f Field) Derived() bool {
	switch f {
	case FieldID, FieldTotalOfOrders, FieldTotalDiscount, FieldTotalGrossProfit:
		return true
	}
	return false
}

// Money reports whether the column holds an amount.
func (f Field) Money() bool {
	switch f {
	case FieldSallaTotal, FieldShippingAmount, FieldTotalOfOrders, FieldCost,
		FieldTotalDemand, FieldRetrievedOrder, FieldTotalDiscount, FieldTotalGrossProfit:
		return true
	}
	return false
}

// Selector reports whether the column names a sub-entity whose stored value is its rate.
func (f Field) Selector() bool {
	return f == FieldCoupon || f == FieldPaymentMethod || f == FieldShippingCompany
}

// Cell holds what is shown and what is stored for one column of a row.
type Cell struct {
	Display string `json:"display"`
	Value   any    `json:"value,omitempty"`
}

// Cells is the current state of one row. A missing key is a cell that
// has not been created yet.
type Cells map[Field]Cell

// CellWriter receives derived values written back into the table.
type CellWriter interface {
	SetCell(row int, f Field, display string, value any)
}

// Amount reads a money cell, preferring the stored value and
// falling back to the display text. Missing or garbage cells are zero.
// Inputs are quantized the same way outputs are.
func (c Cells) Amount(f Field) decimal.Decimal {
	cell, ok := c[f]
	if !ok {
		return decimal.Zero
	}
	if cell.Value != nil {
		if d := money.FromValue(cell.Value); !d.IsZero() {
			return money.Round(d)
		}
	}
	return money.Round(money.Parse(cell.Display))
}

// Unreadable reports a money cell whose text was typed but is not an
// amount. It reads as zero and its text is left as typed.
func (c Cells) Unreadable(f Field) bool {
	cell, ok := c[f]
	if !ok || cell.Value != nil || strings.TrimSpace(cell.Display) == "" {
		return false
	}
	_, err := money.TryParse(cell.Display)
	return err != nil
}

// Rate reads the stored rate of a selector cell. The display text of a
// selector is a name, so it is never parsed; no stored rate reads as zero.
func (c Cells) Rate(f Field) decimal.Decimal {
	cell, ok := c[f]
	if !ok || cell.Value == nil {
		return decimal.Zero
	}
	return money.Round(money.FromValue(cell.Value))
}

func (c Cells) Text(f Field) string {
	return strings.TrimSpace(c[f].Display)
}

func (c Cells) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

// Date returns the stored date of a date cell, parsing the display text if needed.
func (c Cells) Date(f Field) *time.Time {
	cell, ok := c[f]
	if !ok {
		return nil
	}
	switch v := cell.Value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		return v
	}
	if t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(cell.Display), time.Local); err == nil {
		return &t
	}
	return nil
}

// OrderStatus is the row's order status, or zero when the cell is missing or empty.
func (c Cells) OrderStatus() models.OrderStatus {
	cell, ok := c[FieldOrderStatus]
	if !ok || strings.TrimSpace(cell.Display) == "" {
		return 0
	}
	if s, ok := cell.Value.(models.OrderStatus); ok {
		return s
	}
	s, _ := models.ParseOrderStatus(cell.Display)
	return s
}

func (c Cells) PaymentStatus() models.PaymentStatus {
	cell, ok := c[FieldPaymentStatus]
	if !ok || strings.TrimSpace(cell.Display) == "" {
		return 0
	}
	if s, ok := cell.Value.(models.PaymentStatus); ok {
		return s
	}
	s, _ := models.ParsePaymentStatus(cell.Display)
	return s
}

// ID returns the persisted identifier of the row or UnassignedID.
func (c Cells) ID() int64 {
	cell, ok := c[FieldID]
	if !ok {
		return UnassignedID
	}
	var id int64
	switch v := cell.Value.(type) {
	case int64:
		id = v
	case int:
		id = int64(v)
	case uint:
		id = int64(v)
	case nil:
		n, err := strconv.ParseInt(strings.TrimSpace(cell.Display), 10, 64)
		if err != nil {
			return UnassignedID
		}
		id = n
	default:
		return UnassignedID
	}
	if id <= 0 {
		return UnassignedID
	}
	return id
}

// Clone copies the map; cell values are treated as immutable.
func (c Cells) Clone() Cells {
	out := make(Cells, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Map keys the cells by column name.
func (c Cells) Map() map[string]Cell {
	out := make(map[string]Cell, len(c))
	for f, cell := range c {
		out[f.String()] = cell
	}
	return out
}
