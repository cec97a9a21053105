package ledger

import (
	"owner_ledger/internal/models"
	"owner_ledger/internal/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result is what one recalculation pass derived for a row, rounded for
// display and persistence.
type Result struct {
	TotalDiscount    decimal.Decimal
	TotalGrossProfit decimal.Decimal
	TotalOfOrders    decimal.Decimal
	// nil when the order status cell was missing or empty
	RetrievedOrder *decimal.Decimal
	// false when the memo was trusted and the discount cell left untouched
	DiscountRecomputed bool
}

// Engine derives discounts, totals and gross profit for a sales-order row.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log}
}

// Recalculate derives the row's money columns from cells, writes them back
// through w and updates memo. It never fails: unreadable input counts as zero.
func (e *Engine) Recalculate(w CellWriter, row int, cells Cells, memo *Memo) Result {
	var res Result

	salla := cells.Amount(FieldSallaTotal)
	shipping := cells.Amount(FieldShippingAmount)
	cost := cells.Amount(FieldCost)
	couponRate := cells.Rate(FieldCoupon)
	paymentRate := cells.Rate(FieldPaymentMethod)
	refused := cells.OrderStatus() == models.OrderRefused

	// Order status always wins over a typed retrieved amount.
	if cells.Text(FieldOrderStatus) != "" {
		retrieved := decimal.Zero
		if refused {
			retrieved = salla
		}
		w.SetCell(row, FieldRetrievedOrder, money.Format(retrieved), retrieved)
		res.RetrievedOrder = &retrieved
	}

	totalOfOrders := money.Round(salla.Add(shipping))

	// payment-method discount on the total of orders
	paymentText := cells.Text(FieldPaymentMethod)
	revenue := totalOfOrders.Sub(money.Percent(totalOfOrders, paymentRate))
	ordersDiscount := totalOfOrders.Sub(revenue)
	if paymentText != memo.Payment ||
		!totalOfOrders.Equal(memo.PaymentBase) ||
		!paymentRate.Equal(memo.PaymentRate) ||
		!memo.TotalOfOrdersDiscount.IsPositive() {
		memo.Payment = paymentText
		memo.PaymentBase = totalOfOrders
		memo.PaymentRate = paymentRate
		memo.TotalOfOrdersDiscount = ordersDiscount
		memo.TotalDiscountPreCalculated = false
	}

	// coupon discount on the salla total
	couponText := cells.Text(FieldCoupon)
	afterCoupon := salla.Sub(money.Percent(salla, couponRate))
	sallaDiscount := salla.Sub(afterCoupon)
	if couponText != memo.Coupon ||
		!salla.Equal(memo.CouponBase) ||
		!couponRate.Equal(memo.CouponRate) ||
		!memo.SallaTotalDiscount.IsPositive() {
		memo.Coupon = couponText
		memo.CouponBase = salla
		memo.CouponRate = couponRate
		memo.SallaTotalDiscount = sallaDiscount
		memo.TotalDiscountPreCalculated = false
	}

	if cells.Has(FieldSallaTotal) && !cells.Unreadable(FieldSallaTotal) {
		w.SetCell(row, FieldSallaTotal, money.Format(salla), salla)
	}
	w.SetCell(row, FieldTotalOfOrders, money.Format(totalOfOrders), totalOfOrders)
	res.TotalOfOrders = totalOfOrders

	if !memo.TotalDiscountPreCalculated {
		memo.TotalDiscountValue = memo.SallaTotalDiscount.Add(memo.TotalOfOrdersDiscount)
		memo.TotalDiscountPreCalculated = true
		discount := money.Round(memo.TotalDiscountValue)
		w.SetCell(row, FieldTotalDiscount, money.Format(discount), discount)
		res.DiscountRecomputed = true
	}

	profit := salla.Sub(cost.Add(memo.TotalDiscountValue))
	if refused {
		profit = profit.Neg()
	}
	profit = money.Round(profit)
	memo.TotalGrossProfit = profit
	w.SetCell(row, FieldTotalGrossProfit, money.Format(profit), profit)

	res.TotalDiscount = money.Round(memo.TotalDiscountValue)
	res.TotalGrossProfit = profit

	e.log.Debug("row recalculated",
		zap.Int("row", row),
		zap.String("total_of_orders", money.Format(totalOfOrders)),
		zap.String("total_discount", money.Format(res.TotalDiscount)),
		zap.String("total_gross_profit", money.Format(profit)),
		zap.Bool("discount_recomputed", res.DiscountRecomputed),
	)
	return res
}
