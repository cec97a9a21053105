package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OwnerOrder is one row of the company-owner sales ledger.
type OwnerOrder struct {
	ID             uint             `json:"id" gorm:"primaryKey"`
	StoreName      string           `json:"store_name" gorm:"size:250;not null"`
	OrderNumber    string           `json:"order_number" gorm:"size:250"`
	OrderStatus    OrderStatus      `json:"order_status" gorm:"index"`
	PaymentStatus  PaymentStatus    `json:"payment_status"`
	OrderDate      *time.Time       `json:"order_date" gorm:"type:date;index"`
	PaymentDate    *time.Time       `json:"payment_date" gorm:"type:date"`
	SallaTotal     decimal.Decimal  `json:"salla_total" gorm:"type:decimal(10,2);default:0"`
	ShippingAmount decimal.Decimal  `json:"shipping_amount" gorm:"type:decimal(10,2);default:0"`
	Cost           decimal.Decimal  `json:"cost" gorm:"type:decimal(10,2);default:0"`
	TotalDemand    decimal.Decimal  `json:"total_demand" gorm:"type:decimal(10,2);default:0"`
	RetrievedOrder decimal.Decimal  `json:"retrieved_order" gorm:"type:decimal(10,2);default:0"`
	TotalDiscount  decimal.Decimal  `json:"total_discount" gorm:"type:decimal(10,2);default:0"`
	TotalProfit    decimal.Decimal  `json:"total_profit" gorm:"type:decimal(10,2);default:0"`
	CouponID       *uint            `json:"coupon_id" gorm:"index"`
	PaymentID      *uint            `json:"payment_id" gorm:"index"`
	ShippingID     *uint            `json:"shipping_id" gorm:"index"`
	Coupon         *Coupon          `json:"coupon,omitempty" gorm:"foreignKey:CouponID"`
	Payment        *PaymentMethod   `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`
	Shipping       *ShippingCompany `json:"shipping,omitempty" gorm:"foreignKey:ShippingID"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `json:"deleted_at" gorm:"index"`
}

func (OwnerOrder) TableName() string {
	return "owner_orders"
}

// TotalOfOrders is the order amount including shipping.
func (o *OwnerOrder) TotalOfOrders() decimal.Decimal {
	return o.SallaTotal.Add(o.ShippingAmount)
}
