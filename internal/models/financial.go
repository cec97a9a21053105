package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is keyed by its code; Discount is a percentage of the salla total.
type Coupon struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Code      string          `json:"code" gorm:"size:250;uniqueIndex"`
	Discount  decimal.Decimal `json:"discount" gorm:"type:decimal(10,2);default:0"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Coupon) TableName() string {
	return "coupons"
}

func (c Coupon) Lookup() Lookup {
	return Lookup{ID: c.ID, Key: c.Code, Rate: c.Discount}
}

// PaymentMethod is keyed by name; Percentage is the processor fee taken
// from the total of orders.
type PaymentMethod struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Name       string          `json:"name" gorm:"size:250;uniqueIndex"`
	Percentage decimal.Decimal `json:"percentage" gorm:"type:decimal(10,2);default:0"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (PaymentMethod) TableName() string {
	return "payments"
}

func (p PaymentMethod) Lookup() Lookup {
	return Lookup{ID: p.ID, Key: p.Name, Rate: p.Percentage}
}

type ShippingCompany struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Name       string          `json:"name" gorm:"size:250;uniqueIndex"`
	Percentage decimal.Decimal `json:"percentage" gorm:"type:decimal(10,2);default:0"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (ShippingCompany) TableName() string {
	return "shipping_companies"
}

func (s ShippingCompany) Lookup() Lookup {
	return Lookup{ID: s.ID, Key: s.Name, Rate: s.Percentage}
}

var ErrUnknownLookupKind = errors.New("unknown lookup kind")

// LookupKind names one of the sub-entity tables resolved by natural key.
type LookupKind string

const (
	LookupCoupon   LookupKind = "coupon"
	LookupPayment  LookupKind = "payment"
	LookupShipping LookupKind = "shipping"
)

func ParseLookupKind(s string) (LookupKind, error) {
	switch LookupKind(strings.ToLower(strings.TrimSpace(s))) {
	case LookupCoupon, "coupons":
		return LookupCoupon, nil
	case LookupPayment, "payments", "payment_method":
		return LookupPayment, nil
	case LookupShipping, "shippings", "shipping_company":
		return LookupShipping, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLookupKind, s)
}

// Lookup is the flattened view of any sub-entity: natural key plus rate.
type Lookup struct {
	ID   uint            `json:"id"`
	Key  string          `json:"key"`
	Rate decimal.Decimal `json:"rate"`
}
