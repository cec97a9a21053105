package repository

import (
	"context"
	"errors"
	"owner_ledger/internal/models"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

// LookupInput names a sub-entity to link; Rate is used only when the
// record has to be created.
type LookupInput struct {
	Key  string
	Rate decimal.Decimal
}

// OrderLinks are the sub-entities to resolve and link. Nil leaves the
// link as it is.
type OrderLinks struct {
	Coupon   *LookupInput
	Payment  *LookupInput
	Shipping *LookupInput
}

type OrderFilter struct {
	// StoreName matches case-insensitively anywhere in the name.
	StoreName   string
	OrderStatus models.OrderStatus
	From        *time.Time
	To          *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.OwnerOrder, links OrderLinks) error
	// Update writes only the given columns plus any resolved links.
	Update(ctx context.Context, id uint, fields map[string]interface{}, links OrderLinks) error
	GetByID(ctx context.Context, id uint) (*models.OwnerOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]models.OwnerOrder, error)
	Delete(ctx context.Context, id uint) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *models.OwnerOrder, links OrderLinks) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := resolveLinks(ctx, tx, links)
		if err != nil {
			return err
		}
		if ids.coupon != nil {
			order.CouponID = ids.coupon
		}
		if ids.payment != nil {
			order.PaymentID = ids.payment
		}
		if ids.shipping != nil {
			order.ShippingID = ids.shipping
		}
		return tx.Omit("Coupon", "Payment", "Shipping").Create(order).Error
	})
}

func (r *orderRepository) Update(ctx context.Context, id uint, fields map[string]interface{}, links OrderLinks) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OwnerOrder
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		ids, err := resolveLinks(ctx, tx, links)
		if err != nil {
			return err
		}
		updates := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			updates[k] = v
		}
		if ids.coupon != nil {
			updates["coupon_id"] = *ids.coupon
		}
		if ids.payment != nil {
			updates["payment_id"] = *ids.payment
		}
		if ids.shipping != nil {
			updates["shipping_id"] = *ids.shipping
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.OwnerOrder{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*models.OwnerOrder, error) {
	var order models.OwnerOrder
	err := r.db.WithContext(ctx).
		Preload("Coupon").Preload("Payment").Preload("Shipping").
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]models.OwnerOrder, error) {
	q := r.db.WithContext(ctx).
		Preload("Coupon").Preload("Payment").Preload("Shipping")

	if name := strings.TrimSpace(filter.StoreName); name != "" {
		q = q.Where("LOWER(store_name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.OrderStatus.Valid() {
		q = q.Where("order_status = ?", filter.OrderStatus)
	}
	if filter.From != nil {
		q = q.Where("order_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("order_date <= ?", *filter.To)
	}

	var orders []models.OwnerOrder
	err := q.Order("created_at").Order("id").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.OwnerOrder{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type linkIDs struct {
	coupon, payment, shipping *uint
}

// resolveLinks finds or creates each named sub-entity inside tx.
func resolveLinks(ctx context.Context, tx *gorm.DB, links OrderLinks) (linkIDs, error) {
	var ids linkIDs
	lookups := NewLookupRepository(tx)

	resolve := func(kind models.LookupKind, in *LookupInput) (*uint, error) {
		if in == nil || strings.TrimSpace(in.Key) == "" {
			return nil, nil
		}
		found, err := lookups.FindOrCreate(ctx, kind, in.Key, in.Rate)
		if err != nil {
			return nil, err
		}
		id := found.ID
		return &id, nil
	}

	var err error
	if ids.coupon, err = resolve(models.LookupCoupon, links.Coupon); err != nil {
		return ids, err
	}
	if ids.payment, err = resolve(models.LookupPayment, links.Payment); err != nil {
		return ids, err
	}
	if ids.shipping, err = resolve(models.LookupShipping, links.Shipping); err != nil {
		return ids, err
	}
	return ids, nil
}
