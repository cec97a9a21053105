package repository

import (
	"context"
	"errors"
	"fmt"
	"owner_ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LookupRepository reads and creates coupons, payment methods and shipping
// companies by their natural key (coupon code or name).
type LookupRepository interface {
	// FindByKey returns nil, nil when no record has key.
	FindByKey(ctx context.Context, kind models.LookupKind, key string) (*models.Lookup, error)
	Create(ctx context.Context, kind models.LookupKind, key string, rate decimal.Decimal) (*models.Lookup, error)
	// FindOrCreate links to an existing record without touching its rate,
	// or creates one with rate.
	FindOrCreate(ctx context.Context, kind models.LookupKind, key string, rate decimal.Decimal) (*models.Lookup, error)
	List(ctx context.Context, kind models.LookupKind) ([]models.Lookup, error)
}

type lookupRepository struct {
	db *gorm.DB
}

func NewLookupRepository(db *gorm.DB) LookupRepository {
	return &lookupRepository{db: db}
}

func (r *lookupRepository) FindByKey(ctx context.Context, kind models.LookupKind, key string) (*models.Lookup, error) {
	db := r.db.WithContext(ctx)
	var (
		found models.Lookup
		err   error
	)
	switch kind {
	case models.LookupCoupon:
		var c models.Coupon
		err = db.Where("code = ?", key).First(&c).Error
		found = c.Lookup()
	case models.LookupPayment:
		var p models.PaymentMethod
		err = db.Where("name = ?", key).First(&p).Error
		found = p.Lookup()
	case models.LookupShipping:
		var s models.ShippingCompany
		err = db.Where("name = ?", key).First(&s).Error
		found = s.Lookup()
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownLookupKind, kind)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &found, nil
}

func (r *lookupRepository) Create(ctx context.Context, kind models.LookupKind, key string, rate decimal.Decimal) (*models.Lookup, error) {
	var created models.Lookup
	// nested in a savepoint when r.db is already a transaction, so a unique
	// violation does not abort the caller's transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch kind {
		case models.LookupCoupon:
			c := models.Coupon{Code: key, Discount: rate}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
			created = c.Lookup()
		case models.LookupPayment:
			p := models.PaymentMethod{Name: key, Percentage: rate}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			created = p.Lookup()
		case models.LookupShipping:
			s := models.ShippingCompany{Name: key, Percentage: rate}
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
			created = s.Lookup()
		default:
			return fmt.Errorf("%w: %q", models.ErrUnknownLookupKind, kind)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *lookupRepository) FindOrCreate(ctx context.Context, kind models.LookupKind, key string, rate decimal.Decimal) (*models.Lookup, error) {
	found, err := r.FindByKey(ctx, kind, key)
	if err != nil || found != nil {
		return found, err
	}

	created, err := r.Create(ctx, kind, key, rate)
	if err == nil {
		return created, nil
	}

	// another writer may have inserted the same key in between
	if again, findErr := r.FindByKey(ctx, kind, key); findErr == nil && again != nil {
		return again, nil
	}
	return nil, fmt.Errorf("failed to create %s %q: %w", kind, key, err)
}

func (r *lookupRepository) List(ctx context.Context, kind models.LookupKind) ([]models.Lookup, error) {
	db := r.db.WithContext(ctx)
	var out []models.Lookup

	switch kind {
	case models.LookupCoupon:
		var rows []models.Coupon
		if err := db.Order("code").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, c := range rows {
			out = append(out, c.Lookup())
		}
	case models.LookupPayment:
		var rows []models.PaymentMethod
		if err := db.Order("name").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, p := range rows {
			out = append(out, p.Lookup())
		}
	case models.LookupShipping:
		var rows []models.ShippingCompany
		if err := db.Order("name").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, s := range rows {
			out = append(out, s.Lookup())
		}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownLookupKind, kind)
	}
	return out, nil
}
