package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"owner_ledger/internal/ledger"
	"owner_ledger/internal/models"
	"owner_ledger/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LookupCache holds the per-kind lookup listings. *redis.Client satisfies it.
type LookupCache interface {
	GetLookups(ctx context.Context, kind models.LookupKind) ([]models.Lookup, bool, error)
	SetLookups(ctx context.Context, kind models.LookupKind, lookups []models.Lookup, ttl time.Duration) error
	InvalidateLookups(ctx context.Context, kinds ...models.LookupKind) error
}

// LedgerService is what the ledger controller persists through and reads
// rates from, plus the read side used by the HTTP handlers.
type LedgerService interface {
	ledger.Persistence
	ledger.Catalog
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.OwnerOrder, error)
	GetOrder(ctx context.Context, id int64) (*models.OwnerOrder, error)
	Lookups(ctx context.Context, kind models.LookupKind) ([]models.Lookup, error)
}

type ledgerService struct {
	orders   repository.OrderRepository
	lookups  repository.LookupRepository
	cache    LookupCache
	cacheTTL time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewLedgerService builds the service. cache may be nil; timeout bounds
// every database call and is ignored when zero.
func NewLedgerService(orders repository.OrderRepository, lookups repository.LookupRepository, cache LookupCache, cacheTTL, timeout time.Duration, log *zap.Logger) LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ledgerService{
		orders:   orders,
		lookups:  lookups,
		cache:    cache,
		cacheTTL: cacheTTL,
		timeout:  timeout,
		log:      log,
	}
}

func (s *ledgerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *ledgerService) CreateOrder(ctx context.Context, req ledger.CreateOrderRequest) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order := &models.OwnerOrder{
		StoreName:      req.StoreName,
		OrderNumber:    req.OrderNumber,
		OrderStatus:    req.OrderStatus,
		PaymentStatus:  req.PaymentStatus,
		OrderDate:      req.OrderDate,
		PaymentDate:    req.PaymentDate,
		SallaTotal:     req.SallaTotal,
		ShippingAmount: req.ShippingAmount,
		Cost:           req.Cost,
		TotalDemand:    req.TotalDemand,
		RetrievedOrder: req.RetrievedOrder,
		TotalDiscount:  req.TotalDiscount,
		TotalProfit:    req.TotalGrossProfit,
	}
	links := linksOf(req.Coupon, req.Payment, req.Shipping)

	if err := s.orders.Create(ctx, order, links); err != nil {
		return ledger.UnassignedID, fmt.Errorf("failed to create order for %q: %w", req.StoreName, err)
	}
	s.invalidate(ctx, links)

	s.log.Debug("order created", zap.Uint("id", order.ID), zap.String("store_name", order.StoreName))
	return int64(order.ID), nil
}

func (s *ledgerService) UpdateOrder(ctx context.Context, req ledger.UpdateOrderRequest) error {
	if req.ID <= 0 {
		return fmt.Errorf("failed to update order: invalid id %d", req.ID)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields := make(map[string]interface{})
	if req.StoreName != nil {
		fields["store_name"] = *req.StoreName
	}
	if req.OrderNumber != nil {
		fields["order_number"] = *req.OrderNumber
	}
	if req.OrderStatus != nil {
		fields["order_status"] = *req.OrderStatus
	}
	if req.PaymentStatus != nil {
		fields["payment_status"] = *req.PaymentStatus
	}
	if req.OrderDate != nil {
		fields["order_date"] = *req.OrderDate
	}
	if req.PaymentDate != nil {
		fields["payment_date"] = *req.PaymentDate
	}
	if req.SallaTotal != nil {
		fields["salla_total"] = *req.SallaTotal
	}
	if req.ShippingAmount != nil {
		fields["shipping_amount"] = *req.ShippingAmount
	}
	if req.Cost != nil {
		fields["cost"] = *req.Cost
	}
	if req.TotalDemand != nil {
		fields["total_demand"] = *req.TotalDemand
	}
	if req.RetrievedOrder != nil {
		fields["retrieved_order"] = *req.RetrievedOrder
	}
	if req.TotalDiscount != nil {
		fields["total_discount"] = *req.TotalDiscount
	}
	if req.TotalGrossProfit != nil {
		fields["total_profit"] = *req.TotalGrossProfit
	}
	links := linksOf(req.Coupon, req.Payment, req.Shipping)

	if err := s.orders.Update(ctx, uint(req.ID), fields, links); err != nil {
		return fmt.Errorf("failed to update order %d: %w", req.ID, err)
	}
	s.invalidate(ctx, links)
	return nil
}

// DeleteOrder treats an order that is already gone as deleted.
func (s *ledgerService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.orders.Delete(ctx, uint(id))
	if errors.Is(err, repository.ErrOrderNotFound) {
		s.log.Warn("order already deleted", zap.Int64("id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	return nil
}

func (s *ledgerService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]models.OwnerOrder, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.orders.List(ctx, filter)
}

func (s *ledgerService) GetOrder(ctx context.Context, id int64) (*models.OwnerOrder, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.orders.GetByID(ctx, uint(id))
}

// Lookups lists one kind of sub-entity, from the cache when it has it.
func (s *ledgerService) Lookups(ctx context.Context, kind models.LookupKind) ([]models.Lookup, error) {
	if s.cache != nil {
		cached, found, err := s.cache.GetLookups(ctx, kind)
		if err != nil {
			s.log.Warn("lookup cache read failed", zap.String("kind", string(kind)), zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	list, err := s.lookups.List(ctx, kind)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetLookups(ctx, kind, list, s.cacheTTL); err != nil {
			s.log.Warn("lookup cache write failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return list, nil
}

func (s *ledgerService) Rate(ctx context.Context, kind models.LookupKind, name string) (decimal.Decimal, bool, error) {
	list, err := s.Lookups(ctx, kind)
	if err != nil {
		return decimal.Zero, false, err
	}
	for _, l := range list {
		if l.Key == name {
			return l.Rate, true, nil
		}
	}
	return decimal.Zero, false, nil
}

// invalidate drops cached listings for kinds a save may have created.
func (s *ledgerService) invalidate(ctx context.Context, links repository.OrderLinks) {
	if s.cache == nil {
		return
	}
	var kinds []models.LookupKind
	if links.Coupon != nil {
		kinds = append(kinds, models.LookupCoupon)
	}
	if links.Payment != nil {
		kinds = append(kinds, models.LookupPayment)
	}
	if links.Shipping != nil {
		kinds = append(kinds, models.LookupShipping)
	}
	if err := s.cache.InvalidateLookups(ctx, kinds...); err != nil {
		s.log.Warn("lookup cache invalidation failed", zap.Error(err))
	}
}

func linksOf(coupon, payment, shipping *ledger.SubEntity) repository.OrderLinks {
	return repository.OrderLinks{
		Coupon:   lookupInput(coupon),
		Payment:  lookupInput(payment),
		Shipping: lookupInput(shipping),
	}
}

func lookupInput(e *ledger.SubEntity) *repository.LookupInput {
	if e == nil || e.Name == "" {
		return nil
	}
	return &repository.LookupInput{Key: e.Name, Rate: e.Rate}
}
