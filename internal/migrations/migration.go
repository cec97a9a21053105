package migrations

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"owner_ledger/internal/database"
	"owner_ledger/internal/models"
	"owner_ledger/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunMigrations brings the schema up to date and creates default data.
// Existing tables and rows are kept.
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Running database migrations...")

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	if err := SeedLookups(context.Background(), db, log); err != nil {
		log.Warn("Failed to create default data", zap.Error(err))
	}

	log.Info("Database migrations completed successfully!")
	return nil
}

type defaultLookup struct {
	kind models.LookupKind
	key  string
	rate string
}

var defaultLookups = []defaultLookup{
	{models.LookupPayment, "Mada", "1.50"},
	{models.LookupPayment, "Visa", "2.75"},
	{models.LookupPayment, "Apple Pay", "2.75"},
	{models.LookupPayment, "Tabby", "6.00"},
	{models.LookupPayment, "Cash on delivery", "0.00"},
	{models.LookupShipping, "SMSA", "0.00"},
	{models.LookupShipping, "Aramex", "0.00"},
}

// SeedLookups creates the default payment methods and shipping companies.
// Records that already exist keep their rates.
func SeedLookups(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	lookups := repository.NewLookupRepository(db)
	for _, d := range defaultLookups {
		if _, err := lookups.FindOrCreate(ctx, d.kind, d.key, decimal.RequireFromString(d.rate)); err != nil {
			return fmt.Errorf("failed to seed %s %q: %w", d.kind, d.key, err)
		}
	}
	log.Info("Default lookups ready", zap.Int("count", len(defaultLookups)))
	return nil
}

var demoStores = []string{"Noon Corner", "Riyadh Gifts", "Bayt Al Oud", "Jeddah Threads", "Desert Rose", "Qahwa House"}

// SeedDemoOrders inserts n random owner orders for trying the ledger out.
func SeedDemoOrders(ctx context.Context, db *gorm.DB, n int, log *zap.Logger) error {
	orders := repository.NewOrderRepository(db)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	amount := func(max int) decimal.Decimal {
		return decimal.New(int64(rnd.Intn(max*100)), -2)
	}
	pick := func(kind models.LookupKind) *repository.LookupInput {
		var names []string
		for _, d := range defaultLookups {
			if d.kind == kind {
				names = append(names, d.key)
			}
		}
		return &repository.LookupInput{Key: names[rnd.Intn(len(names))]}
	}

	for i := 0; i < n; i++ {
		day := time.Now().AddDate(0, 0, -rnd.Intn(60))
		orderDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)

		order := &models.OwnerOrder{
			StoreName:      demoStores[rnd.Intn(len(demoStores))],
			OrderNumber:    fmt.Sprintf("%d", 100000+rnd.Intn(900000)),
			OrderStatus:    models.OrderStatus(1 + rnd.Intn(2)),
			PaymentStatus:  models.PaymentStatus(1 + rnd.Intn(2)),
			OrderDate:      &orderDate,
			PaymentDate:    &orderDate,
			SallaTotal:     amount(2000),
			ShippingAmount: amount(50),
			Cost:           amount(800),
			TotalDemand:    amount(2000),
		}
		links := repository.OrderLinks{
			Payment:  pick(models.LookupPayment),
			Shipping: pick(models.LookupShipping),
		}
		if err := orders.Create(ctx, order, links); err != nil {
			return fmt.Errorf("failed to seed demo order: %w", err)
		}
	}
	log.Info("Demo orders created", zap.Int("count", n))
	return nil
}
