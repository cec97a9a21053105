package database

import (
	"path/filepath"
	"testing"

	"owner_ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize_SQLiteMigratesSchema(t *testing.T) {
	db, err := Initialize("sqlite", filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)

	for _, model := range []interface{}{
		&models.OwnerOrder{},
		&models.Coupon{},
		&models.PaymentMethod{},
		&models.ShippingCompany{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", 0)
	assert.Error(t, err)
}
