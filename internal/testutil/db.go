package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"restaurant-order-engine/internal/client"
	"restaurant-order-engine/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	return open(t, fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name))
}

// NewFileDB opens a sqlite database file under the test's temp dir. Unlike
// the in-memory one it survives the pool discarding its connection, which
// happens when a transaction's context is cancelled.
func NewFileDB(t testing.TB) *gorm.DB {
	t.Helper()

	return open(t, fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "engine.db")))
}

func open(t testing.TB, dsn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := client.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SeedProduct inserts an active, available product.
func SeedProduct(t testing.TB, db *gorm.DB, name, price string) *model.Product {
	t.Helper()

	p := &model.Product{
		Name:         name,
		Translations: model.Translations{{Lang: "en", Text: name}},
		BasePrice:    Money(price),
		IsActive:     true,
		IsAvailable:  true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedVariation inserts an active variation of product.
func SeedVariation(t testing.TB, db *gorm.DB, productID, name, modifier string) *model.ProductVariation {
	t.Helper()

	v := &model.ProductVariation{
		ProductID:     productID,
		Name:          name,
		PriceModifier: Money(modifier),
		IsActive:      true,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed variation: %v", err)
	}
	return v
}

func StrPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }
