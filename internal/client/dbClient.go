package client

import (
	"fmt"
	"time"

	"restaurant-order-engine/internal/config"
	"restaurant-order-engine/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDBClient(cfg config.Database) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.URL), nil
	case "postgres":
		return postgres.Open(cfg.URL), nil
	case "sqlite":
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.ProductVariation{},
		&model.Menu{},
		&model.Basket{},
		&model.BasketItem{},
		&model.BasketItemSideItem{},
		&model.CustomerDiscountRule{},
		&model.UserGroup{},
		&model.GroupDiscount{},
		&model.GroupMembership{},
		&model.PointEarningRule{},
		&model.FidelityPointBalance{},
		&model.FidelityPointsTransaction{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderPayment{},
		&model.OrderPaymentRefund{},
		&model.OrderStatusHistory{},
		&model.OrderSequence{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
