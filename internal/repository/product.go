package repository

import (
	"context"
	"fmt"

	"restaurant-order-engine/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	Create(ctx context.Context, tx *gorm.DB, product *model.Product) error
	CreateMenu(ctx context.Context, tx *gorm.DB, menu *model.Menu) error
	FindByID(ctx context.Context, tx *gorm.DB, productID string) (*model.Product, error)
	FindVariation(ctx context.Context, tx *gorm.DB, variationID string) (*model.ProductVariation, error)
	FindMenu(ctx context.Context, tx *gorm.DB, menuID string) (*model.Menu, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{
			ID: "margherita", Name: "Margherita", BasePrice: decimal.RequireFromString("9.50"), IsActive: true, IsAvailable: true,
			Translations: model.Translations{{Lang: "en", Text: "Margherita"}, {Lang: "it", Text: "Margherita"}},
		},
		{
			ID: "burger", Name: "Classic Burger", BasePrice: decimal.RequireFromString("12.00"), IsActive: true, IsAvailable: true,
			Translations: model.Translations{{Lang: "en", Text: "Classic Burger"}, {Lang: "fr", Text: "Burger classique"}},
		},
		{
			ID: "fries", Name: "Fries", BasePrice: decimal.RequireFromString("3.50"), IsActive: true, IsAvailable: true,
			Translations: model.Translations{{Lang: "en", Text: "Fries"}, {Lang: "fr", Text: "Frites"}},
		},
	}
	variations := []model.ProductVariation{
		{ID: "margherita-large", ProductID: "margherita", Name: "Large", PriceModifier: decimal.RequireFromString("3.00"), IsActive: true},
		{ID: "burger-double", ProductID: "burger", Name: "Double", PriceModifier: decimal.RequireFromString("4.50"), IsActive: true},
	}
	menus := []model.Menu{
		{ID: "lunch-menu", Name: "Lunch Menu", Price: decimal.RequireFromString("15.90"), IsActive: true},
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&products).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&variations).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&menus).Error
	})
}

func (r *productRepoImpl) Create(ctx context.Context, tx *gorm.DB, product *model.Product) error {
	if err := product.Translations.Validate(); err != nil {
		return fmt.Errorf("product %q: %w", product.Name, err)
	}
	return conn(ctx, r.db, tx).Create(product).Error
}

func (r *productRepoImpl) CreateMenu(ctx context.Context, tx *gorm.DB, menu *model.Menu) error {
	return conn(ctx, r.db, tx).Create(menu).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, productID string) (*model.Product, error) {
	var product model.Product
	err := conn(ctx, r.db, tx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindVariation(ctx context.Context, tx *gorm.DB, variationID string) (*model.ProductVariation, error) {
	var variation model.ProductVariation
	err := conn(ctx, r.db, tx).
		Where("id = ?", variationID).
		First(&variation).Error
	if err != nil {
		return nil, err
	}

	return &variation, nil
}

func (r *productRepoImpl) FindMenu(ctx context.Context, tx *gorm.DB, menuID string) (*model.Menu, error) {
	var menu model.Menu
	err := conn(ctx, r.db, tx).
		Where("id = ?", menuID).
		First(&menu).Error
	if err != nil {
		return nil, err
	}

	return &menu, nil
}
