package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BasketRepository interface {
	FindByUser(ctx context.Context, tx *gorm.DB, userID string, lock bool) (*model.Basket, error)
	FindBySession(ctx context.Context, tx *gorm.DB, sessionID string, lock bool) (*model.Basket, error)
	Create(ctx context.Context, tx *gorm.DB, basket *model.Basket) error
	SaveTotals(ctx context.Context, tx *gorm.DB, basket *model.Basket) error
	Reparent(ctx context.Context, tx *gorm.DB, basketID, userID string) error
	SoftDelete(ctx context.Context, tx *gorm.DB, basketID string) error

	CreateItem(ctx context.Context, tx *gorm.DB, item *model.BasketItem) error
	UpdateItem(ctx context.Context, tx *gorm.DB, item *model.BasketItem) error
	MoveItem(ctx context.Context, tx *gorm.DB, itemID uint, basketID string) error
	DeleteItem(ctx context.Context, tx *gorm.DB, itemID uint) error
	DeleteItems(ctx context.Context, tx *gorm.DB, basketID string) error
	CreateSideItem(ctx context.Context, tx *gorm.DB, side *model.BasketItemSideItem) error
	UpdateSideItemQuantity(ctx context.Context, tx *gorm.DB, sideID uint, quantity int) error
}

type basketRepoImpl struct {
	db *gorm.DB
}

func NewBasketRepository(db *gorm.DB) BasketRepository {
	return &basketRepoImpl{
		db: db,
	}
}

func (r *basketRepoImpl) withItems(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.SideItems", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

func (r *basketRepoImpl) FindByUser(ctx context.Context, tx *gorm.DB, userID string, lock bool) (*model.Basket, error) {
	var basket model.Basket
	err := r.withItems(forUpdate(conn(ctx, r.db, tx), lock)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&basket).Error
	if err != nil {
		return nil, err
	}

	return &basket, nil
}

func (r *basketRepoImpl) FindBySession(ctx context.Context, tx *gorm.DB, sessionID string, lock bool) (*model.Basket, error) {
	var basket model.Basket
	err := r.withItems(forUpdate(conn(ctx, r.db, tx), lock)).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&basket).Error
	if err != nil {
		return nil, err
	}

	return &basket, nil
}

func (r *basketRepoImpl) Create(ctx context.Context, tx *gorm.DB, basket *model.Basket) error {
	return conn(ctx, r.db, tx).Omit(clause.Associations).Create(basket).Error
}

func (r *basketRepoImpl) SaveTotals(ctx context.Context, tx *gorm.DB, basket *model.Basket) error {
	return conn(ctx, r.db, tx).
		Model(&model.Basket{}).
		Where("id = ?", basket.ID).
		Updates(map[string]interface{}{
			"subtotal":     basket.Subtotal,
			"tax":          basket.Tax,
			"delivery_fee": basket.DeliveryFee,
			"discount":     basket.Discount,
			"total":        basket.Total,
			"promo_code":   basket.PromoCode,
			"updated_at":   time.Now(),
		}).Error
}

func (r *basketRepoImpl) Reparent(ctx context.Context, tx *gorm.DB, basketID, userID string) error {
	result := conn(ctx, r.db, tx).
		Model(&model.Basket{}).
		Where("id = ?", basketID).
		Updates(map[string]interface{}{
			"user_id":    userID,
			"session_id": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *basketRepoImpl) SoftDelete(ctx context.Context, tx *gorm.DB, basketID string) error {
	return conn(ctx, r.db, tx).Delete(&model.Basket{}, "id = ?", basketID).Error
}

func (r *basketRepoImpl) CreateItem(ctx context.Context, tx *gorm.DB, item *model.BasketItem) error {
	return conn(ctx, r.db, tx).Create(item).Error
}

func (r *basketRepoImpl) UpdateItem(ctx context.Context, tx *gorm.DB, item *model.BasketItem) error {
	return conn(ctx, r.db, tx).
		Model(&model.BasketItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"quantity":     item.Quantity,
			"unit_price":   item.UnitPrice,
			"line_total":   item.LineTotal,
			"instructions": item.Instructions,
			"updated_at":   time.Now(),
		}).Error
}

func (r *basketRepoImpl) MoveItem(ctx context.Context, tx *gorm.DB, itemID uint, basketID string) error {
	return conn(ctx, r.db, tx).
		Model(&model.BasketItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"basket_id":  basketID,
			"updated_at": time.Now(),
		}).Error
}

func (r *basketRepoImpl) DeleteItem(ctx context.Context, tx *gorm.DB, itemID uint) error {
	q := conn(ctx, r.db, tx)
	if err := q.Where("basket_item_id = ?", itemID).Delete(&model.BasketItemSideItem{}).Error; err != nil {
		return err
	}
	return q.Where("id = ?", itemID).Delete(&model.BasketItem{}).Error
}

func (r *basketRepoImpl) DeleteItems(ctx context.Context, tx *gorm.DB, basketID string) error {
	q := conn(ctx, r.db, tx)
	err := q.Where("basket_item_id IN (?)",
		q.Session(&gorm.Session{NewDB: true}).Model(&model.BasketItem{}).Select("id").Where("basket_id = ?", basketID),
	).Delete(&model.BasketItemSideItem{}).Error
	if err != nil {
		return err
	}
	return q.Where("basket_id = ?", basketID).Delete(&model.BasketItem{}).Error
}

func (r *basketRepoImpl) CreateSideItem(ctx context.Context, tx *gorm.DB, side *model.BasketItemSideItem) error {
	return conn(ctx, r.db, tx).Create(side).Error
}

func (r *basketRepoImpl) UpdateSideItemQuantity(ctx context.Context, tx *gorm.DB, sideID uint, quantity int) error {
	return conn(ctx, r.db, tx).
		Model(&model.BasketItemSideItem{}).
		Where("id = ?", sideID).
		Update("quantity", quantity).Error
}
