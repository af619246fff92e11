package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"gorm.io/gorm"
)

type PointRuleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, rule *model.PointEarningRule) error
	Save(ctx context.Context, tx *gorm.DB, rule *model.PointEarningRule) error
	FindByID(ctx context.Context, tx *gorm.DB, ruleID string) (*model.PointEarningRule, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*model.PointEarningRule, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*model.PointEarningRule, error)
	SetActive(ctx context.Context, tx *gorm.DB, ruleID string, active bool) error
}

type pointRuleRepoImpl struct {
	db *gorm.DB
}

func NewPointRuleRepository(db *gorm.DB) PointRuleRepository {
	return &pointRuleRepoImpl{
		db: db,
	}
}

func (r *pointRuleRepoImpl) Create(ctx context.Context, tx *gorm.DB, rule *model.PointEarningRule) error {
	return conn(ctx, r.db, tx).Create(rule).Error
}

func (r *pointRuleRepoImpl) Save(ctx context.Context, tx *gorm.DB, rule *model.PointEarningRule) error {
	return conn(ctx, r.db, tx).Save(rule).Error
}

func (r *pointRuleRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, ruleID string) (*model.PointEarningRule, error) {
	var rule model.PointEarningRule
	err := conn(ctx, r.db, tx).
		Where("id = ?", ruleID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}

	return &rule, nil
}

// ListActive returns active rules in evaluation order.
func (r *pointRuleRepoImpl) ListActive(ctx context.Context, tx *gorm.DB) ([]*model.PointEarningRule, error) {
	var rules []*model.PointEarningRule
	err := conn(ctx, r.db, tx).
		Where("is_active = ?", true).
		Order("priority").
		Order("min_order_amount").
		Order("id").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *pointRuleRepoImpl) ListAll(ctx context.Context, tx *gorm.DB) ([]*model.PointEarningRule, error) {
	var rules []*model.PointEarningRule
	err := conn(ctx, r.db, tx).
		Order("min_order_amount").
		Order("id").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *pointRuleRepoImpl) SetActive(ctx context.Context, tx *gorm.DB, ruleID string, active bool) error {
	result := conn(ctx, r.db, tx).
		Model(&model.PointEarningRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"is_active":  active,
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
