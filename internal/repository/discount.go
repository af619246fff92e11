package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DiscountRepository interface {
	CreateRule(ctx context.Context, tx *gorm.DB, rule *model.CustomerDiscountRule) error
	SaveRule(ctx context.Context, tx *gorm.DB, rule *model.CustomerDiscountRule) error
	FindRule(ctx context.Context, tx *gorm.DB, ruleID string, lock bool) (*model.CustomerDiscountRule, error)
	ListRules(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.CustomerDiscountRule, error)
	ListActiveRules(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.CustomerDiscountRule, error)
	SetRuleActive(ctx context.Context, tx *gorm.DB, ruleID string, active bool) error
	IncrementUsage(ctx context.Context, tx *gorm.DB, ruleID string) (bool, error)
	DeactivateExhausted(ctx context.Context, tx *gorm.DB, ruleID string) error
}

type discountRepoImpl struct {
	db *gorm.DB
}

func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepoImpl{
		db: db,
	}
}

func (r *discountRepoImpl) CreateRule(ctx context.Context, tx *gorm.DB, rule *model.CustomerDiscountRule) error {
	return conn(ctx, r.db, tx).Create(rule).Error
}

func (r *discountRepoImpl) SaveRule(ctx context.Context, tx *gorm.DB, rule *model.CustomerDiscountRule) error {
	return conn(ctx, r.db, tx).Omit(clause.Associations).Save(rule).Error
}

func (r *discountRepoImpl) FindRule(ctx context.Context, tx *gorm.DB, ruleID string, lock bool) (*model.CustomerDiscountRule, error) {
	var rule model.CustomerDiscountRule
	err := forUpdate(conn(ctx, r.db, tx), lock).
		Where("id = ?", ruleID).
		First(&rule).Error
	if err != nil {
		return nil, err
	}

	return &rule, nil
}

func (r *discountRepoImpl) ListRules(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.CustomerDiscountRule, error) {
	var rules []*model.CustomerDiscountRule
	err := conn(ctx, r.db, tx).
		Where("customer_id = ?", customerID).
		Order("created_at").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *discountRepoImpl) ListActiveRules(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.CustomerDiscountRule, error) {
	var rules []*model.CustomerDiscountRule
	err := conn(ctx, r.db, tx).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Order("created_at").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *discountRepoImpl) SetRuleActive(ctx context.Context, tx *gorm.DB, ruleID string, active bool) error {
	result := conn(ctx, r.db, tx).
		Model(&model.CustomerDiscountRule{}).
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

// IncrementUsage bumps the counter only while the rule is active and under
// its cap. It reports false when the guard rejected the update.
func (r *discountRepoImpl) IncrementUsage(ctx context.Context, tx *gorm.DB, ruleID string) (bool, error) {
	result := conn(ctx, r.db, tx).
		Model(&model.CustomerDiscountRule{}).
		Where(`
			id = ?
			AND is_active = ?
			AND (max_usage_count IS NULL OR usage_count < max_usage_count)
		`, ruleID, true).
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + ?", 1),
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *discountRepoImpl) DeactivateExhausted(ctx context.Context, tx *gorm.DB, ruleID string) error {
	return conn(ctx, r.db, tx).
		Model(&model.CustomerDiscountRule{}).
		Where("id = ? AND max_usage_count IS NOT NULL AND usage_count >= max_usage_count", ruleID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}
