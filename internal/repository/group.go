package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository interface {
	CreateGroup(ctx context.Context, tx *gorm.DB, group *model.UserGroup) error
	FindGroup(ctx context.Context, tx *gorm.DB, groupID string) (*model.UserGroup, error)
	CreateDiscount(ctx context.Context, tx *gorm.DB, discount *model.GroupDiscount) error
	CreateMembership(ctx context.Context, tx *gorm.DB, membership *model.GroupMembership) error
	FindMembershipByCode(ctx context.Context, tx *gorm.DB, code string) (*model.GroupMembership, error)
	DeactivateMembership(ctx context.Context, tx *gorm.DB, membershipID string) error
	ListActiveMemberships(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.GroupMembership, error)
	FindGroupsWithActiveDiscounts(ctx context.Context, tx *gorm.DB, groupIDs []string) ([]*model.UserGroup, error)
}

type groupRepoImpl struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepoImpl{
		db: db,
	}
}

func (r *groupRepoImpl) CreateGroup(ctx context.Context, tx *gorm.DB, group *model.UserGroup) error {
	return conn(ctx, r.db, tx).Omit(clause.Associations).Create(group).Error
}

func (r *groupRepoImpl) FindGroup(ctx context.Context, tx *gorm.DB, groupID string) (*model.UserGroup, error) {
	var group model.UserGroup
	err := conn(ctx, r.db, tx).
		Preload("Discounts").
		Where("id = ?", groupID).
		First(&group).Error
	if err != nil {
		return nil, err
	}

	return &group, nil
}

func (r *groupRepoImpl) CreateDiscount(ctx context.Context, tx *gorm.DB, discount *model.GroupDiscount) error {
	return conn(ctx, r.db, tx).Create(discount).Error
}

func (r *groupRepoImpl) CreateMembership(ctx context.Context, tx *gorm.DB, membership *model.GroupMembership) error {
	return conn(ctx, r.db, tx).Create(membership).Error
}

func (r *groupRepoImpl) FindMembershipByCode(ctx context.Context, tx *gorm.DB, code string) (*model.GroupMembership, error) {
	var membership model.GroupMembership
	err := conn(ctx, r.db, tx).
		Where("code = ?", code).
		First(&membership).Error
	if err != nil {
		return nil, err
	}

	return &membership, nil
}

func (r *groupRepoImpl) DeactivateMembership(ctx context.Context, tx *gorm.DB, membershipID string) error {
	result := conn(ctx, r.db, tx).
		Model(&model.GroupMembership{}).
		Where("id = ?", membershipID).
		Updates(map[string]interface{}{
			"is_active":  false,
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

func (r *groupRepoImpl) ListActiveMemberships(ctx context.Context, tx *gorm.DB, customerID string) ([]*model.GroupMembership, error) {
	var memberships []*model.GroupMembership
	err := conn(ctx, r.db, tx).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}

func (r *groupRepoImpl) FindGroupsWithActiveDiscounts(ctx context.Context, tx *gorm.DB, groupIDs []string) ([]*model.UserGroup, error) {
	var groups []*model.UserGroup
	if len(groupIDs) == 0 {
		return groups, nil
	}

	err := conn(ctx, r.db, tx).
		Preload("Discounts", "is_active = ?", true).
		Where("id IN ? AND is_active = ?", groupIDs, true).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	return groups, nil
}
