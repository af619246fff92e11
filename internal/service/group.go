package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupService interface {
	CreateGroup(ctx context.Context, req dto.CreateGroupRequest, actor string) (*model.UserGroup, error)
	AddGroupDiscount(ctx context.Context, groupID string, req dto.GroupDiscountRequest) (*model.GroupDiscount, error)
	IssueMembership(ctx context.Context, groupID string, req dto.IssueMembershipRequest, actor string) (*model.GroupMembership, error)
	RevokeMembership(ctx context.Context, membershipID string) error
	VerifyMembershipCode(ctx context.Context, code string) (*model.GroupMembership, error)
}

type groupServiceImpl struct {
	db         *gorm.DB
	log        *slog.Logger
	groupRepo  repository.GroupRepository
	signingKey []byte
	now        func() time.Time
}

func NewGroupService(
	db *gorm.DB,
	log *slog.Logger,
	groupRepo repository.GroupRepository,
	signingKey string,
) GroupService {
	return &groupServiceImpl{
		db:         db,
		log:        log,
		groupRepo:  groupRepo,
		signingKey: []byte(signingKey),
		now:        time.Now,
	}
}

func (s *groupServiceImpl) CreateGroup(ctx context.Context, req dto.CreateGroupRequest, actor string) (*model.UserGroup, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("group name is required")
	}
	if err := validateWindow(req.ValidFrom, req.ValidUntil); err != nil {
		return nil, err
	}

	group := &model.UserGroup{
		Name:       strings.TrimSpace(req.Name),
		IsActive:   true,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		CreatedBy:  actorOrSystem(actor),
	}
	if err := s.groupRepo.CreateGroup(ctx, nil, group); err != nil {
		return nil, fmt.Errorf("store user group: %w", err)
	}

	return group, nil
}

func (s *groupServiceImpl) AddGroupDiscount(ctx context.Context, groupID string, req dto.GroupDiscountRequest) (*model.GroupDiscount, error) {
	if err := validateDiscountValue(model.DiscountKind(req.Kind), req.Value); err != nil {
		return nil, err
	}
	if (req.MinOrderAmount.Valid && req.MinOrderAmount.Decimal.IsNegative()) ||
		(req.MaxDiscountAmount.Valid && req.MaxDiscountAmount.Decimal.IsNegative()) {
		return nil, apperror.Validation("discount amounts must not be negative")
	}

	discount := &model.GroupDiscount{
		GroupID:           groupID,
		Name:              strings.TrimSpace(req.Name),
		Kind:              model.DiscountKind(req.Kind),
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		IsActive:          true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.groupRepo.FindGroup(ctx, tx, groupID); err != nil {
			return notFound(err, "user group %s not found", groupID)
		}
		if err := s.groupRepo.CreateDiscount(ctx, tx, discount); err != nil {
			return fmt.Errorf("store group discount: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return discount, nil
}

func (s *groupServiceImpl) IssueMembership(ctx context.Context, groupID string, req dto.IssueMembershipRequest, actor string) (*model.GroupMembership, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, apperror.Validation("customer id is required")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, apperror.Validation("membership expiry must be in the future")
	}

	id := uuid.NewString()
	membership := &model.GroupMembership{
		ID:         id,
		GroupID:    groupID,
		CustomerID: strings.TrimSpace(req.CustomerID),
		Code:       id + "." + s.sign(id),
		IsActive:   true,
		ExpiresAt:  req.ExpiresAt,
		CreatedBy:  actorOrSystem(actor),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.groupRepo.FindGroup(ctx, tx, groupID)
		if err != nil {
			return notFound(err, "user group %s not found", groupID)
		}
		if !group.IsActive {
			return apperror.Conflict("user group %s is not active", groupID)
		}
		if err := s.groupRepo.CreateMembership(ctx, tx, membership); err != nil {
			return fmt.Errorf("store group membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "group membership issued", "group_id", groupID, "customer_id", membership.CustomerID)
	return membership, nil
}

func (s *groupServiceImpl) RevokeMembership(ctx context.Context, membershipID string) error {
	if err := s.groupRepo.DeactivateMembership(ctx, nil, membershipID); err != nil {
		return notFound(err, "group membership %s not found", membershipID)
	}
	return nil
}

// VerifyMembershipCode checks the signature before touching the store.
func (s *groupServiceImpl) VerifyMembershipCode(ctx context.Context, code string) (*model.GroupMembership, error) {
	id, sig, ok := strings.Cut(code, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return nil, apperror.Validation("invalid membership code")
	}

	membership, err := s.groupRepo.FindMembershipByCode(ctx, nil, code)
	if err != nil {
		return nil, notFound(err, "membership code not found")
	}
	if !membership.IsActive {
		return nil, apperror.Conflict("membership %s has been revoked", membership.ID)
	}
	if membership.ExpiresAt != nil && !s.now().Before(*membership.ExpiresAt) {
		return nil, apperror.Conflict("membership %s has expired", membership.ID)
	}

	return membership, nil
}

func (s *groupServiceImpl) sign(id string) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}
