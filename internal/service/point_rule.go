package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PointRuleService interface {
	FindApplicableRule(ctx context.Context, orderAmount decimal.Decimal) (*model.PointEarningRule, error)
	ValidateNoOverlap(ctx context.Context, candidate *model.PointEarningRule) error
	CreateRule(ctx context.Context, req dto.PointRuleRequest, actor string) (*model.PointEarningRule, error)
	UpdateRule(ctx context.Context, ruleID string, req dto.PointRuleRequest) (*model.PointEarningRule, error)
	DeactivateRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context) ([]*model.PointEarningRule, error)
}

type pointRuleServiceImpl struct {
	db            *gorm.DB
	log           *slog.Logger
	pointRuleRepo repository.PointRuleRepository
}

func NewPointRuleService(
	db *gorm.DB,
	log *slog.Logger,
	pointRuleRepo repository.PointRuleRepository,
) PointRuleService {
	return &pointRuleServiceImpl{
		db:            db,
		log:           log,
		pointRuleRepo: pointRuleRepo,
	}
}

func (s *pointRuleServiceImpl) FindApplicableRule(ctx context.Context, orderAmount decimal.Decimal) (*model.PointEarningRule, error) {
	rules, err := s.pointRuleRepo.ListActive(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list active point rules: %w", err)
	}

	return pickPointRule(rules, orderAmount), nil
}

// pickPointRule returns the matching rule with the lowest priority number,
// then the lowest minimum, then the lowest id. nil when nothing matches.
func pickPointRule(rules []*model.PointEarningRule, orderAmount decimal.Decimal) *model.PointEarningRule {
	var matches []*model.PointEarningRule
	for _, rule := range rules {
		if rule.IsActive && rule.Contains(orderAmount) {
			matches = append(matches, rule)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.MinOrderAmount.Equal(b.MinOrderAmount) {
			return a.MinOrderAmount.LessThan(b.MinOrderAmount)
		}
		return a.ID < b.ID
	})

	return matches[0]
}

func (s *pointRuleServiceImpl) ValidateNoOverlap(ctx context.Context, candidate *model.PointEarningRule) error {
	return s.validateNoOverlap(ctx, nil, candidate)
}

func (s *pointRuleServiceImpl) validateNoOverlap(ctx context.Context, tx *gorm.DB, candidate *model.PointEarningRule) error {
	rules, err := s.pointRuleRepo.ListActive(ctx, tx)
	if err != nil {
		return fmt.Errorf("list active point rules: %w", err)
	}

	for _, other := range rules {
		if other.ID == candidate.ID {
			continue
		}
		if rangesOverlap(candidate, other) {
			return apperror.Validation("point rule range %s overlaps rule %q with range %s",
				formatRange(candidate), other.Name, formatRange(other))
		}
	}

	return nil
}

// rangesOverlap compares closed intervals, a missing max being unbounded.
func rangesOverlap(a, b *model.PointEarningRule) bool {
	aStartsBeforeBEnds := !b.MaxOrderAmount.Valid || a.MinOrderAmount.LessThanOrEqual(b.MaxOrderAmount.Decimal)
	bStartsBeforeAEnds := !a.MaxOrderAmount.Valid || b.MinOrderAmount.LessThanOrEqual(a.MaxOrderAmount.Decimal)
	return aStartsBeforeBEnds && bStartsBeforeAEnds
}

func formatRange(rule *model.PointEarningRule) string {
	upper := "∞"
	if rule.MaxOrderAmount.Valid {
		upper = rule.MaxOrderAmount.Decimal.StringFixed(2)
	}
	return fmt.Sprintf("[%s, %s]", rule.MinOrderAmount.StringFixed(2), upper)
}

func validatePointRule(req dto.PointRuleRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperror.Validation("point rule name is required")
	}
	if req.MinOrderAmount.IsNegative() {
		return apperror.Validation("min order amount must not be negative")
	}
	if req.MaxOrderAmount.Valid && req.MaxOrderAmount.Decimal.LessThan(req.MinOrderAmount) {
		return apperror.Validation("max order amount %s is below min order amount %s",
			req.MaxOrderAmount.Decimal.StringFixed(2), req.MinOrderAmount.StringFixed(2))
	}
	if req.Points <= 0 {
		return apperror.Validation("points must be greater than zero")
	}
	return nil
}

func (s *pointRuleServiceImpl) CreateRule(ctx context.Context, req dto.PointRuleRequest, actor string) (*model.PointEarningRule, error) {
	if err := validatePointRule(req); err != nil {
		return nil, err
	}

	rule := &model.PointEarningRule{
		Name:           strings.TrimSpace(req.Name),
		MinOrderAmount: req.MinOrderAmount,
		MaxOrderAmount: req.MaxOrderAmount,
		Points:         req.Points,
		Priority:       req.Priority,
		IsActive:       req.IsActive == nil || *req.IsActive,
		CreatedBy:      actorOrSystem(actor),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rule.IsActive {
			if err := s.validateNoOverlap(ctx, tx, rule); err != nil {
				return err
			}
		}
		if err := s.pointRuleRepo.Create(ctx, tx, rule); err != nil {
			return fmt.Errorf("store point rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "point rule created", "rule_id", rule.ID, "range", formatRange(rule), "points", rule.Points)
	return rule, nil
}

func (s *pointRuleServiceImpl) UpdateRule(ctx context.Context, ruleID string, req dto.PointRuleRequest) (*model.PointEarningRule, error) {
	if err := validatePointRule(req); err != nil {
		return nil, err
	}

	var rule *model.PointEarningRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rule, err = s.pointRuleRepo.FindByID(ctx, tx, ruleID)
		if err != nil {
			return notFound(err, "point rule %s not found", ruleID)
		}

		rule.Name = strings.TrimSpace(req.Name)
		rule.MinOrderAmount = req.MinOrderAmount
		rule.MaxOrderAmount = req.MaxOrderAmount
		rule.Points = req.Points
		rule.Priority = req.Priority
		if req.IsActive != nil {
			rule.IsActive = *req.IsActive
		}

		if rule.IsActive {
			if err := s.validateNoOverlap(ctx, tx, rule); err != nil {
				return err
			}
		}
		if err := s.pointRuleRepo.Save(ctx, tx, rule); err != nil {
			return fmt.Errorf("update point rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (s *pointRuleServiceImpl) DeactivateRule(ctx context.Context, ruleID string) error {
	if err := s.pointRuleRepo.SetActive(ctx, nil, ruleID, false); err != nil {
		return notFound(err, "point rule %s not found", ruleID)
	}
	return nil
}

func (s *pointRuleServiceImpl) ListRules(ctx context.Context) ([]*model.PointEarningRule, error) {
	rules, err := s.pointRuleRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list point rules: %w", err)
	}
	return rules, nil
}
