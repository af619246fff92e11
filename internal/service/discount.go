package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DiscountSource string

const (
	DiscountSourceIndividual DiscountSource = "individual"
	DiscountSourceGroup      DiscountSource = "group"
)

// AppliedDiscount is the winning discount for an order amount.
type AppliedDiscount struct {
	Source          DiscountSource     `json:"source"`
	RuleID          string             `json:"rule_id,omitempty"`
	GroupID         string             `json:"group_id,omitempty"`
	GroupDiscountID string             `json:"group_discount_id,omitempty"`
	Name            string             `json:"name"`
	Kind            model.DiscountKind `json:"kind"`
	Value           decimal.Decimal    `json:"value"`
	Amount          decimal.Decimal    `json:"amount"`
}

type DiscountService interface {
	FindBestApplicableDiscount(ctx context.Context, customerID string, orderAmount decimal.Decimal) (*AppliedDiscount, error)
	CreateRule(ctx context.Context, req dto.CustomerDiscountRuleRequest, actor string) (*model.CustomerDiscountRule, error)
	UpdateRule(ctx context.Context, ruleID string, req dto.CustomerDiscountRuleRequest, actor string) (*model.CustomerDiscountRule, error)
	DeactivateRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context, customerID string) ([]*model.CustomerDiscountRule, error)
	RecordUsage(ctx context.Context, ruleID string) (*model.CustomerDiscountRule, error)
}

// discountResolver evaluates candidates inside an optional transaction so
// order assembly sees the same snapshot it writes against.
type discountResolver struct {
	discountRepo repository.DiscountRepository
	groupRepo    repository.GroupRepository
}

func (r discountResolver) best(ctx context.Context, tx *gorm.DB, customerID string, orderAmount decimal.Decimal, now time.Time) (*AppliedDiscount, error) {
	if customerID == "" || !orderAmount.IsPositive() {
		return nil, nil
	}

	individual, err := r.bestIndividual(ctx, tx, customerID, orderAmount, now)
	if err != nil {
		return nil, err
	}
	group, err := r.bestGroup(ctx, tx, customerID, orderAmount, now)
	if err != nil {
		return nil, err
	}

	switch {
	case individual == nil:
		return group, nil
	case group == nil:
		return individual, nil
	case group.Amount.GreaterThan(individual.Amount):
		return group, nil
	default:
		return individual, nil
	}
}

func (r discountResolver) bestIndividual(ctx context.Context, tx *gorm.DB, customerID string, orderAmount decimal.Decimal, now time.Time) (*AppliedDiscount, error) {
	rules, err := r.discountRepo.ListActiveRules(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer discount rules: %w", err)
	}

	var best *AppliedDiscount
	for _, rule := range rules {
		if !rule.IsActive || rule.UsageExhausted() || !model.Within(now, rule.ValidFrom, rule.ValidUntil) {
			continue
		}
		if rule.MinOrderAmount.Valid && orderAmount.LessThan(rule.MinOrderAmount.Decimal) {
			continue
		}
		if rule.MaxOrderAmount.Valid && orderAmount.GreaterThan(rule.MaxOrderAmount.Decimal) {
			continue
		}

		amount := discountAmount(rule.Kind, rule.Value, rule.MaxDiscountAmount, orderAmount)
		if best == nil || amount.GreaterThan(best.Amount) {
			best = &AppliedDiscount{
				Source: DiscountSourceIndividual,
				RuleID: rule.ID,
				Name:   rule.Name,
				Kind:   rule.Kind,
				Value:  rule.Value,
				Amount: amount,
			}
		}
	}

	return best, nil
}

func (r discountResolver) bestGroup(ctx context.Context, tx *gorm.DB, customerID string, orderAmount decimal.Decimal, now time.Time) (*AppliedDiscount, error) {
	memberships, err := r.groupRepo.ListActiveMemberships(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list group memberships: %w", err)
	}

	groupIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
			continue
		}
		groupIDs = append(groupIDs, m.GroupID)
	}

	groups, err := r.groupRepo.FindGroupsWithActiveDiscounts(ctx, tx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("find member groups: %w", err)
	}

	var best *AppliedDiscount
	for _, group := range groups {
		if !group.IsActive || !model.Within(now, group.ValidFrom, group.ValidUntil) {
			continue
		}
		for _, d := range group.Discounts {
			if !d.IsActive {
				continue
			}
			if d.MinOrderAmount.Valid && orderAmount.LessThan(d.MinOrderAmount.Decimal) {
				continue
			}

			amount := discountAmount(d.Kind, d.Value, d.MaxDiscountAmount, orderAmount)
			if best == nil || amount.GreaterThan(best.Amount) {
				best = &AppliedDiscount{
					Source:          DiscountSourceGroup,
					GroupID:         group.ID,
					GroupDiscountID: d.ID,
					Name:            d.Name,
					Kind:            d.Kind,
					Value:           d.Value,
					Amount:          amount,
				}
			}
		}
	}

	return best, nil
}

// discountAmount applies kind and value to orderAmount. A cap of exactly
// zero counts as no cap.
func discountAmount(kind model.DiscountKind, value decimal.Decimal, maxDiscount decimal.NullDecimal, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch kind {
	case model.DiscountKindPercentage:
		amount = orderAmount.Mul(value).Div(hundred)
	default:
		amount = value
	}

	if maxDiscount.Valid && maxDiscount.Decimal.IsPositive() {
		amount = minDecimal(amount, maxDiscount.Decimal)
	}

	return RoundMoney(amount)
}

// recordUsage consumes one use of an individual rule and deactivates it
// once its cap is reached.
func (r discountResolver) recordUsage(ctx context.Context, tx *gorm.DB, ruleID string) (*model.CustomerDiscountRule, error) {
	rule, err := r.discountRepo.FindRule(ctx, tx, ruleID, true)
	if err != nil {
		return nil, notFound(err, "discount rule %s not found", ruleID)
	}
	if !rule.IsActive {
		return nil, apperror.Conflict("discount rule %s is not active", ruleID)
	}
	if rule.UsageExhausted() {
		return nil, apperror.Conflict("discount rule %s reached its usage cap of %d", ruleID, *rule.MaxUsageCount)
	}

	ok, err := r.discountRepo.IncrementUsage(ctx, tx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("increment discount usage: %w", err)
	}
	if !ok {
		return nil, apperror.Conflict("discount rule %s can no longer be used", ruleID)
	}

	if err := r.discountRepo.DeactivateExhausted(ctx, tx, ruleID); err != nil {
		return nil, fmt.Errorf("deactivate exhausted discount rule: %w", err)
	}

	rule, err = r.discountRepo.FindRule(ctx, tx, ruleID, false)
	if err != nil {
		return nil, fmt.Errorf("reload discount rule: %w", err)
	}
	return rule, nil
}

type discountServiceImpl struct {
	db           *gorm.DB
	log          *slog.Logger
	resolver     discountResolver
	discountRepo repository.DiscountRepository
	now          func() time.Time
}

func NewDiscountService(
	db *gorm.DB,
	log *slog.Logger,
	discountRepo repository.DiscountRepository,
	groupRepo repository.GroupRepository,
) DiscountService {
	return &discountServiceImpl{
		db:           db,
		log:          log,
		resolver:     discountResolver{discountRepo: discountRepo, groupRepo: groupRepo},
		discountRepo: discountRepo,
		now:          time.Now,
	}
}

// FindBestApplicableDiscount returns nil when no discount applies.
func (s *discountServiceImpl) FindBestApplicableDiscount(ctx context.Context, customerID string, orderAmount decimal.Decimal) (*AppliedDiscount, error) {
	return s.resolver.best(ctx, nil, customerID, orderAmount, s.now())
}

func validateDiscountValue(kind model.DiscountKind, value decimal.Decimal) error {
	if !kind.Valid() {
		return apperror.Validation("unknown discount kind %q", kind)
	}
	if !value.IsPositive() {
		return apperror.Validation("discount value must be greater than zero")
	}
	if kind == model.DiscountKindPercentage && value.GreaterThan(hundred) {
		return apperror.Validation("percentage discount must not exceed 100")
	}
	return nil
}

func validateWindow(from, until *time.Time) error {
	if from != nil && until != nil && from.After(*until) {
		return apperror.Validation("valid from must not be after valid until")
	}
	return nil
}

func validateCustomerRule(req dto.CustomerDiscountRuleRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return apperror.Validation("customer id is required")
	}
	if err := validateDiscountValue(model.DiscountKind(req.Kind), req.Value); err != nil {
		return err
	}
	for _, bound := range []decimal.NullDecimal{req.MinOrderAmount, req.MaxOrderAmount, req.MaxDiscountAmount} {
		if bound.Valid && bound.Decimal.IsNegative() {
			return apperror.Validation("discount amounts must not be negative")
		}
	}
	if req.MinOrderAmount.Valid && req.MaxOrderAmount.Valid && req.MinOrderAmount.Decimal.GreaterThan(req.MaxOrderAmount.Decimal) {
		return apperror.Validation("min order amount must not exceed max order amount")
	}
	if req.MaxUsageCount != nil && *req.MaxUsageCount <= 0 {
		return apperror.Validation("max usage count must be greater than zero")
	}
	return validateWindow(req.ValidFrom, req.ValidUntil)
}

func (s *discountServiceImpl) CreateRule(ctx context.Context, req dto.CustomerDiscountRuleRequest, actor string) (*model.CustomerDiscountRule, error) {
	if err := validateCustomerRule(req); err != nil {
		return nil, err
	}

	actor = actorOrSystem(actor)
	rule := &model.CustomerDiscountRule{
		CustomerID:        strings.TrimSpace(req.CustomerID),
		Name:              strings.TrimSpace(req.Name),
		Kind:              model.DiscountKind(req.Kind),
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxOrderAmount:    req.MaxOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		MaxUsageCount:     req.MaxUsageCount,
		IsActive:          true,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		CreatedBy:         actor,
		UpdatedBy:         actor,
	}

	if err := s.discountRepo.CreateRule(ctx, nil, rule); err != nil {
		return nil, fmt.Errorf("store discount rule: %w", err)
	}

	s.log.InfoContext(ctx, "discount rule created", "rule_id", rule.ID, "customer_id", rule.CustomerID, "kind", rule.Kind)
	return rule, nil
}

func (s *discountServiceImpl) UpdateRule(ctx context.Context, ruleID string, req dto.CustomerDiscountRuleRequest, actor string) (*model.CustomerDiscountRule, error) {
	if err := validateCustomerRule(req); err != nil {
		return nil, err
	}

	var rule *model.CustomerDiscountRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rule, err = s.discountRepo.FindRule(ctx, tx, ruleID, true)
		if err != nil {
			return notFound(err, "discount rule %s not found", ruleID)
		}

		rule.CustomerID = strings.TrimSpace(req.CustomerID)
		rule.Name = strings.TrimSpace(req.Name)
		rule.Kind = model.DiscountKind(req.Kind)
		rule.Value = req.Value
		rule.MinOrderAmount = req.MinOrderAmount
		rule.MaxOrderAmount = req.MaxOrderAmount
		rule.MaxDiscountAmount = req.MaxDiscountAmount
		rule.MaxUsageCount = req.MaxUsageCount
		rule.ValidFrom = req.ValidFrom
		rule.ValidUntil = req.ValidUntil
		rule.UpdatedBy = actorOrSystem(actor)
		if rule.UsageExhausted() {
			rule.IsActive = false
		}

		if err := s.discountRepo.SaveRule(ctx, tx, rule); err != nil {
			return fmt.Errorf("update discount rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (s *discountServiceImpl) DeactivateRule(ctx context.Context, ruleID string) error {
	if err := s.discountRepo.SetRuleActive(ctx, nil, ruleID, false); err != nil {
		return notFound(err, "discount rule %s not found", ruleID)
	}
	return nil
}

func (s *discountServiceImpl) ListRules(ctx context.Context, customerID string) ([]*model.CustomerDiscountRule, error) {
	rules, err := s.discountRepo.ListRules(ctx, nil, customerID)
	if err != nil {
		return nil, fmt.Errorf("list discount rules: %w", err)
	}
	return rules, nil
}

func (s *discountServiceImpl) RecordUsage(ctx context.Context, ruleID string) (*model.CustomerDiscountRule, error) {
	var rule *model.CustomerDiscountRule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rule, err = s.resolver.recordUsage(ctx, tx, ruleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !rule.IsActive {
		s.log.InfoContext(ctx, "discount rule reached usage cap", "rule_id", ruleID, "usage_count", rule.UsageCount)
	}
	return rule, nil
}
