package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/lock"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type FidelityService interface {
	AwardPoints(ctx context.Context, customerID string, orderID *string, points int, orderTotal decimal.Decimal, actor string) (*model.FidelityPointBalance, error)
	RedeemPoints(ctx context.Context, customerID string, orderID *string, points int, actor string) (decimal.Decimal, error)
	AdjustPoints(ctx context.Context, customerID string, delta int, reason, actor string) (*model.FidelityPointBalance, error)
	GetSystemAnalytics(ctx context.Context) (*dto.FidelityAnalytics, error)

	GetBalance(ctx context.Context, customerID string) (*model.FidelityPointBalance, error)
	ListTransactions(ctx context.Context, customerID string, page, perPage int) (*dto.Page, error)
	EarnForOrder(ctx context.Context, customerID, orderID string, orderTotal decimal.Decimal) (int, error)
	RestoreRedeemedPoints(ctx context.Context, customerID, orderID string, points int, actor string) error
}

// pointsLedger holds the balance mutations that must run inside a caller's
// transaction. The balance row is locked before it is read.
type pointsLedger struct {
	fidelityRepo repository.FidelityRepository
}

func (l pointsLedger) award(ctx context.Context, tx *gorm.DB, customerID string, orderID *string, points int, orderTotal decimal.NullDecimal, description, actor string) error {
	if strings.TrimSpace(customerID) == "" {
		return apperror.Validation("customer id is required")
	}
	if points <= 0 {
		return apperror.Validation("points to award must be greater than zero")
	}

	if err := l.fidelityRepo.EnsureBalance(ctx, tx, customerID); err != nil {
		return fmt.Errorf("create fidelity balance: %w", err)
	}
	if err := l.fidelityRepo.AddEarned(ctx, tx, customerID, points); err != nil {
		return fmt.Errorf("add earned points: %w", err)
	}

	return l.append(ctx, tx, &model.FidelityPointsTransaction{
		CustomerID:  customerID,
		OrderID:     orderID,
		Kind:        model.PointsEarned,
		Points:      points,
		OrderTotal:  orderTotal,
		Description: description,
		CreatedBy:   actorOrSystem(actor),
	})
}

func (l pointsLedger) redeem(ctx context.Context, tx *gorm.DB, customerID string, orderID *string, points int, actor string) (decimal.Decimal, error) {
	if strings.TrimSpace(customerID) == "" {
		return decimal.Zero, apperror.Validation("customer id is required")
	}
	if points <= 0 {
		return decimal.Zero, apperror.Validation("points to redeem must be greater than zero")
	}

	available := 0
	balance, err := l.fidelityRepo.FindBalance(ctx, tx, customerID, true)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return decimal.Zero, fmt.Errorf("find fidelity balance: %w", err)
	default:
		available = balance.CurrentPoints
	}
	if available < points {
		return decimal.Zero, insufficientPoints(available, points)
	}

	ok, err := l.fidelityRepo.DeductRedeemed(ctx, tx, customerID, points)
	if err != nil {
		return decimal.Zero, fmt.Errorf("deduct redeemed points: %w", err)
	}
	if !ok {
		return decimal.Zero, insufficientPoints(available, points)
	}

	err = l.append(ctx, tx, &model.FidelityPointsTransaction{
		CustomerID:  customerID,
		OrderID:     orderID,
		Kind:        model.PointsRedeemed,
		Points:      -points,
		Description: fmt.Sprintf("Redeemed %d points", points),
		CreatedBy:   actorOrSystem(actor),
	})
	if err != nil {
		return decimal.Zero, err
	}

	return PointsToCurrency(points), nil
}

func insufficientPoints(available, requested int) error {
	return apperror.Conflict("insufficient fidelity points: available %d, requested %d", available, requested)
}

func (l pointsLedger) append(ctx context.Context, tx *gorm.DB, txn *model.FidelityPointsTransaction) error {
	if err := l.fidelityRepo.CreateTransaction(ctx, tx, txn); err != nil {
		return fmt.Errorf("store points transaction: %w", err)
	}
	return nil
}

type fidelityServiceImpl struct {
	db            *gorm.DB
	log           *slog.Logger
	locks         *lock.KeyedMutex
	ledger        pointsLedger
	fidelityRepo  repository.FidelityRepository
	pointRuleRepo repository.PointRuleRepository
	now           func() time.Time
}

func NewFidelityService(
	db *gorm.DB,
	log *slog.Logger,
	fidelityRepo repository.FidelityRepository,
	pointRuleRepo repository.PointRuleRepository,
) FidelityService {
	return &fidelityServiceImpl{
		db:            db,
		log:           log,
		locks:         lock.NewKeyedMutex(),
		ledger:        pointsLedger{fidelityRepo: fidelityRepo},
		fidelityRepo:  fidelityRepo,
		pointRuleRepo: pointRuleRepo,
		now:           time.Now,
	}
}

func fidelityKey(customerID string) string {
	return "fidelity:" + customerID
}

func (s *fidelityServiceImpl) AwardPoints(ctx context.Context, customerID string, orderID *string, points int, orderTotal decimal.Decimal, actor string) (*model.FidelityPointBalance, error) {
	unlock := s.locks.Lock(fidelityKey(customerID))
	defer unlock()

	total := decimal.NullDecimal{Decimal: orderTotal, Valid: !orderTotal.IsZero()}

	var balance *model.FidelityPointBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		description := fmt.Sprintf("Earned %d points", points)
		if err := s.ledger.award(ctx, tx, customerID, orderID, points, total, description, actor); err != nil {
			return err
		}

		var err error
		balance, err = s.fidelityRepo.FindBalance(ctx, tx, customerID, false)
		if err != nil {
			return fmt.Errorf("reload fidelity balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "fidelity points awarded", "customer_id", customerID, "points", points)
	return balance, nil
}

func (s *fidelityServiceImpl) RedeemPoints(ctx context.Context, customerID string, orderID *string, points int, actor string) (decimal.Decimal, error) {
	unlock := s.locks.Lock(fidelityKey(customerID))
	defer unlock()

	var discount decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		discount, err = s.ledger.redeem(ctx, tx, customerID, orderID, points, actor)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.log.InfoContext(ctx, "fidelity points redeemed", "customer_id", customerID, "points", points, "discount", discount.StringFixed(2))
	return discount, nil
}

func (s *fidelityServiceImpl) AdjustPoints(ctx context.Context, customerID string, delta int, reason, actor string) (*model.FidelityPointBalance, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperror.Validation("customer id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validation("adjustment reason is required")
	}
	if delta == 0 {
		return nil, apperror.Validation("adjustment delta must not be zero")
	}

	unlock := s.locks.Lock(fidelityKey(customerID))
	defer unlock()

	var balance *model.FidelityPointBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.fidelityRepo.EnsureBalance(ctx, tx, customerID); err != nil {
			return fmt.Errorf("load fidelity balance: %w", err)
		}

		if err := s.fidelityRepo.ApplyAdjustment(ctx, tx, customerID, delta); err != nil {
			return fmt.Errorf("apply points adjustment: %w", err)
		}

		err := s.ledger.append(ctx, tx, &model.FidelityPointsTransaction{
			CustomerID:  customerID,
			Kind:        model.PointsAdminAdjustment,
			Points:      delta,
			Description: strings.TrimSpace(reason),
			CreatedBy:   actorOrSystem(actor),
		})
		if err != nil {
			return err
		}

		balance, err = s.fidelityRepo.FindBalance(ctx, tx, customerID, false)
		if err != nil {
			return fmt.Errorf("reload fidelity balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "fidelity points adjusted", "customer_id", customerID, "delta", delta, "actor", actorOrSystem(actor))
	return balance, nil
}

func (s *fidelityServiceImpl) GetSystemAnalytics(ctx context.Context) (*dto.FidelityAnalytics, error) {
	var (
		earned, positiveAdjust, redeemed, negativeAdjust int64
		activeCustomers, outstanding, recent             int64
	)
	since := s.now().AddDate(0, 0, -30)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		earned, err = s.fidelityRepo.SumPoints(gctx, model.PointsEarned, 0)
		return err
	})
	g.Go(func() (err error) {
		positiveAdjust, err = s.fidelityRepo.SumPoints(gctx, model.PointsAdminAdjustment, 1)
		return err
	})
	g.Go(func() (err error) {
		redeemed, err = s.fidelityRepo.SumPoints(gctx, model.PointsRedeemed, 0)
		return err
	})
	g.Go(func() (err error) {
		negativeAdjust, err = s.fidelityRepo.SumPoints(gctx, model.PointsAdminAdjustment, -1)
		return err
	})
	g.Go(func() (err error) {
		activeCustomers, err = s.fidelityRepo.CountCustomersWithPoints(gctx)
		return err
	})
	g.Go(func() (err error) {
		outstanding, err = s.fidelityRepo.SumCurrentPoints(gctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.fidelityRepo.CountTransactionsSince(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate fidelity analytics: %w", err)
	}

	totalRedeemed := -(redeemed + negativeAdjust)
	average := decimal.Zero
	if activeCustomers > 0 {
		average = RoundMoney(decimal.NewFromInt(outstanding).Div(decimal.NewFromInt(activeCustomers)))
	}

	return &dto.FidelityAnalytics{
		TotalPointsIssued:        earned + positiveAdjust,
		TotalPointsRedeemed:      totalRedeemed,
		ActiveCustomers:          activeCustomers,
		OutstandingPoints:        outstanding,
		AveragePointsPerCustomer: average,
		RedeemedCurrencyValue:    RoundMoney(decimal.NewFromInt(totalRedeemed).Div(decimal.NewFromInt(PointsPerCurrencyUnit))),
		TransactionsLast30Days:   recent,
	}, nil
}

// GetBalance returns an empty balance for customers that never earned.
func (s *fidelityServiceImpl) GetBalance(ctx context.Context, customerID string) (*model.FidelityPointBalance, error) {
	balance, err := s.fidelityRepo.FindBalance(ctx, nil, customerID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.FidelityPointBalance{CustomerID: customerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find fidelity balance: %w", err)
	}
	return balance, nil
}

func (s *fidelityServiceImpl) ListTransactions(ctx context.Context, customerID string, page, perPage int) (*dto.Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	txns, total, err := s.fidelityRepo.ListTransactions(ctx, customerID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("list points transactions: %w", err)
	}

	return &dto.Page{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Items:   txns,
	}, nil
}

// EarnForOrder awards the points of the rule matching orderTotal. Repeated
// calls for the same order award nothing.
func (s *fidelityServiceImpl) EarnForOrder(ctx context.Context, customerID, orderID string, orderTotal decimal.Decimal) (int, error) {
	unlock := s.locks.Lock(fidelityKey(customerID))
	defer unlock()

	awarded := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.fidelityRepo.HasOrderTransaction(ctx, tx, customerID, orderID, model.PointsEarned)
		if err != nil {
			return fmt.Errorf("check earned points: %w", err)
		}
		if exists {
			return nil
		}

		rules, err := s.pointRuleRepo.ListActive(ctx, tx)
		if err != nil {
			return fmt.Errorf("list active point rules: %w", err)
		}
		rule := pickPointRule(rules, orderTotal)
		if rule == nil {
			return nil
		}

		total := decimal.NullDecimal{Decimal: orderTotal, Valid: true}
		description := fmt.Sprintf("Earned %d points with rule %q", rule.Points, rule.Name)
		if err := s.ledger.award(ctx, tx, customerID, &orderID, rule.Points, total, description, ActorSystem); err != nil {
			return err
		}
		awarded = rule.Points
		return nil
	})
	if err != nil {
		return 0, err
	}

	if awarded > 0 {
		s.log.InfoContext(ctx, "order points earned", "customer_id", customerID, "order_id", orderID, "points", awarded)
	}
	return awarded, nil
}

// RestoreRedeemedPoints gives back points redeemed on an order. It is a
// no-op when the order was already restored.
func (s *fidelityServiceImpl) RestoreRedeemedPoints(ctx context.Context, customerID, orderID string, points int, actor string) error {
	if points <= 0 {
		return apperror.Validation("points to restore must be greater than zero")
	}

	unlock := s.locks.Lock(fidelityKey(customerID))
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.fidelityRepo.HasOrderTransaction(ctx, tx, customerID, orderID, model.PointsRefunded)
		if err != nil {
			return fmt.Errorf("check restored points: %w", err)
		}
		if exists {
			return nil
		}

		if _, err := s.fidelityRepo.FindBalance(ctx, tx, customerID, true); err != nil {
			return notFound(err, "fidelity balance for customer %s not found", customerID)
		}
		if err := s.fidelityRepo.RestoreRedeemed(ctx, tx, customerID, points); err != nil {
			return fmt.Errorf("restore redeemed points: %w", err)
		}

		return s.ledger.append(ctx, tx, &model.FidelityPointsTransaction{
			CustomerID:  customerID,
			OrderID:     &orderID,
			Kind:        model.PointsRefunded,
			Points:      points,
			Description: fmt.Sprintf("Restored %d points from cancelled order", points),
			CreatedBy:   actorOrSystem(actor),
		})
	})
}
