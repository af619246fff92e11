package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FidelityRepository interface {
	FindBalance(ctx context.Context, tx *gorm.DB, customerID string, lock bool) (*model.FidelityPointBalance, error)
	EnsureBalance(ctx context.Context, tx *gorm.DB, customerID string) error
	AddEarned(ctx context.Context, tx *gorm.DB, customerID string, points int) error
	DeductRedeemed(ctx context.Context, tx *gorm.DB, customerID string, points int) (bool, error)
	ApplyAdjustment(ctx context.Context, tx *gorm.DB, customerID string, delta int) error
	RestoreRedeemed(ctx context.Context, tx *gorm.DB, customerID string, points int) error

	CreateTransaction(ctx context.Context, tx *gorm.DB, txn *model.FidelityPointsTransaction) error
	ListTransactions(ctx context.Context, customerID string, offset, limit int) ([]*model.FidelityPointsTransaction, int64, error)
	HasOrderTransaction(ctx context.Context, tx *gorm.DB, customerID, orderID string, kind model.PointsTransactionKind) (bool, error)

	SumPoints(ctx context.Context, kind model.PointsTransactionKind, sign int) (int64, error)
	CountCustomersWithPoints(ctx context.Context) (int64, error)
	SumCurrentPoints(ctx context.Context) (int64, error)
	CountTransactionsSince(ctx context.Context, since time.Time) (int64, error)
}

type fidelityRepoImpl struct {
	db *gorm.DB
}

func NewFidelityRepository(db *gorm.DB) FidelityRepository {
	return &fidelityRepoImpl{
		db: db,
	}
}

func (r *fidelityRepoImpl) FindBalance(ctx context.Context, tx *gorm.DB, customerID string, lock bool) (*model.FidelityPointBalance, error) {
	var balance model.FidelityPointBalance
	err := forUpdate(conn(ctx, r.db, tx), lock).
		Where("customer_id = ?", customerID).
		First(&balance).Error
	if err != nil {
		return nil, err
	}

	return &balance, nil
}

// EnsureBalance creates an empty balance row for the customer unless one
// already exists.
func (r *fidelityRepoImpl) EnsureBalance(ctx context.Context, tx *gorm.DB, customerID string) error {
	return conn(ctx, r.db, tx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.FidelityPointBalance{CustomerID: customerID, LastUpdated: time.Now()}).Error
}

func (r *fidelityRepoImpl) AddEarned(ctx context.Context, tx *gorm.DB, customerID string, points int) error {
	return r.updateBalance(ctx, tx, customerID, map[string]interface{}{
		"current_points": gorm.Expr("current_points + ?", points),
		"total_earned":   gorm.Expr("total_earned + ?", points),
		"last_updated":   time.Now(),
	})
}

// DeductRedeemed reports false when the balance could not cover points.
func (r *fidelityRepoImpl) DeductRedeemed(ctx context.Context, tx *gorm.DB, customerID string, points int) (bool, error) {
	result := conn(ctx, r.db, tx).
		Model(&model.FidelityPointBalance{}).
		Where("customer_id = ? AND current_points >= ?", customerID, points).
		Updates(map[string]interface{}{
			"current_points": gorm.Expr("current_points - ?", points),
			"total_redeemed": gorm.Expr("total_redeemed + ?", points),
			"last_updated":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// ApplyAdjustment floors current points at zero. Positive deltas count as
// earned, negative deltas as redeemed.
func (r *fidelityRepoImpl) ApplyAdjustment(ctx context.Context, tx *gorm.DB, customerID string, delta int) error {
	earned, redeemed := 0, 0
	if delta > 0 {
		earned = delta
	} else {
		redeemed = -delta
	}

	return r.updateBalance(ctx, tx, customerID, map[string]interface{}{
		"current_points": gorm.Expr("CASE WHEN current_points + ? < 0 THEN 0 ELSE current_points + ? END", delta, delta),
		"total_earned":   gorm.Expr("total_earned + ?", earned),
		"total_redeemed": gorm.Expr("total_redeemed + ?", redeemed),
		"last_updated":   time.Now(),
	})
}

func (r *fidelityRepoImpl) RestoreRedeemed(ctx context.Context, tx *gorm.DB, customerID string, points int) error {
	return r.updateBalance(ctx, tx, customerID, map[string]interface{}{
		"current_points": gorm.Expr("current_points + ?", points),
		"total_redeemed": gorm.Expr("CASE WHEN total_redeemed - ? < 0 THEN 0 ELSE total_redeemed - ? END", points, points),
		"last_updated":   time.Now(),
	})
}

func (r *fidelityRepoImpl) updateBalance(ctx context.Context, tx *gorm.DB, customerID string, values map[string]interface{}) error {
	result := conn(ctx, r.db, tx).
		Model(&model.FidelityPointBalance{}).
		Where("customer_id = ?", customerID).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *fidelityRepoImpl) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *model.FidelityPointsTransaction) error {
	return conn(ctx, r.db, tx).Create(txn).Error
}

func (r *fidelityRepoImpl) ListTransactions(ctx context.Context, customerID string, offset, limit int) ([]*model.FidelityPointsTransaction, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&model.FidelityPointsTransaction{}).Where("customer_id = ?", customerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []*model.FidelityPointsTransaction
	err := q.Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

func (r *fidelityRepoImpl) HasOrderTransaction(ctx context.Context, tx *gorm.DB, customerID, orderID string, kind model.PointsTransactionKind) (bool, error) {
	var count int64
	err := conn(ctx, r.db, tx).
		Model(&model.FidelityPointsTransaction{}).
		Where("customer_id = ? AND order_id = ? AND kind = ?", customerID, orderID, kind).
		Count(&count).Error

	return count > 0, err
}

// SumPoints sums the signed points of kind. sign > 0 keeps positive rows
// only, sign < 0 negative rows only, 0 keeps all.
func (r *fidelityRepoImpl) SumPoints(ctx context.Context, kind model.PointsTransactionKind, sign int) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.FidelityPointsTransaction{}).
		Where("kind = ?", kind)
	switch {
	case sign > 0:
		q = q.Where("points > 0")
	case sign < 0:
		q = q.Where("points < 0")
	}

	var sum int64
	err := q.Select("COALESCE(SUM(points), 0)").Scan(&sum).Error

	return sum, err
}

func (r *fidelityRepoImpl) CountCustomersWithPoints(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FidelityPointBalance{}).
		Where("current_points > 0").
		Count(&count).Error

	return count, err
}

func (r *fidelityRepoImpl) SumCurrentPoints(ctx context.Context) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.FidelityPointBalance{}).
		Select("COALESCE(SUM(current_points), 0)").
		Scan(&sum).Error

	return sum, err
}

func (r *fidelityRepoImpl) CountTransactionsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FidelityPointsTransaction{}).
		Where("created_at >= ?", since).
		Count(&count).Error

	return count, err
}
