package repository

import (
	"context"
	"time"

	"restaurant-order-engine/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, orderID string, lock bool) (*model.Order, error)
	NextSequence(ctx context.Context, tx *gorm.DB, day string) (int, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, order *model.Order) error
	AppendHistory(ctx context.Context, tx *gorm.DB, entry *model.OrderStatusHistory) error
	UpdateFocus(ctx context.Context, tx *gorm.DB, order *model.Order) error

	CreatePayment(ctx context.Context, tx *gorm.DB, payment *model.OrderPayment) error
	UpdatePayment(ctx context.Context, tx *gorm.DB, payment *model.OrderPayment) error
	CreateRefund(ctx context.Context, tx *gorm.DB, refund *model.OrderPaymentRefund) error
	DeleteRefund(ctx context.Context, tx *gorm.DB, refundID uint) error
	UpdatePaymentTotals(ctx context.Context, tx *gorm.DB, orderID string, totalPaid, remaining decimal.Decimal, status model.PaymentStatus, actor string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create inserts the order together with its items and first history row.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return conn(ctx, r.db, tx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID string, lock bool) (*model.Order, error) {
	var order model.Order
	err := forUpdate(conn(ctx, r.db, tx), lock).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments.Refund").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// NextSequence bumps the day's counter and returns the new value. The first
// order of a day inserts the row; concurrent first orders collapse onto the
// same row through the conflict clause.
func (r *orderRepoImpl) NextSequence(ctx context.Context, tx *gorm.DB, day string) (int, error) {
	q := conn(ctx, r.db, tx)

	err := q.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_value": gorm.Expr("order_sequences.last_value + ?", 1),
		}),
	}).Create(&model.OrderSequence{Day: day, LastValue: 1}).Error
	if err != nil {
		return 0, err
	}

	var seq model.OrderSequence
	if err := q.Where("day = ?", day).First(&seq).Error; err != nil {
		return 0, err
	}

	return seq.LastValue, nil
}

func (r *orderRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	result := conn(ctx, r.db, tx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":                  order.Status,
			"estimated_delivery_time": order.EstimatedDeliveryTime,
			"actual_delivery_time":    order.ActualDeliveryTime,
			"updated_by":              order.UpdatedBy,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) AppendHistory(ctx context.Context, tx *gorm.DB, entry *model.OrderStatusHistory) error {
	return conn(ctx, r.db, tx).Create(entry).Error
}

func (r *orderRepoImpl) UpdateFocus(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	result := conn(ctx, r.db, tx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"is_focus_order": order.IsFocusOrder,
			"focus_priority": order.FocusPriority,
			"focus_reason":   order.FocusReason,
			"focused_at":     order.FocusedAt,
			"focused_by":     order.FocusedBy,
			"updated_by":     order.UpdatedBy,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) CreatePayment(ctx context.Context, tx *gorm.DB, payment *model.OrderPayment) error {
	return conn(ctx, r.db, tx).Create(payment).Error
}

func (r *orderRepoImpl) UpdatePayment(ctx context.Context, tx *gorm.DB, payment *model.OrderPayment) error {
	return conn(ctx, r.db, tx).
		Model(&model.OrderPayment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":          payment.Status,
			"transaction_ref": payment.TransactionRef,
			"paid_at":         payment.PaidAt,
			"updated_at":      time.Now(),
		}).Error
}

func (r *orderRepoImpl) CreateRefund(ctx context.Context, tx *gorm.DB, refund *model.OrderPaymentRefund) error {
	return conn(ctx, r.db, tx).Create(refund).Error
}

func (r *orderRepoImpl) DeleteRefund(ctx context.Context, tx *gorm.DB, refundID uint) error {
	result := conn(ctx, r.db, tx).Delete(&model.OrderPaymentRefund{}, refundID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *orderRepoImpl) UpdatePaymentTotals(ctx context.Context, tx *gorm.DB, orderID string, totalPaid, remaining decimal.Decimal, status model.PaymentStatus, actor string) error {
	return conn(ctx, r.db, tx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"total_paid":       totalPaid,
			"remaining_amount": remaining,
			"payment_status":   status,
			"updated_by":       actor,
			"updated_at":       time.Now(),
		}).Error
}
