package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PointEarningRule struct {
	ID             string              `gorm:"primaryKey;size:36" json:"id"`
	Name           string              `gorm:"size:128;not null" json:"name"`
	MinOrderAmount decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"min_order_amount"`
	MaxOrderAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_order_amount"` // unbounded when null
	Points         int                 `gorm:"not null" json:"points"`
	Priority       int                 `gorm:"not null;default:0" json:"priority"` // lower wins
	IsActive       bool                `gorm:"not null" json:"is_active"`
	CreatedBy      string              `gorm:"size:64" json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (r *PointEarningRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Contains reports whether amount falls in [min, max], max unbounded when null.
func (r *PointEarningRule) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinOrderAmount) {
		return false
	}
	return !r.MaxOrderAmount.Valid || amount.LessThanOrEqual(r.MaxOrderAmount.Decimal)
}

// FidelityPointBalance is the single mutable points aggregate of a customer.
type FidelityPointBalance struct {
	CustomerID    string    `gorm:"primaryKey;size:64" json:"customer_id"`
	CurrentPoints int       `gorm:"not null;default:0" json:"current_points"`
	TotalEarned   int       `gorm:"not null;default:0" json:"total_earned"`
	TotalRedeemed int       `gorm:"not null;default:0" json:"total_redeemed"`
	LastUpdated   time.Time `json:"last_updated"`
}

type PointsTransactionKind string

const (
	PointsEarned          PointsTransactionKind = "earned"
	PointsRedeemed        PointsTransactionKind = "redeemed"
	PointsAdminAdjustment PointsTransactionKind = "admin_adjustment"
	PointsExpired         PointsTransactionKind = "expired"
	PointsRefunded        PointsTransactionKind = "refunded"
)

// FidelityPointsTransaction is an immutable ledger row.
type FidelityPointsTransaction struct {
	ID          uint                  `gorm:"primaryKey" json:"id"`
	CustomerID  string                `gorm:"size:64;index;not null" json:"customer_id"`
	OrderID     *string               `gorm:"size:36;index" json:"order_id,omitempty"`
	Kind        PointsTransactionKind `gorm:"size:32;index;not null" json:"kind"`
	Points      int                   `gorm:"not null" json:"points"`
	OrderTotal  decimal.NullDecimal   `gorm:"type:decimal(12,2)" json:"order_total"`
	Description string                `gorm:"size:512" json:"description"`
	CreatedBy   string                `gorm:"size:64" json:"created_by"`
	CreatedAt   time.Time             `gorm:"index" json:"created_at"`
}
