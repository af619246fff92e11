package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DiscountKind string

const (
	DiscountKindPercentage  DiscountKind = "percentage"
	DiscountKindFixedAmount DiscountKind = "fixed_amount"
)

func (k DiscountKind) Valid() bool {
	return k == DiscountKindPercentage || k == DiscountKindFixedAmount
}

// CustomerDiscountRule is a discount granted to a single customer.
type CustomerDiscountRule struct {
	ID                string              `gorm:"primaryKey;size:36" json:"id"`
	CustomerID        string              `gorm:"size:64;index;not null" json:"customer_id"`
	Name              string              `gorm:"size:128" json:"name"`
	Kind              DiscountKind        `gorm:"size:16;not null" json:"kind"`
	Value             decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"value"`
	MinOrderAmount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"min_order_amount"`
	MaxOrderAmount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount_amount"`
	MaxUsageCount     *int                `json:"max_usage_count,omitempty"`
	UsageCount        int                 `gorm:"not null;default:0" json:"usage_count"`
	IsActive          bool                `gorm:"not null" json:"is_active"`
	ValidFrom         *time.Time          `json:"valid_from,omitempty"`
	ValidUntil        *time.Time          `json:"valid_until,omitempty"`
	CreatedBy         string              `gorm:"size:64" json:"created_by"`
	UpdatedBy         string              `gorm:"size:64" json:"updated_by"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (r *CustomerDiscountRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// UsageExhausted reports whether the usage cap, if any, has been reached.
func (r *CustomerDiscountRule) UsageExhausted() bool {
	return r.MaxUsageCount != nil && r.UsageCount >= *r.MaxUsageCount
}

type UserGroup struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	Name       string          `gorm:"size:128;not null" json:"name"`
	IsActive   bool            `gorm:"not null" json:"is_active"`
	ValidFrom  *time.Time      `json:"valid_from,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Discounts  []GroupDiscount `gorm:"foreignKey:GroupID" json:"discounts,omitempty"`
	CreatedBy  string          `gorm:"size:64" json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (g *UserGroup) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

type GroupDiscount struct {
	ID                string              `gorm:"primaryKey;size:36" json:"id"`
	GroupID           string              `gorm:"size:36;index;not null" json:"group_id"`
	Name              string              `gorm:"size:128" json:"name"`
	Kind              DiscountKind        `gorm:"size:16;not null" json:"kind"`
	Value             decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"value"`
	MinOrderAmount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"min_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount_amount"`
	IsActive          bool                `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func (d *GroupDiscount) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// GroupMembership binds a customer to a group. Code is signed so it can be
// verified without a lookup.
type GroupMembership struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	GroupID    string     `gorm:"size:36;index;not null" json:"group_id"`
	CustomerID string     `gorm:"size:64;index;not null" json:"customer_id"`
	Code       string     `gorm:"size:160;uniqueIndex;not null" json:"code"`
	IsActive   bool       `gorm:"not null" json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedBy  string     `gorm:"size:64" json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (m *GroupMembership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Within reports whether at falls inside the optional [from, until] window.
func Within(at time.Time, from, until *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if until != nil && at.After(*until) {
		return false
	}
	return true
}
