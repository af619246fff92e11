package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID           string          `gorm:"primaryKey;size:36"`
	Name         string          `gorm:"size:128;not null"`
	Translations Translations    `gorm:"serializer:json"`
	BasePrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsActive     bool            `gorm:"not null"`
	IsAvailable  bool            `gorm:"not null"`
	Variations   []ProductVariation
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Orderable reports whether the product can be put in a basket or order.
func (p *Product) Orderable() bool {
	return p.IsActive && p.IsAvailable
}

type ProductVariation struct {
	ID            string          `gorm:"primaryKey;size:36"`
	ProductID     string          `gorm:"size:36;index;not null"`
	Name          string          `gorm:"size:128;not null"`
	PriceModifier decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsActive      bool            `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *ProductVariation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Menu is a fixed-price set that can be ordered as a single line.
type Menu struct {
	ID        string          `gorm:"primaryKey;size:36"`
	Name      string          `gorm:"size:128;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsActive  bool            `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (m *Menu) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
