package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Basket belongs either to a registered user or to an anonymous session,
// never both. Money fields are derived from the items on every mutation.
type Basket struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	UserID      *string         `gorm:"size:64;index" json:"user_id,omitempty"`
	SessionID   *string         `gorm:"size:64;index" json:"session_id,omitempty"`
	Items       []BasketItem    `json:"items"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	DeliveryFee decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"delivery_fee"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	PromoCode   string          `gorm:"size:64" json:"promo_code,omitempty"`
	ExpiresAt   time.Time       `gorm:"index" json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (b *Basket) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Expired reports whether the retention window has passed at now.
func (b *Basket) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && !now.Before(b.ExpiresAt)
}

// FindLine returns the line for the product and variation pair.
func (b *Basket) FindLine(productID string, variationID *string) *BasketItem {
	for i := range b.Items {
		if b.Items[i].ProductID == productID && sameRef(b.Items[i].VariationID, variationID) {
			return &b.Items[i]
		}
	}
	return nil
}

type BasketItem struct {
	ID           uint                 `gorm:"primaryKey" json:"id"`
	BasketID     string               `gorm:"size:36;index;not null" json:"basket_id"`
	ProductID    string               `gorm:"size:36;index;not null" json:"product_id"`
	VariationID  *string              `gorm:"size:36" json:"variation_id,omitempty"`
	Quantity     int                  `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineTotal    decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"line_total"`
	Instructions string               `gorm:"size:512" json:"instructions,omitempty"`
	SideItems    []BasketItemSideItem `json:"side_items,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type BasketItemSideItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	BasketItemID uint            `gorm:"index;not null" json:"basket_item_id"`
	ProductID    string          `gorm:"size:36;not null" json:"product_id"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
