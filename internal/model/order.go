package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusCompleted     PaymentStatus = "completed"
	PaymentStatusOverpaid      PaymentStatus = "overpaid"
	PaymentStatusRefunded      PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodMobile  PaymentMethod = "mobile"
	PaymentMethodVoucher PaymentMethod = "voucher"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobile, PaymentMethodVoucher:
		return true
	}
	return false
}

type PaymentRecordStatus string

const (
	PaymentRecordPending   PaymentRecordStatus = "pending"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
	PaymentRecordRefunded  PaymentRecordStatus = "refunded"
)

type Order struct {
	ID                    string          `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber           string          `gorm:"size:16;uniqueIndex;not null" json:"order_number"`
	CustomerID            *string         `gorm:"size:64;index" json:"customer_id,omitempty"`
	GuestName             string          `gorm:"size:128" json:"guest_name,omitempty"`
	GuestPhone            string          `gorm:"size:32" json:"guest_phone,omitempty"`
	Type                  OrderType       `gorm:"size:16;not null" json:"type"`
	TableNumber           *int            `json:"table_number,omitempty"`
	DeliveryAddress       string          `gorm:"size:512" json:"delivery_address,omitempty"`
	Subtotal              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax                   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	DeliveryFee           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	Discount              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	DiscountPercentage    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percentage"`
	Tip                   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tip"`
	Total                 decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	TotalPaid             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_paid"`
	RemainingAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"remaining_amount"`
	PointsRedeemed        int             `gorm:"not null;default:0" json:"points_redeemed"`
	DiscountRuleID        *string         `gorm:"size:36" json:"discount_rule_id,omitempty"`
	GroupDiscountID       *string         `gorm:"size:36" json:"group_discount_id,omitempty"`
	PromoCode             string          `gorm:"size:64" json:"promo_code,omitempty"`
	Status                OrderStatus     `gorm:"size:32;index;not null" json:"status"`
	PaymentStatus         PaymentStatus   `gorm:"size:32;index;not null" json:"payment_status"`
	IsFocusOrder          bool            `gorm:"not null;default:false" json:"is_focus_order"`
	FocusPriority         int             `gorm:"not null;default:0" json:"focus_priority"`
	FocusReason           string          `gorm:"size:256" json:"focus_reason,omitempty"`
	FocusedAt             *time.Time      `json:"focused_at,omitempty"`
	FocusedBy             string          `gorm:"size:64" json:"focused_by,omitempty"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time      `json:"actual_delivery_time,omitempty"`
	Notes                 string          `gorm:"size:1024" json:"notes,omitempty"`
	CreatedBy             string          `gorm:"size:64" json:"created_by"`
	UpdatedBy             string          `gorm:"size:64" json:"updated_by"`

	Items         []OrderItem          `json:"items"`
	Payments      []OrderPayment       `json:"payments"`
	StatusHistory []OrderStatusHistory `json:"status_history"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem snapshots the catalog at order time and is never updated.
type OrderItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderID       string          `gorm:"size:36;index;not null" json:"order_id"`
	ProductID     *string         `gorm:"size:36" json:"product_id,omitempty"`
	VariationID   *string         `gorm:"size:36" json:"variation_id,omitempty"`
	MenuID        *string         `gorm:"size:36" json:"menu_id,omitempty"`
	ProductName   string          `gorm:"size:128;not null" json:"product_name"`
	VariationName string          `gorm:"size:128" json:"variation_name,omitempty"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
	Instructions  string          `gorm:"size:512" json:"instructions,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderPayment struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	OrderID        string              `gorm:"size:36;index;not null" json:"order_id"`
	Method         PaymentMethod       `gorm:"size:16;not null" json:"method"`
	Amount         decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status         PaymentRecordStatus `gorm:"size:16;not null" json:"status"`
	TransactionRef string              `gorm:"size:128" json:"transaction_ref,omitempty"`
	PaymentToken   string              `gorm:"-" json:"-"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
	Refund         *OrderPaymentRefund `gorm:"foreignKey:PaymentID" json:"refund,omitempty"`
	CreatedBy      string              `gorm:"size:64" json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type OrderPaymentRefund struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	PaymentID  uint            `gorm:"uniqueIndex;not null" json:"payment_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reason     string          `gorm:"size:512" json:"reason"`
	CreatedBy  string          `gorm:"size:64" json:"created_by"`
	RefundedAt time.Time       `json:"refunded_at"`
}

// OrderStatusHistory is an append-only audit row.
type OrderStatusHistory struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    string      `gorm:"size:36;index;not null" json:"order_id"`
	FromStatus OrderStatus `gorm:"size:32;not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"size:32;not null" json:"to_status"`
	Note       string      `gorm:"size:512" json:"note"`
	ChangedBy  string      `gorm:"size:64" json:"changed_by"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OrderSequence is the per-day order number counter.
type OrderSequence struct {
	Day       string `gorm:"primaryKey;size:8"`
	LastValue int    `gorm:"not null"`
}
