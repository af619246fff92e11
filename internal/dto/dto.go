package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Response is the envelope every endpoint renders.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SideItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type AddBasketItemRequest struct {
	ProductID    string            `json:"product_id"`
	VariationID  *string           `json:"variation_id,omitempty"`
	Quantity     int               `json:"quantity"`
	Instructions string            `json:"instructions,omitempty"`
	SideItems    []SideItemRequest `json:"side_items,omitempty"`
}

type UpdateBasketItemRequest struct {
	Quantity     int     `json:"quantity"`
	Instructions *string `json:"instructions,omitempty"`
}

type SetDeliveryRequest struct {
	Delivery bool `json:"delivery"`
}

type MergeBasketRequest struct {
	SessionID string `json:"session_id"`
}

// CheckoutRequest carries the order fields a basket cannot know.
type CheckoutRequest struct {
	GuestName            string           `json:"guest_name,omitempty"`
	GuestPhone           string           `json:"guest_phone,omitempty"`
	Type                 string           `json:"type"`
	TableNumber          *int             `json:"table_number,omitempty"`
	DeliveryAddress      string           `json:"delivery_address,omitempty"`
	Payments             []PaymentRequest `json:"payments,omitempty"`
	Tip                  decimal.Decimal  `json:"tip"`
	Notes                string           `json:"notes,omitempty"`
	HasUserLimitDiscount bool             `json:"has_user_limit_discount"`
	UserLimitAmount      decimal.Decimal  `json:"user_limit_amount"`
	ApplyBestDiscount    bool             `json:"apply_best_discount"`
	RedeemPoints         int              `json:"redeem_points"`
}

type OrderLineRequest struct {
	ProductID    *string `json:"product_id,omitempty"`
	VariationID  *string `json:"variation_id,omitempty"`
	MenuID       *string `json:"menu_id,omitempty"`
	Quantity     int     `json:"quantity"`
	Instructions string  `json:"instructions,omitempty"`
}

type PaymentRequest struct {
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentToken string          `json:"payment_token,omitempty"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

type CreateOrderRequest struct {
	CustomerID           *string            `json:"customer_id,omitempty"`
	GuestName            string             `json:"guest_name,omitempty"`
	GuestPhone           string             `json:"guest_phone,omitempty"`
	Type                 string             `json:"type"`
	TableNumber          *int               `json:"table_number,omitempty"`
	DeliveryAddress      string             `json:"delivery_address,omitempty"`
	Items                []OrderLineRequest `json:"items"`
	Payments             []PaymentRequest   `json:"payments,omitempty"`
	Tip                  decimal.Decimal    `json:"tip"`
	Notes                string             `json:"notes,omitempty"`
	PromoCode            string             `json:"promo_code,omitempty"`
	HasUserLimitDiscount bool               `json:"has_user_limit_discount"`
	UserLimitAmount      decimal.Decimal    `json:"user_limit_amount"`
	ApplyBestDiscount    bool               `json:"apply_best_discount"`
	RedeemPoints         int                `json:"redeem_points"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type SetFocusRequest struct {
	IsFocus  bool   `json:"is_focus"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

type CustomerDiscountRuleRequest struct {
	CustomerID        string              `json:"customer_id"`
	Name              string              `json:"name"`
	Kind              string              `json:"kind"`
	Value             decimal.Decimal     `json:"value"`
	MinOrderAmount    decimal.NullDecimal `json:"min_order_amount"`
	MaxOrderAmount    decimal.NullDecimal `json:"max_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	MaxUsageCount     *int                `json:"max_usage_count,omitempty"`
	ValidFrom         *time.Time          `json:"valid_from,omitempty"`
	ValidUntil        *time.Time          `json:"valid_until,omitempty"`
}

type CreateGroupRequest struct {
	Name       string     `json:"name"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type GroupDiscountRequest struct {
	Name              string              `json:"name"`
	Kind              string              `json:"kind"`
	Value             decimal.Decimal     `json:"value"`
	MinOrderAmount    decimal.NullDecimal `json:"min_order_amount"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
}

type IssueMembershipRequest struct {
	CustomerID string     `json:"customer_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type VerifyMembershipRequest struct {
	Code string `json:"code"`
}

type PointRuleRequest struct {
	Name           string              `json:"name"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxOrderAmount decimal.NullDecimal `json:"max_order_amount"`
	Points         int                 `json:"points"`
	Priority       int                 `json:"priority"`
	IsActive       *bool               `json:"is_active,omitempty"`
}

type AwardPointsRequest struct {
	OrderID    *string         `json:"order_id,omitempty"`
	Points     int             `json:"points"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

type RedeemPointsRequest struct {
	OrderID *string `json:"order_id,omitempty"`
	Points  int     `json:"points"`
}

type AdjustPointsRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type RedeemPointsResponse struct {
	Points   int             `json:"points"`
	Discount decimal.Decimal `json:"discount"`
}

type FidelityAnalytics struct {
	TotalPointsIssued        int64           `json:"total_points_issued"`
	TotalPointsRedeemed      int64           `json:"total_points_redeemed"`
	ActiveCustomers          int64           `json:"active_customers"`
	OutstandingPoints        int64           `json:"outstanding_points"`
	AveragePointsPerCustomer decimal.Decimal `json:"average_points_per_customer"`
	RedeemedCurrencyValue    decimal.Decimal `json:"redeemed_currency_value"`
	TransactionsLast30Days   int64           `json:"transactions_last_30_days"`
}

type Page struct {
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int64       `json:"total"`
	Items   interface{} `json:"items"`
}
