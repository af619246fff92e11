package service

import (
	"errors"
	"fmt"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/config"
	"restaurant-order-engine/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// PointsPerCurrencyUnit is how many fidelity points buy one unit of currency.
	PointsPerCurrencyUnit = 100

	// BasketRetention is how long an untouched basket stays readable.
	BasketRetention = 7 * 24 * time.Hour

	// ActorSystem stamps changes made without a user behind them.
	ActorSystem = "System"
)

// basketTaxRate applies to basket previews only. Orders use Pricing.OrderTaxRate.
var basketTaxRate = decimal.RequireFromString("0.08")

var hundred = decimal.NewFromInt(100)

// Pricing holds the order assembly constants.
type Pricing struct {
	OrderTaxRate             decimal.Decimal
	DeliveryFee              decimal.Decimal
	ThresholdDiscountPercent decimal.Decimal
	EstimatedDelivery        time.Duration
}

func DefaultPricing() Pricing {
	return Pricing{
		OrderTaxRate:             decimal.RequireFromString("0.18"),
		DeliveryFee:              decimal.RequireFromString("5.00"),
		ThresholdDiscountPercent: decimal.NewFromInt(10),
		EstimatedDelivery:        45 * time.Minute,
	}
}

func NewPricing(cfg config.Pricing) (Pricing, error) {
	taxRate, err := decimal.NewFromString(cfg.OrderTaxRate)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse order tax rate: %w", err)
	}
	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse delivery fee: %w", err)
	}
	threshold, err := decimal.NewFromString(cfg.ThresholdDiscountPercent)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse threshold discount percent: %w", err)
	}
	if taxRate.IsNegative() || deliveryFee.IsNegative() || threshold.IsNegative() || threshold.GreaterThan(hundred) {
		return Pricing{}, fmt.Errorf("pricing values out of range")
	}

	return Pricing{
		OrderTaxRate:             taxRate,
		DeliveryFee:              deliveryFee,
		ThresholdDiscountPercent: threshold,
		EstimatedDelivery:        time.Duration(cfg.EstimatedDeliveryMinutes) * time.Minute,
	}, nil
}

// RoundMoney rounds to cents, half to even.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// PointsToCurrency converts points at the fixed rate.
func PointsToCurrency(points int) decimal.Decimal {
	return RoundMoney(decimal.NewFromInt(int64(points)).Div(decimal.NewFromInt(PointsPerCurrencyUnit)))
}

// DerivePaymentStatus maps what is still owed and what was paid to the
// order payment status.
func DerivePaymentStatus(remaining, totalPaid decimal.Decimal) model.PaymentStatus {
	switch {
	case remaining.IsNegative():
		return model.PaymentStatusOverpaid
	case remaining.IsZero():
		return model.PaymentStatusCompleted
	case totalPaid.IsPositive():
		return model.PaymentStatusPartiallyPaid
	default:
		return model.PaymentStatusPending
	}
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// clampDiscount keeps a discount within [0, subtotal].
func clampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	return minDecimal(discount, subtotal)
}

// notFound turns a missing row into a NotFound failure and wraps anything
// else as a store error.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(format, args...)
	}
	return apperror.Infrastructure(fmt.Sprintf(format, args...), err)
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return ActorSystem
	}
	return actor
}
