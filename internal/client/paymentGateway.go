package client

import (
	"context"
	"sync"

	"restaurant-order-engine/internal/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeRequest struct {
	OrderNumber  string
	Method       string
	Amount       decimal.Decimal
	PaymentToken string
}

// PaymentGateway settles and refunds non-cash payments.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, transactionRef string, amount decimal.Decimal) error
}

// NewPaymentGateway picks Braintree when a merchant is configured.
func NewPaymentGateway(cfg *config.Braintree) PaymentGateway {
	if cfg != nil && cfg.MerchantID != "" {
		return NewBraintreeGateway(cfg)
	}
	return NewSimulatedGateway()
}

// SimulatedGateway accepts every charge immediately. It records what it was
// asked to do so callers can inspect it.
type SimulatedGateway struct {
	mu      sync.Mutex
	charges []ChargeRequest
	refunds map[string]decimal.Decimal
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{refunds: make(map[string]decimal.Decimal)}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	return "sim_" + uuid.NewString(), nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, transactionRef string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds[transactionRef] = g.refunds[transactionRef].Add(amount)
	return nil
}

func (g *SimulatedGateway) Charges() []ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ChargeRequest, len(g.charges))
	copy(out, g.charges)
	return out
}

func (g *SimulatedGateway) Refunded(transactionRef string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds[transactionRef]
}
