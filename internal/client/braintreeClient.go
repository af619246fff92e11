package client

import (
	"context"
	"fmt"

	"restaurant-order-engine/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type braintreeGateway struct {
	gateway *braintree.Braintree
}

// NewBraintreeGateway initializes the Braintree SDK gateway
func NewBraintreeGateway(cfg *config.Braintree) PaymentGateway {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeGateway{
		gateway: gateway,
	}
}

func (g *braintreeGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if req.PaymentToken == "" {
		return "", fmt.Errorf("payment token is required for %s payments", req.Method)
	}

	tx, err := g.gateway.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             toBraintreeDecimal(req.Amount),
		PaymentMethodToken: req.PaymentToken,
		OrderId:            req.OrderNumber,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true, // Captures the funds immediately
		},
	})
	if err != nil {
		return "", fmt.Errorf("transaction creation failed: %w", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined {
		return "", fmt.Errorf("transaction declined by processor: %s", tx.ProcessorResponseText)
	}

	return tx.Id, nil
}

func (g *braintreeGateway) Refund(ctx context.Context, transactionRef string, amount decimal.Decimal) error {
	_, err := g.gateway.Transaction().Refund(ctx, transactionRef, toBraintreeDecimal(amount))
	if err != nil {
		return fmt.Errorf("refund transaction %s: %w", transactionRef, err)
	}
	return nil
}

// Braintree expects NewDecimal(unscaled, scale): 50.00 -> NewDecimal(5000, 2)
func toBraintreeDecimal(amount decimal.Decimal) *braintree.Decimal {
	cents := amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	return braintree.NewDecimal(cents, 2)
}
