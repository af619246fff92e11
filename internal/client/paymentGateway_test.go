package client

import (
	"context"
	"strings"
	"testing"

	"restaurant-order-engine/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentGateway_DefaultsToSimulated(t *testing.T) {
	gw := NewPaymentGateway(&config.Braintree{})
	_, ok := gw.(*SimulatedGateway)
	assert.True(t, ok)

	gw = NewPaymentGateway(&config.Braintree{MerchantID: "m", PublicKey: "p", PrivateKey: "k"})
	_, ok = gw.(*braintreeGateway)
	assert.True(t, ok)
}

func TestSimulatedGateway_ChargeAndRefund(t *testing.T) {
	ctx := context.Background()
	gw := NewSimulatedGateway()

	ref, err := gw.Charge(ctx, ChargeRequest{OrderNumber: "202601010001", Method: "card", Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "sim_"))
	require.Len(t, gw.Charges(), 1)

	require.NoError(t, gw.Refund(ctx, ref, decimal.NewFromInt(5)))
	require.NoError(t, gw.Refund(ctx, ref, decimal.NewFromInt(3)))
	assert.Equal(t, "8.00", gw.Refunded(ref).StringFixed(2))
}

func TestToBraintreeDecimal(t *testing.T) {
	d := toBraintreeDecimal(decimal.RequireFromString("50.005"))
	assert.Equal(t, int64(5001), d.Unscaled)
	assert.Equal(t, 2, d.Scale)
}
