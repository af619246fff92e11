package service

import (
	"context"
	"testing"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/notify"
	"restaurant-order-engine/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusConfirmed,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusOutForDelivery,
		model.OrderStatusCompleted,
		model.OrderStatusCancelled,
	}
	allowed := map[[2]model.OrderStatus]bool{
		{model.OrderStatusPending, model.OrderStatusConfirmed}:        true,
		{model.OrderStatusPending, model.OrderStatusCancelled}:        true,
		{model.OrderStatusConfirmed, model.OrderStatusPreparing}:      true,
		{model.OrderStatusConfirmed, model.OrderStatusCancelled}:      true,
		{model.OrderStatusPreparing, model.OrderStatusReady}:          true,
		{model.OrderStatusPreparing, model.OrderStatusCancelled}:      true,
		{model.OrderStatusReady, model.OrderStatusOutForDelivery}:     true,
		{model.OrderStatusReady, model.OrderStatusCompleted}:          true,
		{model.OrderStatusReady, model.OrderStatusCancelled}:          true,
		{model.OrderStatusOutForDelivery, model.OrderStatusCompleted}: true,
		{model.OrderStatusOutForDelivery, model.OrderStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]model.OrderStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func walk(t *testing.T, env *testEnv, orderID string, statuses ...model.OrderStatus) *model.Order {
	t.Helper()
	var order *model.Order
	for _, s := range statuses {
		var err error
		order, err = env.orders.UpdateStatus(context.Background(), orderID, s, "", "staff")
		require.NoError(t, err, "move to %s", s)
	}
	return order
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tea := testutil.SeedProduct(t, env.db, "Tea", "2.00")

	order, err := env.orders.CreateOrder(ctx, takeawayOrder(nil, productLine(tea.ID, 1)), "")
	require.NoError(t, err)

	done := walk(t, env, order.ID,
		model.OrderStatusConfirmed,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusCompleted,
	)
	assert.Equal(t, model.OrderStatusCompleted, done.Status)
	assert.NotNil(t, done.ActualDeliveryTime)

	stored, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 5)
	last := stored.StatusHistory[4]
	assert.Equal(t, model.OrderStatusReady, last.FromStatus)
	assert.Equal(t, model.OrderStatusCompleted, last.ToStatus)
	assert.Equal(t, "staff", last.ChangedBy)

	assert.Len(t, env.notifier.OfType(notify.EventOrderStatusChanged), 4)
	ready := env.notifier.OfType(notify.EventOrderReady)
	require.Len(t, ready, 1)
	assert.Equal(t, []notify.Audience{notify.AudienceService}, ready[0].Audiences)
	assert.Len(t, env.notifier.OfType(notify.EventOrderCompleted), 1)
}

func TestUpdateStatus_RejectsInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tea := testutil.SeedProduct(t, env.db, "Tea", "2.00")

	order, err := env.orders.CreateOrder(ctx, takeawayOrder(nil, productLine(tea.ID, 1)), "")
	require.NoError(t, err)

	_, err = env.orders.UpdateStatus(ctx, order.ID, model.OrderStatusReady, "", "staff")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Contains(t, err.Error(), "pending")
	assert.Contains(t, err.Error(), "ready")

	walk(t, env, order.ID, model.OrderStatusConfirmed, model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusCompleted)
	_, err = env.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPreparing, "", "staff")
	assert.True(t, apperror.IsConflict(err))

	_, err = env.orders.UpdateStatus(ctx, order.ID, "teleported", "", "staff")
	assert.True(t, apperror.IsValidation(err))

	_, err = env.orders.UpdateStatus(ctx, "missing", model.OrderStatusConfirmed, "", "staff")
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateStatus_PendingToCancelled(t *testing.T) {
	env := newTestEnv(t)
	tea := testutil.SeedProduct(t, env.db, "Tea", "2.00")

	order, err := env.orders.CreateOrder(context.Background(), takeawayOrder(nil, productLine(tea.ID, 1)), "")
	require.NoError(t, err)

	cancelled, err := env.orders.UpdateStatus(context.Background(), order.ID, model.OrderStatusCancelled, "customer left", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ActualDeliveryTime)
}

func TestUpdateStatus_PreparingSetsDeliveryEstimate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pasta := testutil.SeedProduct(t, env.db, "Pasta", "12.00")

	order, err := env.orders.CreateOrder(ctx, dto.CreateOrderRequest{
		GuestName:       "Ana",
		Type:            string(model.OrderTypeDelivery),
		DeliveryAddress: "1 Main St",
		Items:           []dto.OrderLineRequest{productLine(pasta.ID, 1)},
	}, "")
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.Order{}).Where("id = ?", order.ID).Update("estimated_delivery_time", nil).Error)

	preparing := walk(t, env, order.ID, model.OrderStatusConfirmed, model.OrderStatusPreparing)
	require.NotNil(t, preparing.EstimatedDeliveryTime)

	stored, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.EstimatedDeliveryTime)
}

func TestUpdateStatus_CompletionEarnsPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := "cust-1"

	_, err := env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Everyone", MinOrderAmount: testutil.Money("0"), Points: 10,
	}, "admin")
	require.NoError(t, err)
	tea := testutil.SeedProduct(t, env.db, "Tea", "2.00")

	order, err := env.orders.CreateOrder(ctx, takeawayOrder(&customer, productLine(tea.ID, 1)), "")
	require.NoError(t, err)
	walk(t, env, order.ID, model.OrderStatusConfirmed, model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusCompleted)

	balance, err := env.fidelity.GetBalance(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 10, balance.CurrentPoints)
}

func TestUpdateStatus_CancellationRestoresRedeemedPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := "cust-1"

	_, err := env.fidelity.AwardPoints(ctx, customer, nil, 150, testutil.Money("0"), "")
	require.NoError(t, err)
	burger := testutil.SeedProduct(t, env.db, "Burger", "15.00")

	req := takeawayOrder(&customer, productLine(burger.ID, 1))
	req.RedeemPoints = 100
	order, err := env.orders.CreateOrder(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, "1.00", order.Discount.StringFixed(2))

	walk(t, env, order.ID, model.OrderStatusCancelled)

	balance, err := env.fidelity.GetBalance(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 150, balance.CurrentPoints)
	assert.Equal(t, 0, balance.TotalRedeemed)
}
