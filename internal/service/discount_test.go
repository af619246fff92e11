package service

import (
	"context"
	"testing"
	"time"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		name   string
		kind   model.DiscountKind
		value  string
		cap    decimal.NullDecimal
		amount string
		want   string
	}{
		{"percentage", model.DiscountKindPercentage, "10", decimal.NullDecimal{}, "80.00", "8.00"},
		{"percentage capped", model.DiscountKindPercentage, "50", nullMoney("15"), "80.00", "15.00"},
		{"zero cap means uncapped", model.DiscountKindPercentage, "50", nullMoney("0"), "80.00", "40.00"},
		{"fixed", model.DiscountKindFixedAmount, "7.50", decimal.NullDecimal{}, "80.00", "7.50"},
		{"fixed capped", model.DiscountKindFixedAmount, "20", nullMoney("12"), "80.00", "12.00"},
		{"percentage rounded", model.DiscountKindPercentage, "15", decimal.NullDecimal{}, "33.33", "5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := discountAmount(tt.kind, testutil.Money(tt.value), tt.cap, testutil.Money(tt.amount))
			assert.Equal(t, tt.want, got.StringFixed(2))
			if tt.cap.Valid && tt.cap.Decimal.IsPositive() {
				assert.True(t, got.LessThanOrEqual(tt.cap.Decimal))
			}
		})
	}
}

func createRule(t *testing.T, env *testEnv, req dto.CustomerDiscountRuleRequest) *model.CustomerDiscountRule {
	t.Helper()
	r, err := env.discounts.CreateRule(context.Background(), req, "admin")
	require.NoError(t, err)
	return r
}

func TestFindBestApplicableDiscount_NoCandidates(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.discounts.FindBestApplicableDiscount(context.Background(), "cust-1", testutil.Money("50"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindBestApplicableDiscount_PicksLargestIndividual(t *testing.T) {
	env := newTestEnv(t)

	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Name: "five off", Kind: "fixed_amount", Value: testutil.Money("5"),
	})
	best := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Name: "twenty percent", Kind: "percentage", Value: testutil.Money("20"),
	})
	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Name: "too big order", Kind: "percentage", Value: testutil.Money("50"),
		MinOrderAmount: nullMoney("100"),
	})
	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-2", Name: "someone else", Kind: "percentage", Value: testutil.Money("90"),
	})

	got, err := env.discounts.FindBestApplicableDiscount(context.Background(), "cust-1", testutil.Money("50"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DiscountSourceIndividual, got.Source)
	assert.Equal(t, best.ID, got.RuleID)
	assert.Equal(t, "10.00", got.Amount.StringFixed(2))
}

func TestFindBestApplicableDiscount_SkipsIneligibleRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("9"),
		ValidFrom: timePtr(now.Add(24 * time.Hour)),
	})
	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("8"),
		ValidUntil: timePtr(now.Add(-time.Hour)),
	})
	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("7"),
		MaxOrderAmount: nullMoney("20"),
	})
	exhausted := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("6"),
		MaxUsageCount: testutil.IntPtr(1),
	})
	_, err := env.discounts.RecordUsage(ctx, exhausted.ID)
	require.NoError(t, err)
	inactive := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("5"),
	})
	require.NoError(t, env.discounts.DeactivateRule(ctx, inactive.ID))
	eligible := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("1"),
	})

	got, err := env.discounts.FindBestApplicableDiscount(ctx, "cust-1", testutil.Money("50"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, eligible.ID, got.RuleID)
}

func seedGroupDiscount(t *testing.T, env *testEnv, customerID string, req dto.GroupDiscountRequest) (*model.UserGroup, *model.GroupDiscount) {
	t.Helper()
	ctx := context.Background()

	group, err := env.groups.CreateGroup(ctx, dto.CreateGroupRequest{Name: "Staff"}, "admin")
	require.NoError(t, err)
	discount, err := env.groups.AddGroupDiscount(ctx, group.ID, req)
	require.NoError(t, err)
	_, err = env.groups.IssueMembership(ctx, group.ID, dto.IssueMembershipRequest{CustomerID: customerID}, "admin")
	require.NoError(t, err)

	return group, discount
}

func TestFindBestApplicableDiscount_GroupBeatsSmallerIndividual(t *testing.T) {
	env := newTestEnv(t)

	createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("3"),
	})
	group, discount := seedGroupDiscount(t, env, "cust-1", dto.GroupDiscountRequest{
		Name: "staff", Kind: "percentage", Value: testutil.Money("25"), MaxDiscountAmount: nullMoney("10"),
	})

	got, err := env.discounts.FindBestApplicableDiscount(context.Background(), "cust-1", testutil.Money("60"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DiscountSourceGroup, got.Source)
	assert.Equal(t, group.ID, got.GroupID)
	assert.Equal(t, discount.ID, got.GroupDiscountID)
	assert.Equal(t, "10.00", got.Amount.StringFixed(2), "capped")
}

func TestFindBestApplicableDiscount_TieFavorsIndividual(t *testing.T) {
	env := newTestEnv(t)

	individual := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "fixed_amount", Value: testutil.Money("5"),
	})
	seedGroupDiscount(t, env, "cust-1", dto.GroupDiscountRequest{
		Kind: "percentage", Value: testutil.Money("10"),
	})

	got, err := env.discounts.FindBestApplicableDiscount(context.Background(), "cust-1", testutil.Money("50"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DiscountSourceIndividual, got.Source)
	assert.Equal(t, individual.ID, got.RuleID)
}

func TestFindBestApplicableDiscount_GroupWindowAndMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expired, err := env.groups.CreateGroup(ctx, dto.CreateGroupRequest{
		Name: "Old", ValidUntil: timePtr(time.Now().Add(-time.Hour)),
	}, "admin")
	require.NoError(t, err)
	_, err = env.groups.AddGroupDiscount(ctx, expired.ID, dto.GroupDiscountRequest{Kind: "fixed_amount", Value: testutil.Money("9")})
	require.NoError(t, err)
	_, err = env.groups.IssueMembership(ctx, expired.ID, dto.IssueMembershipRequest{CustomerID: "cust-1"}, "admin")
	require.NoError(t, err)

	_, _ = seedGroupDiscount(t, env, "cust-2", dto.GroupDiscountRequest{Kind: "fixed_amount", Value: testutil.Money("4")})

	minimum, err := env.groups.CreateGroup(ctx, dto.CreateGroupRequest{Name: "Big spenders"}, "admin")
	require.NoError(t, err)
	_, err = env.groups.AddGroupDiscount(ctx, minimum.ID, dto.GroupDiscountRequest{
		Kind: "fixed_amount", Value: testutil.Money("6"), MinOrderAmount: nullMoney("100"),
	})
	require.NoError(t, err)
	membership, err := env.groups.IssueMembership(ctx, minimum.ID, dto.IssueMembershipRequest{CustomerID: "cust-1"}, "admin")
	require.NoError(t, err)

	got, err := env.discounts.FindBestApplicableDiscount(ctx, "cust-1", testutil.Money("50"))
	require.NoError(t, err)
	assert.Nil(t, got, "expired group and unmet minimum")

	got, err = env.discounts.FindBestApplicableDiscount(ctx, "cust-1", testutil.Money("150"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, minimum.ID, got.GroupID)

	require.NoError(t, env.groups.RevokeMembership(ctx, membership.ID))
	got, err = env.discounts.FindBestApplicableDiscount(ctx, "cust-1", testutil.Money("150"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDiscountService_RecordUsageDeactivatesAtCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "percentage", Value: testutil.Money("10"), MaxUsageCount: testutil.IntPtr(2),
	})

	updated, err := env.discounts.RecordUsage(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UsageCount)
	assert.True(t, updated.IsActive)

	updated, err = env.discounts.RecordUsage(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.UsageCount)
	assert.False(t, updated.IsActive)

	_, err = env.discounts.RecordUsage(ctx, r.ID)
	assert.True(t, apperror.IsConflict(err))

	stored, err := env.discountRepo.FindRule(ctx, nil, r.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsageCount)

	_, err = env.discounts.RecordUsage(ctx, "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDiscountService_RuleValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []dto.CustomerDiscountRuleRequest{
		{CustomerID: "", Kind: "percentage", Value: testutil.Money("10")},
		{CustomerID: "c", Kind: "bogus", Value: testutil.Money("10")},
		{CustomerID: "c", Kind: "percentage", Value: testutil.Money("0")},
		{CustomerID: "c", Kind: "percentage", Value: testutil.Money("101")},
		{CustomerID: "c", Kind: "fixed_amount", Value: testutil.Money("5"), MinOrderAmount: nullMoney("50"), MaxOrderAmount: nullMoney("10")},
		{CustomerID: "c", Kind: "fixed_amount", Value: testutil.Money("5"), MaxUsageCount: testutil.IntPtr(0)},
		{CustomerID: "c", Kind: "fixed_amount", Value: testutil.Money("5"), ValidFrom: timePtr(time.Now()), ValidUntil: timePtr(time.Now().Add(-time.Hour))},
	}
	for _, req := range cases {
		_, err := env.discounts.CreateRule(ctx, req, "admin")
		assert.True(t, apperror.IsValidation(err), "request %+v", req)
	}
}

func TestDiscountService_UpdateRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r := createRule(t, env, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Kind: "percentage", Value: testutil.Money("10"),
	})

	updated, err := env.discounts.UpdateRule(ctx, r.ID, dto.CustomerDiscountRuleRequest{
		CustomerID: "cust-1", Name: "loyal", Kind: "fixed_amount", Value: testutil.Money("4"),
	}, "manager")
	require.NoError(t, err)
	assert.Equal(t, model.DiscountKindFixedAmount, updated.Kind)
	assert.Equal(t, "manager", updated.UpdatedBy)

	rules, err := env.discounts.ListRules(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "4.00", rules[0].Value.StringFixed(2))
}
