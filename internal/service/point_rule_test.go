package service

import (
	"context"
	"testing"

	"restaurant-order-engine/internal/apperror"
	"restaurant-order-engine/internal/dto"
	"restaurant-order-engine/internal/model"
	"restaurant-order-engine/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(id, lo, hi string, priority int) *model.PointEarningRule {
	r := &model.PointEarningRule{
		ID:             id,
		Name:           id,
		MinOrderAmount: testutil.Money(lo),
		Points:         10,
		Priority:       priority,
		IsActive:       true,
	}
	if hi != "" {
		r.MaxOrderAmount = nullMoney(hi)
	}
	return r
}

func TestRangesOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b *model.PointEarningRule
		want bool
	}{
		{"disjoint", testRule("a", "0", "49.99", 0), testRule("b", "50", "99.99", 0), false},
		{"touching bound", testRule("a", "0", "50", 0), testRule("b", "50", "100", 0), true},
		{"b inside a", testRule("a", "0", "100", 0), testRule("b", "20", "30", 0), true},
		{"partial", testRule("a", "0", "60", 0), testRule("b", "50", "100", 0), true},
		{"unbounded a covers b", testRule("a", "10", "", 0), testRule("b", "200", "300", 0), true},
		{"unbounded a after b", testRule("a", "100", "", 0), testRule("b", "0", "99.99", 0), false},
		{"both unbounded", testRule("a", "0", "", 0), testRule("b", "1000", "", 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangesOverlap(tt.a, tt.b))
			assert.Equal(t, tt.want, rangesOverlap(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestPickPointRule(t *testing.T) {
	rules := []*model.PointEarningRule{
		testRule("c", "0", "", 2),
		testRule("b", "10", "100", 1),
		testRule("a", "5", "100", 1),
		testRule("d", "0", "", 1),
	}

	got := pickPointRule(rules, testutil.Money("50"))
	require.NotNil(t, got)
	assert.Equal(t, "d", got.ID, "lowest priority, then lowest min")

	inactive := testRule("z", "0", "", 0)
	inactive.IsActive = false
	got = pickPointRule(append(rules, inactive), testutil.Money("50"))
	assert.Equal(t, "d", got.ID)

	assert.Nil(t, pickPointRule(rules[1:3], testutil.Money("1")))
}

func TestPickPointRule_Deterministic(t *testing.T) {
	a := testRule("a", "0", "", 1)
	b := testRule("b", "0", "", 1)

	first := pickPointRule([]*model.PointEarningRule{a, b}, decimal.NewFromInt(10))
	second := pickPointRule([]*model.PointEarningRule{b, a}, decimal.NewFromInt(10))
	assert.Equal(t, first.ID, second.ID)
}

func TestPointRuleService_CreateRejectsOverlapInAnyOrder(t *testing.T) {
	for _, order := range [][2]dto.PointRuleRequest{
		{
			{Name: "Low", MinOrderAmount: testutil.Money("0"), MaxOrderAmount: nullMoney("50"), Points: 5},
			{Name: "High", MinOrderAmount: testutil.Money("40"), Points: 20},
		},
		{
			{Name: "High", MinOrderAmount: testutil.Money("40"), Points: 20},
			{Name: "Low", MinOrderAmount: testutil.Money("0"), MaxOrderAmount: nullMoney("50"), Points: 5},
		},
	} {
		env := newTestEnv(t)
		ctx := context.Background()

		_, err := env.pointRules.CreateRule(ctx, order[0], "admin")
		require.NoError(t, err)

		_, err = env.pointRules.CreateRule(ctx, order[1], "admin")
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
		assert.Contains(t, err.Error(), order[0].Name)

		rules, err := env.pointRules.ListRules(ctx)
		require.NoError(t, err)
		assert.Len(t, rules, 1, "rejected rule must not be stored")
	}
}

func TestPointRuleService_FindApplicableRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Small", MinOrderAmount: testutil.Money("0"), MaxOrderAmount: nullMoney("29.99"), Points: 5,
	}, "admin")
	require.NoError(t, err)
	big, err := env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Big", MinOrderAmount: testutil.Money("30"), Points: 50,
	}, "admin")
	require.NoError(t, err)

	got, err := env.pointRules.FindApplicableRule(ctx, testutil.Money("30"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big.ID, got.ID)

	require.NoError(t, env.pointRules.DeactivateRule(ctx, big.ID))
	got, err = env.pointRules.FindApplicableRule(ctx, testutil.Money("30"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPointRuleService_UpdateExcludesItself(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r, err := env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Only", MinOrderAmount: testutil.Money("0"), MaxOrderAmount: nullMoney("50"), Points: 5,
	}, "admin")
	require.NoError(t, err)

	updated, err := env.pointRules.UpdateRule(ctx, r.ID, dto.PointRuleRequest{
		Name: "Only", MinOrderAmount: testutil.Money("10"), MaxOrderAmount: nullMoney("60"), Points: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Points)

	_, err = env.pointRules.UpdateRule(ctx, "missing", dto.PointRuleRequest{
		Name: "X", MinOrderAmount: testutil.Money("0"), Points: 1,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestPointRuleService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Bad", MinOrderAmount: testutil.Money("50"), MaxOrderAmount: nullMoney("10"), Points: 5,
	}, "admin")
	assert.True(t, apperror.IsValidation(err))

	_, err = env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Zero", MinOrderAmount: testutil.Money("0"), Points: 0,
	}, "admin")
	assert.True(t, apperror.IsValidation(err))

	inactive := false
	_, err = env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "All", MinOrderAmount: testutil.Money("0"), Points: 1,
	}, "admin")
	require.NoError(t, err)
	_, err = env.pointRules.CreateRule(ctx, dto.PointRuleRequest{
		Name: "Draft", MinOrderAmount: testutil.Money("0"), Points: 1, IsActive: &inactive,
	}, "admin")
	assert.NoError(t, err, "inactive rules are not checked for overlap")
}
