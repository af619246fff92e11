package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTranslations_ValidateRejectsDuplicateLanguage(t *testing.T) {
	tr := Translations{
		{Lang: "en", Text: "Margherita"},
		{Lang: "fr", Text: "Marguerite"},
		{Lang: "EN", Text: "Pizza"},
	}

	err := tr.Validate()
	assert.ErrorContains(t, err, `duplicate translation for language "en"`)
}

func TestTranslations_ValidateRejectsEmptyLanguage(t *testing.T) {
	assert.Error(t, Translations{{Lang: " ", Text: "x"}}.Validate())
	assert.NoError(t, Translations{{Lang: "en", Text: "x"}}.Validate())
}

func TestTranslations_LookupFallsBackToFirst(t *testing.T) {
	tr := Translations{{Lang: "en", Text: "Fries"}, {Lang: "fr", Text: "Frites"}}

	text, exact := tr.Lookup("FR")
	assert.True(t, exact)
	assert.Equal(t, "Frites", text)

	text, exact = tr.Lookup("de")
	assert.False(t, exact)
	assert.Equal(t, "Fries", text)
}

func TestBasket_FindLineMatchesVariation(t *testing.T) {
	large := "var-large"
	b := &Basket{Items: []BasketItem{
		{ID: 1, ProductID: "p1"},
		{ID: 2, ProductID: "p1", VariationID: &large},
	}}

	other := "var-large"
	assert.Equal(t, uint(2), b.FindLine("p1", &other).ID)
	assert.Equal(t, uint(1), b.FindLine("p1", nil).ID)
	assert.Nil(t, b.FindLine("p2", nil))
}

func TestBasket_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.False(t, (&Basket{}).Expired(now))
	assert.True(t, (&Basket{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Basket{ExpiresAt: now.Add(time.Second)}).Expired(now))
}

func TestPointEarningRule_Contains(t *testing.T) {
	bounded := &PointEarningRule{
		MinOrderAmount: decimal.NewFromInt(20),
		MaxOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(50)),
	}
	open := &PointEarningRule{MinOrderAmount: decimal.NewFromInt(50)}

	assert.True(t, bounded.Contains(decimal.NewFromInt(20)))
	assert.True(t, bounded.Contains(decimal.NewFromInt(50)))
	assert.False(t, bounded.Contains(decimal.RequireFromString("50.01")))
	assert.False(t, bounded.Contains(decimal.RequireFromString("19.99")))
	assert.True(t, open.Contains(decimal.NewFromInt(100000)))
}

func TestWithin_OpenEndedBounds(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, Within(now, nil, nil))
	assert.True(t, Within(now, &past, &future))
	assert.False(t, Within(now, &future, nil))
	assert.False(t, Within(now, nil, &past))
}
