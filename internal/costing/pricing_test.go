package costing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuggestPrice(t *testing.T) {
	suggestion, err := SuggestPrice(200, 50)
	require.NoError(t, err)
	require.InDelta(t, 300, suggestion.SuggestedPrice, 0.001)
	require.InDelta(t, 100, suggestion.ProfitMargin, 0.001)
}

func TestSuggestPriceZeroMarkup(t *testing.T) {
	suggestion, err := SuggestPrice(200, 0)
	require.NoError(t, err)
	require.InDelta(t, 200, suggestion.SuggestedPrice, 0.001)
	require.Zero(t, suggestion.ProfitMargin)
}

func TestSuggestPriceNegativeMarkup(t *testing.T) {
	_, err := SuggestPrice(200, -5)
	require.ErrorIs(t, err, ErrInvalidMarkup)
}

func TestSuggestPriceRoundsHalfUp(t *testing.T) {
	// 10.05 * 1.333 = 13.39665 -> 13.40
	suggestion, err := SuggestPrice(10.05, 33.3)
	require.NoError(t, err)
	require.InDelta(t, 13.40, suggestion.SuggestedPrice, 0.001)
}

func TestSuggestMarkup(t *testing.T) {
	markup, err := SuggestMarkup(200, 300)
	require.NoError(t, err)
	require.InDelta(t, 50, markup, 0.001)
}

func TestSuggestMarkupBelowCost(t *testing.T) {
	markup, err := SuggestMarkup(200, 150)
	require.NoError(t, err)
	require.InDelta(t, -25, markup, 0.001)
}

func TestSuggestMarkupZeroHPP(t *testing.T) {
	_, err := SuggestMarkup(0, 300)
	require.ErrorIs(t, err, ErrInvalidHPP)
}

func TestPricingRoundTrip(t *testing.T) {
	suggestion, err := SuggestPrice(200, 50)
	require.NoError(t, err)

	markup, err := SuggestMarkup(suggestion.HPP, suggestion.SuggestedPrice)
	require.NoError(t, err)
	require.InDelta(t, 50, markup, 0.001)
}
