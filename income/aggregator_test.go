package income_test

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/beaconincome/income"
)

func TestAggregatorSummary(t *testing.T) {
	t.Parallel()

	t.Run("it signals no data when nothing was folded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		agg := income.NewAggregator()

		// Act
		summary := agg.Summary()

		// Assert
		assert.False(t, summary.HasData)
		assert.Zero(t, summary.Count)
		assert.True(t, summary.Mean.IsZero())
	})

	t.Run("it ignores absent values", func(t *testing.T) {
		t.Parallel()

		// Arrange
		agg := income.NewAggregator()

		// Act
		folded := agg.Fold(decimal.NullDecimal{})

		// Assert
		assert.False(t, folded)
		assert.False(t, agg.Summary().HasData)
	})

	t.Run("it keeps negative income", func(t *testing.T) {
		t.Parallel()

		// Arrange
		agg := income.NewAggregator()

		// Act
		agg.Fold(eth("0.5"))
		agg.Fold(eth("-0.1"))

		// Assert
		summary := agg.Summary()
		require.True(t, summary.HasData)
		assertDecimal(t, "0.2", summary.Mean)
		assert.Equal(t, int64(2), summary.Count)
	})

	t.Run("it reports mean as sum over count for any folded sequence", func(t *testing.T) {
		t.Parallel()

		for round := range 50 {
			// Arrange
			agg := income.NewAggregator()
			n := 1 + rand.IntN(500)
			sum := decimal.Zero
			var present int64

			// Act
			for range n {
				if rand.IntN(5) == 0 {
					agg.Fold(decimal.NullDecimal{})
					continue
				}
				v := decimal.New(rand.Int64N(2_000_000_000)-500_000_000, -9)
				sum = sum.Add(v)
				present++
				agg.Fold(decimal.NewNullDecimal(v))
			}

			// Assert
			summary := agg.Summary()
			assert.Equal(t, present, summary.Count, "round %d", round)
			if present == 0 {
				assert.False(t, summary.HasData, "round %d", round)
				continue
			}
			assert.True(t, summary.HasData, "round %d", round)
			assert.True(t, sum.Equal(summary.Sum), "round %d: sum", round)
			assert.True(t, sum.Div(decimal.NewFromInt(present)).Equal(summary.Mean), "round %d: mean", round)
		}
	})

	t.Run("it continues from a restored aggregate", func(t *testing.T) {
		t.Parallel()

		// Arrange
		agg := income.NewAggregator()
		agg.Restore(decimal.RequireFromString("12.5"), 899)

		// Act
		agg.Fold(eth("0"))

		// Assert
		summary := agg.Summary()
		assert.Equal(t, int64(900), summary.Count)
		assert.True(t, decimal.RequireFromString("12.5").Div(decimal.NewFromInt(900)).Equal(summary.Mean))
	})
}

func eth(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertDecimal(t *testing.T, expected string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(got), "Expected %s, got %s", expected, got)
}
