package income_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/beaconincome/income"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	t.Run("when input is a supported window", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			input         string
			expected      income.Duration
			expectedField string
		}{
			{input: "1day", expected: income.Day1, expectedField: "performance1d"},
			{input: "7days", expected: income.Days7, expectedField: "performance7d"},
			{input: "31DAYS", expected: income.Days31, expectedField: "performance31d"},
			{input: " 365days ", expected: income.Days365, expectedField: "performance365d"},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				t.Parallel()

				// Act
				d, err := income.ParseDuration(tc.input)

				// Assert
				require.NoError(t, err)
				assert.Equal(t, tc.expected, d)
				assert.Equal(t, tc.expectedField, d.PerformanceField())
				assert.True(t, d.Valid())
			})
		}
	})

	t.Run("when input is empty", func(t *testing.T) {
		t.Parallel()

		// Act
		d, err := income.ParseDuration("")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, income.DefaultDuration, d, "Empty should default to %s", income.DefaultDuration)
	})

	t.Run("when input is unknown", func(t *testing.T) {
		t.Parallel()

		// Act
		d, err := income.ParseDuration("2weeks")

		// Assert
		assert.ErrorIs(t, err, income.ErrUnknownDuration)
		assert.False(t, d.Valid())
	})
}

func TestRecordIncome(t *testing.T) {
	t.Parallel()

	// Arrange
	record := income.Record{
		Index:      42,
		Income1d:   income.FromGwei(eth("2677223")),
		Income7d:   income.FromGwei(eth("18740561")),
		Income365d: income.FromGwei(eth("1012000000")),
	}

	// Act & Assert
	assertDecimal(t, "0.002677223", record.Income(income.Day1).Decimal)
	assertDecimal(t, "0.018740561", record.Income(income.Days7).Decimal)
	assert.False(t, record.Income(income.Days31).Valid, "Missing window should stay absent")
	assertDecimal(t, "1.012", record.Income(income.Days365).Decimal)
	assert.False(t, record.Income(income.Duration("bogus")).Valid)
}
