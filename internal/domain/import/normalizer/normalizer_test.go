package normalizer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casaledger/casaledger/pkg/money"
)

func TestParseFlexibleDate_ISO(t *testing.T) {
	got, err := ParseFlexibleDate("2024-01-15", DateHintAuto)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseFlexibleDate("15 Jan 2024", DateHintAuto)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Day())
}

func TestParseFlexibleDate_AutoDisambiguation(t *testing.T) {
	t.Run("US ordering wins when month component is valid", func(t *testing.T) {
		got, err := ParseFlexibleDate("01/02/2024", DateHintAuto)
		require.NoError(t, err)
		assert.Equal(t, time.January, got.Month())
		assert.Equal(t, 2, got.Day())
	})

	t.Run("falls to day-first when first component exceeds 12", func(t *testing.T) {
		got, err := ParseFlexibleDate("25/12/2024", DateHintAuto)
		require.NoError(t, err)
		assert.Equal(t, time.December, got.Month())
		assert.Equal(t, 25, got.Day())
	})

	t.Run("dash and dot separators", func(t *testing.T) {
		got, err := ParseFlexibleDate("31-01-2024", DateHintAuto)
		require.NoError(t, err)
		assert.Equal(t, 31, got.Day())

		got, err = ParseFlexibleDate("31.01.2024", DateHintAuto)
		require.NoError(t, err)
		assert.Equal(t, 31, got.Day())
	})

	t.Run("two-digit year", func(t *testing.T) {
		got, err := ParseFlexibleDate("01/02/24", DateHintAuto)
		require.NoError(t, err)
		assert.Equal(t, 2024, got.Year())
	})
}

func TestParseFlexibleDate_Hints(t *testing.T) {
	mdy, err := ParseFlexibleDate("01/02/2024", DateHintMonthDay)
	require.NoError(t, err)
	assert.Equal(t, time.January, mdy.Month())

	dmy, err := ParseFlexibleDate("01/02/2024", DateHintDayMonth)
	require.NoError(t, err)
	assert.Equal(t, time.February, dmy.Month())
	assert.Equal(t, 1, dmy.Day())

	// Hint is authoritative: 25 is not a month.
	_, err = ParseFlexibleDate("25/12/2024", DateHintMonthDay)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseFlexibleDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "not a date", "13/13/2024", "30/02/2024", "TOTAL", "1234567"} {
		_, err := ParseFlexibleDate(s, DateHintAuto)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", s)
	}
}

func TestParseDateHint(t *testing.T) {
	h, err := ParseDateHint("")
	require.NoError(t, err)
	assert.Equal(t, DateHintAuto, h)

	h, err = ParseDateHint("DD/MM/YYYY")
	require.NoError(t, err)
	assert.Equal(t, DateHintDayMonth, h)

	_, err = ParseDateHint("YYYY-DD-MM")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		currency string
	}{
		{"5.50", "5.5", ""},
		{"$5.50", "5.5", money.USD},
		{"1,234.56", "1234.56", ""},
		{"€1.234,56", "1234.56", money.EUR},
		{"123,45", "123.45", ""},
		{"(42.00)", "-42", ""},
		{"-£10.99", "-10.99", money.GBP},
		{"42.00-", "-42", ""},
		{"MX$ 250.00", "250", money.MXN},
		{"R$99,90", "99.9", money.BRL},
		{"S/ 35.00", "35", money.PEN},
		{"¥1500", "1500", money.JPY},
		{"USD 12.00", "12", money.USD},
		{"1 234,56", "1234.56", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, currency, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
			assert.Equal(t, tt.currency, currency)
		})
	}

	for _, s := range []string{"", "abc", "$", "12.34.56.78"} {
		_, _, err := ParseAmount(s)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", s)
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"STARBUCKS #1234", "starbucks"},
		{"Starbucks #5678", "starbucks"},
		{"UBER *EATS 8005928996", "uber eats"},
		{"AMAZON MKTPLACE REF: ABC123", "amazon mktplace"},
		{"SHELL OIL 57442 CARD 1234", "shell oil"},
		{"Local Cafe", "local cafe"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMerchant(tt.in), "input %q", tt.in)
	}

	// Same merchant, different store numbers, identical identity.
	assert.Equal(t, NormalizeMerchant("WALMART #1111"), NormalizeMerchant("WALMART #9999"))
}

func TestBaseMerchant(t *testing.T) {
	assert.Equal(t, "starbucks coffee", BaseMerchant("STARBUCKS COFFEE DOWNTOWN #12"))
	assert.Equal(t, "starbucks coffee", BaseMerchant("Starbucks Coffee Airport"))
	assert.Equal(t, "netflixcom", BaseMerchant("NETFLIX.COM"))
}

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "COFFEE SHOP", CleanDescription("  COFFEE  SHOP  "))
	assert.Equal(t, "A B C", CleanDescription(" A\tB \n C "))
}
