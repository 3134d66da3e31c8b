package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"800", 80000, false},
		{"800.5", 80050, false},
		{"0.07", 7, false},
		{"-12.34", -1234, false},
		{"1.234", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"92233720368547758.07", 9223372036854775807, false},
		{"92233720368547758.08", 0, true},
		{"100000000000000000", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			m, err := Parse(tc.in, "usd")
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Amount)
			assert.Equal(t, "USD", m.Currency)
		})
	}
}

func TestMulDivRoundsHalfUpOnce(t *testing.T) {
	rent := Must(100000, "USD") // 1000.00 a month

	base, err := rent.MulDiv(1, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3333), base.Amount)

	total, err := rent.MulDiv(3, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), total.Amount, "3 nights of 1000/30 is exactly 100.00, not 3*33.33")

	half, err := Must(5, "USD").MulDiv(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), half.Amount)

	_, err = rent.MulDiv(1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivReportsOverflow(t *testing.T) {
	big := Must(math.MaxInt64/2+1, "USD")

	_, err := big.MulDiv(2, 1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Must(math.MinInt64, "USD").MulDiv(-1, 1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Must(math.MinInt64, "USD").MulDiv(1, -1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	ok, err := big.MulDiv(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/4+1), ok.Amount)
}

func TestAddRejectsCurrencyMismatch(t *testing.T) {
	_, err := Must(100, "USD").Add(Must(100, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(100, "USD").Add(Must(250, "USD"))
	require.NoError(t, err)
	assert.Equal(t, "3.50", sum.String())
}

func TestString(t *testing.T) {
	assert.Equal(t, "2400.00", Must(240000, "USD").String())
	assert.Equal(t, "-0.05", Must(-5, "USD").String())
}
