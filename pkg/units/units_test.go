package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(decimal.RequireFromString("1.5"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", v.String())

	v, err = ToBaseUnits(decimal.RequireFromString("0"), 18)
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())

	// 超出精度：1.0000001 在 6 位精度下无法表示
	_, err = ToBaseUnits(decimal.RequireFromString("1.0000001"), 6)
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "1.5", FromBaseUnits(big.NewInt(1500000), 6).String())
	assert.Equal(t, "0", FromBaseUnits(nil, 6).String())
	assert.Equal(t, "-0.000001", FromBaseUnits(big.NewInt(-1), 6).String())
}

func TestParseToBaseUnits(t *testing.T) {
	v, err := ParseToBaseUnits("2.25", 6)
	require.NoError(t, err)
	assert.Equal(t, "2250000", v.String())

	_, err = ParseToBaseUnits("not-a-number", 6)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	orig := decimal.RequireFromString("123.456789")
	base, err := ToBaseUnits(orig, 6)
	require.NoError(t, err)
	assert.True(t, orig.Equal(FromBaseUnits(base, 6)))
}

func TestFormatBaseUnits(t *testing.T) {
	assert.Equal(t, "0.000001", FormatBaseUnits(big.NewInt(1), 6))
}
