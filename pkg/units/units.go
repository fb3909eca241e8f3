package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// 链上数量都是定点整数，人类可读数量用十进制小数。
// 这里负责两个方向的换算，精度丢失一律报错而不是静默截断。

// ToBaseUnits 十进制数量换算为链上最小单位
// 小数位超过代币精度时报错。
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	scaled := amount.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("数量 %s 超出 %d 位精度", amount.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits 链上最小单位换算为十进制数量
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).Shift(-decimals)
}

// ParseToBaseUnits 解析十进制字符串并换算为链上最小单位
func ParseToBaseUnits(s string, decimals int32) (*big.Int, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("解析数量失败 %q: %w", s, err)
	}
	return ToBaseUnits(amount, decimals)
}

// FormatBaseUnits 链上最小单位格式化为十进制字符串
func FormatBaseUnits(amount *big.Int, decimals int32) string {
	return FromBaseUnits(amount, decimals).String()
}
