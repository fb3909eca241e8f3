package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order 链下订单（未签名部分）
// 订单本身不上链，成交前只存在于链下订单簿；
// 字段一旦创建不可变，身份由规范化哈希（OrderHash）决定。
type Order struct {
	// Maker 订单创建者地址
	Maker common.Address

	// Taker 订单接受者地址，零地址表示任意 taker
	Taker common.Address

	// ContractAddress 结算合约地址
	ContractAddress common.Address

	// Qty 订单数量（基础单位）
	Qty *big.Int

	// Price 订单价格（基础单位）
	Price *big.Int

	// MakerFee maker 手续费（以手续费代币计）
	MakerFee *big.Int

	// TakerFee taker 手续费（以手续费代币计）
	TakerFee *big.Int

	// FeeRecipient 手续费接收地址
	FeeRecipient common.Address

	// Expiration 订单过期时间戳（秒）
	Expiration *big.Int

	// Salt 防重放随机数。字段完全相同的两个订单哈希相同，
	// 调用方必须随机化 salt 避免意外碰撞。
	Salt *big.Int
}

// SignedOrder 已签名的订单
type SignedOrder struct {
	Order

	// Signature 65 字节签名（r || s || v）
	Signature []byte
}

// TakerIsOpen 是否为公开订单（任意 taker 可成交）
func (o *Order) TakerIsOpen() bool {
	return o.Taker == (common.Address{})
}

// ExpirationUnixMs 过期时间戳（毫秒）
func (o *Order) ExpirationUnixMs() int64 {
	if o.Expiration == nil {
		return 0
	}
	return o.Expiration.Int64() * 1000
}
