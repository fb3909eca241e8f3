package signing

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betbot/orderwatch/clob/types"
)

// orderTypes EIP712 类型定义
var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "qty", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "makerFee", Type: "uint256"},
		{Name: "takerFee", Type: "uint256"},
		{Name: "feeRecipient", Type: "address"},
		{Name: "expiration", Type: "uint256"},
	},
}

// OrderHash 计算订单的规范化 EIP712 哈希
// 结算合约地址作为 verifyingContract 进入域分隔符，
// 因此同一订单在不同合约下哈希不同。
func OrderHash(chainID *big.Int, order *types.Order) (common.Hash, error) {
	if order == nil {
		return common.Hash{}, fmt.Errorf("订单为空")
	}

	domain := apitypes.TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainId:           math.NewHexOrDecimal256(chainID.Int64()),
		VerifyingContract: order.ContractAddress.Hex(),
	}

	// 地址使用字符串格式，数值使用 big.Int（与 apitypes 的约定一致）
	message := map[string]interface{}{
		"salt":         order.Salt,
		"maker":        order.Maker.Hex(),
		"taker":        order.Taker.Hex(),
		"qty":          order.Qty,
		"price":        order.Price,
		"makerFee":     order.MakerFee,
		"takerFee":     order.TakerFee,
		"feeRecipient": order.FeeRecipient.Hex(),
		"expiration":   order.Expiration,
	}

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("计算 EIP712 哈希失败: %w", err)
	}

	return common.BytesToHash(hash), nil
}
