package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// LogSource 日志来源
// ethclient.Client 直接满足该接口；测试中用脚本化的假实现。
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// Caller 结算合约及其关联合约的只读访问接口
// 所有方法都是网络调用，失败时原样返回底层错误。
type Caller interface {
	// CollateralPoolAddress 结算合约的抵押品池地址
	CollateralPoolAddress(ctx context.Context, contract common.Address) (common.Address, error)

	// CollateralTokenAddress 结算合约的抵押品代币地址
	CollateralTokenAddress(ctx context.Context, contract common.Address) (common.Address, error)

	// FeeTokenAddress 结算合约的手续费代币地址
	FeeTokenAddress(ctx context.Context, contract common.Address) (common.Address, error)

	// TokenBalance 代币余额
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// TokenAllowance 代币授权额度
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// CollateralBalance 用户在抵押品池中的余额
	CollateralBalance(ctx context.Context, pool, user common.Address) (*big.Int, error)

	// FilledOrCancelledQty 订单已成交或已取消的累计数量
	FilledOrCancelledQty(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error)

	// NeededCollateral 按合约保证金规则计算 qty×price 所需抵押品
	NeededCollateral(ctx context.Context, contract common.Address, qty, price *big.Int) (*big.Int, error)
}
