package store

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/orderwatch/internal/chain"
)

// BalanceKey 代币余额缓存键
type BalanceKey struct {
	Token common.Address
	Owner common.Address
}

// AllowanceKey 授权额度缓存键（比余额多一个 spender 维度）
type AllowanceKey struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
}

// CollateralKey 抵押品池余额缓存键
type CollateralKey struct {
	Pool common.Address
	User common.Address
}

// FillKey 成交/取消数量缓存键
type FillKey struct {
	Contract  common.Address
	OrderHash common.Hash
}

// ContractAddresses 结算合约关联地址（每个合约解析一次）
type ContractAddresses struct {
	CollateralPool  common.Address
	CollateralToken common.Address
	FeeToken        common.Address
}

// Stores 订单校验所需的全部缓存
// 编排器（Order State Watcher）负责按事件失效；
// 状态计算只读穿透，绝不失效。
type Stores struct {
	Balance    *Lazy[BalanceKey, *big.Int]
	Allowance  *Lazy[AllowanceKey, *big.Int]
	Collateral *Lazy[CollateralKey, *big.Int]
	Fill       *Lazy[FillKey, *big.Int]
	Address    *Lazy[common.Address, ContractAddresses]
}

// NewStores 基于合约访问器创建全套缓存
func NewStores(caller chain.Caller) *Stores {
	return &Stores{
		Balance: NewLazy(func(ctx context.Context, k BalanceKey) (*big.Int, error) {
			return caller.TokenBalance(ctx, k.Token, k.Owner)
		}),
		Allowance: NewLazy(func(ctx context.Context, k AllowanceKey) (*big.Int, error) {
			return caller.TokenAllowance(ctx, k.Token, k.Owner, k.Spender)
		}),
		Collateral: NewLazy(func(ctx context.Context, k CollateralKey) (*big.Int, error) {
			return caller.CollateralBalance(ctx, k.Pool, k.User)
		}),
		Fill: NewLazy(func(ctx context.Context, k FillKey) (*big.Int, error) {
			return caller.FilledOrCancelledQty(ctx, k.Contract, k.OrderHash)
		}),
		Address: NewLazy(func(ctx context.Context, contract common.Address) (ContractAddresses, error) {
			pool, err := caller.CollateralPoolAddress(ctx, contract)
			if err != nil {
				return ContractAddresses{}, err
			}
			token, err := caller.CollateralTokenAddress(ctx, contract)
			if err != nil {
				return ContractAddresses{}, err
			}
			feeToken, err := caller.FeeTokenAddress(ctx, contract)
			if err != nil {
				return ContractAddresses{}, err
			}
			return ContractAddresses{
				CollateralPool:  pool,
				CollateralToken: token,
				FeeToken:        feeToken,
			}, nil
		}),
	}
}

// DeleteAll 清空全部缓存
func (s *Stores) DeleteAll() {
	s.Balance.DeleteAll()
	s.Allowance.DeleteAll()
	s.Collateral.DeleteAll()
	s.Fill.DeleteAll()
	s.Address.DeleteAll()
}
