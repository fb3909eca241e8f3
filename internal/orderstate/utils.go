package orderstate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/orderwatch/clob/signing"
	"github.com/betbot/orderwatch/clob/types"
	"github.com/betbot/orderwatch/internal/chain"
	"github.com/betbot/orderwatch/internal/store"
)

// Utils 订单状态计算引擎
// 通过缓存层读取链上事实并判定有效性。只读穿透，从不失效缓存。
type Utils struct {
	chainID *big.Int
	caller  chain.Caller
	stores  *store.Stores
}

// NewUtils 创建状态计算引擎
// stores 与编排器共享：编排器按事件失效，这里只读。
func NewUtils(chainID *big.Int, caller chain.Caller, stores *store.Stores) *Utils {
	return &Utils{chainID: chainID, caller: caller, stores: stores}
}

// GetOrderRelevantState 取订单有效性判断所需的链上事实快照
func (u *Utils) GetOrderRelevantState(ctx context.Context, signedOrder *types.SignedOrder) (*OrderRelevantState, error) {
	orderHash, err := signing.OrderHash(u.chainID, &signedOrder.Order)
	if err != nil {
		return nil, err
	}
	return u.relevantState(ctx, signedOrder, orderHash)
}

// GetOrderState 校验订单，返回 Valid/Invalid 结果
//
// 校验按固定顺序短路：抵押品 → 剩余数量 → 手续费余额 → 手续费授权。
// 预期内的无效情形一律作为数据返回，只有基础设施错误（网络）才报 error。
func (u *Utils) GetOrderState(ctx context.Context, signedOrder *types.SignedOrder) (*OrderState, error) {
	orderHash, err := signing.OrderHash(u.chainID, &signedOrder.Order)
	if err != nil {
		return nil, err
	}

	rs, err := u.relevantState(ctx, signedOrder, orderHash)
	if err != nil {
		return nil, err
	}

	if rs.MakerCollateralBalance.Cmp(rs.NeededCollateral) < 0 {
		return NewInvalid(orderHash, ReasonInsufficientCollateralBalance), nil
	}

	if rs.RemainingMakerFillableQty.Sign() == 0 {
		return NewInvalid(orderHash, ReasonOrderDead), nil
	}

	if signedOrder.MakerFee.Cmp(rs.MakerFeeBalance) > 0 {
		// 授权不足仅在余额同时不足时报告；
		// 余额充足但授权不足的订单按现行语义视为有效。
		if signedOrder.MakerFee.Cmp(rs.MakerFeeAllowance) > 0 {
			return NewInvalid(orderHash, ReasonInsufficientAllowanceForTransfer), nil
		}
		return NewInvalid(orderHash, ReasonInsufficientBalanceForTransfer), nil
	}

	return NewValid(orderHash, rs), nil
}

func (u *Utils) relevantState(ctx context.Context, signedOrder *types.SignedOrder, orderHash common.Hash) (*OrderRelevantState, error) {
	contract := signedOrder.ContractAddress

	addrs, err := u.stores.Address.Get(ctx, contract)
	if err != nil {
		return nil, err
	}

	// 保证金公式委托给结算合约（纯计算，不缓存）
	needed, err := u.caller.NeededCollateral(ctx, contract, signedOrder.Qty, signedOrder.Price)
	if err != nil {
		return nil, err
	}

	collateralBalance, err := u.stores.Collateral.Get(ctx, store.CollateralKey{
		Pool: addrs.CollateralPool,
		User: signedOrder.Maker,
	})
	if err != nil {
		return nil, err
	}

	feeBalance, err := u.stores.Balance.Get(ctx, store.BalanceKey{
		Token: addrs.FeeToken,
		Owner: signedOrder.Maker,
	})
	if err != nil {
		return nil, err
	}

	feeAllowance, err := u.stores.Allowance.Get(ctx, store.AllowanceKey{
		Token:   addrs.FeeToken,
		Owner:   signedOrder.Maker,
		Spender: contract,
	})
	if err != nil {
		return nil, err
	}

	filled, err := u.stores.Fill.Get(ctx, store.FillKey{
		Contract:  contract,
		OrderHash: orderHash,
	})
	if err != nil {
		return nil, err
	}

	remaining := new(big.Int).Sub(signedOrder.Qty, filled)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}

	return &OrderRelevantState{
		NeededCollateral:          needed,
		MakerCollateralBalance:    collateralBalance,
		MakerFeeBalance:           feeBalance,
		MakerFeeAllowance:         feeAllowance,
		FilledOrCancelledQty:      filled,
		RemainingFillableQty:      remaining,
		RemainingMakerFillableQty: makerFillable(remaining, collateralBalance, needed),
		RemainingTakerFillableQty: new(big.Int).Set(remaining),
	}, nil
}

// makerFillable maker 侧剩余可成交数量
// 抵押品不足以覆盖全部剩余数量时按比例缩减（taker 侧资源未知，不缩减），
// 两侧数值因此可能分叉。
func makerFillable(remaining, collateralBalance, needed *big.Int) *big.Int {
	if needed.Sign() == 0 || collateralBalance.Cmp(needed) >= 0 {
		return new(big.Int).Set(remaining)
	}
	fillable := new(big.Int).Mul(remaining, collateralBalance)
	return fillable.Div(fillable, needed)
}
