package orderstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// InvalidReason 订单无效原因（封闭枚举，不用自由字符串）
type InvalidReason int

const (
	// ReasonNone 占位（有效订单）
	ReasonNone InvalidReason = iota
	// ReasonInsufficientCollateralBalance maker 抵押品余额不足
	ReasonInsufficientCollateralBalance
	// ReasonOrderDead 剩余可成交数量为零
	ReasonOrderDead
	// ReasonInsufficientBalanceForTransfer maker 手续费余额不足
	ReasonInsufficientBalanceForTransfer
	// ReasonInsufficientAllowanceForTransfer maker 手续费授权不足
	ReasonInsufficientAllowanceForTransfer
	// ReasonOrderExpired 订单过期
	ReasonOrderExpired
)

// String 原因名称
func (r InvalidReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonInsufficientCollateralBalance:
		return "InsufficientCollateralBalance"
	case ReasonOrderDead:
		return "OrderDead"
	case ReasonInsufficientBalanceForTransfer:
		return "InsufficientBalanceForTransfer"
	case ReasonInsufficientAllowanceForTransfer:
		return "InsufficientAllowanceForTransfer"
	case ReasonOrderExpired:
		return "OrderExpired"
	default:
		return "Unknown"
	}
}

// OrderRelevantState 判断订单有效性所需的链上事实快照
// 按需重算，单次校验之外不保留（各组成部分由缓存层记忆）。
type OrderRelevantState struct {
	// NeededCollateral 按合约保证金规则计算的所需抵押品
	NeededCollateral *big.Int

	// MakerCollateralBalance maker 在抵押品池中的余额
	MakerCollateralBalance *big.Int

	// MakerFeeBalance maker 手续费代币余额
	MakerFeeBalance *big.Int

	// MakerFeeAllowance maker 对结算合约的手续费授权额度
	MakerFeeAllowance *big.Int

	// FilledOrCancelledQty 已成交或取消的累计数量
	FilledOrCancelledQty *big.Int

	// RemainingFillableQty 订单数量减去已成交/取消数量
	RemainingFillableQty *big.Int

	// RemainingMakerFillableQty maker 侧剩余可成交数量
	// 受 maker 抵押品余额按比例限制，可能小于 RemainingFillableQty。
	RemainingMakerFillableQty *big.Int

	// RemainingTakerFillableQty taker 侧剩余可成交数量
	RemainingTakerFillableQty *big.Int
}

// Equal 按值比较
func (s *OrderRelevantState) Equal(other *OrderRelevantState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return bigEqual(s.NeededCollateral, other.NeededCollateral) &&
		bigEqual(s.MakerCollateralBalance, other.MakerCollateralBalance) &&
		bigEqual(s.MakerFeeBalance, other.MakerFeeBalance) &&
		bigEqual(s.MakerFeeAllowance, other.MakerFeeAllowance) &&
		bigEqual(s.FilledOrCancelledQty, other.FilledOrCancelledQty) &&
		bigEqual(s.RemainingFillableQty, other.RemainingFillableQty) &&
		bigEqual(s.RemainingMakerFillableQty, other.RemainingMakerFillableQty) &&
		bigEqual(s.RemainingTakerFillableQty, other.RemainingTakerFillableQty)
}

// OrderState 单次校验结果：Valid 携带相关状态，Invalid 携带原因
type OrderState struct {
	OrderHash common.Hash
	Valid     bool

	// Reason 仅 Valid == false 时有意义
	Reason InvalidReason

	// RelevantState 仅 Valid == true 时有意义
	RelevantState *OrderRelevantState
}

// NewValid 构造有效状态
func NewValid(orderHash common.Hash, rs *OrderRelevantState) *OrderState {
	return &OrderState{OrderHash: orderHash, Valid: true, RelevantState: rs}
}

// NewInvalid 构造无效状态
func NewInvalid(orderHash common.Hash, reason InvalidReason) *OrderState {
	return &OrderState{OrderHash: orderHash, Valid: false, Reason: reason}
}

// Equal 按值比较（用于变更抑制：相同状态不重复通知）
func (s *OrderState) Equal(other *OrderState) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.OrderHash != other.OrderHash || s.Valid != other.Valid || s.Reason != other.Reason {
		return false
	}
	return s.RelevantState.Equal(other.RelevantState)
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
