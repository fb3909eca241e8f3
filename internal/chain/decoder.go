package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// EventKind 事件类型
type EventKind int

const (
	// KindUnknown 无法识别的事件（忽略，不是错误）
	KindUnknown EventKind = iota
	// KindTransfer 代币转账（余额变化）
	KindTransfer
	// KindApproval 授权额度变化
	KindApproval
	// KindLockedBalance 手续费代币锁定余额变化
	KindLockedBalance
	// KindOrderFilled 订单成交
	KindOrderFilled
	// KindOrderCancelled 订单取消
	KindOrderCancelled
	// KindPoolBalance 抵押品池用户余额变化
	KindPoolBalance
)

// String 事件类型名称
func (k EventKind) String() string {
	switch k {
	case KindTransfer:
		return "Transfer"
	case KindApproval:
		return "Approval"
	case KindLockedBalance:
		return "UpdatedUserLockedBalance"
	case KindOrderFilled:
		return "OrderFilled"
	case KindOrderCancelled:
		return "OrderCancelled"
	case KindPoolBalance:
		return "UpdatedUserBalance"
	default:
		return "Unknown"
	}
}

// DecodedEvent 解码后的链上事件
// Address 为产生该日志的合约地址（代币 / 结算合约 / 抵押品池）。
type DecodedEvent struct {
	Kind    EventKind
	Address common.Address
	Removed bool

	// Transfer
	From common.Address
	To   common.Address

	// Approval
	Owner   common.Address
	Spender common.Address

	// UpdatedUserLockedBalance / UpdatedUserBalance
	User common.Address

	// OrderFilled / OrderCancelled
	Maker     common.Address
	OrderHash common.Hash

	// 数值字段：Transfer/Approval 的 value，余额类事件的 balance，
	// 成交/取消事件的数量
	Value *big.Int

	Raw ethtypes.Log
}

// Decoder ABI 事件解码器
// 数值类型解码为 *big.Int，地址与哈希保持原生类型。
type Decoder struct {
	eventsABI abi.ABI
	byTopic   map[common.Hash]string
}

// NewDecoder 创建事件解码器
func NewDecoder() (*Decoder, error) {
	eventsABI, err := abi.JSON(strings.NewReader(EventsABI))
	if err != nil {
		return nil, fmt.Errorf("解析事件 ABI 失败: %w", err)
	}

	byTopic := make(map[common.Hash]string, len(eventsABI.Events))
	for name, ev := range eventsABI.Events {
		byTopic[ev.ID] = name
	}

	return &Decoder{eventsABI: eventsABI, byTopic: byTopic}, nil
}

// Decode 解码单条日志
// 无法识别的 topic 返回 KindUnknown，不报错；
// 已识别但数据损坏的日志返回错误。
func (d *Decoder) Decode(log ethtypes.Log, removed bool) (*DecodedEvent, error) {
	ev := &DecodedEvent{
		Kind:    KindUnknown,
		Address: log.Address,
		Removed: removed,
		Raw:     log,
	}

	if len(log.Topics) == 0 {
		return ev, nil
	}

	name, ok := d.byTopic[log.Topics[0]]
	if !ok {
		return ev, nil
	}

	values, err := d.eventsABI.Unpack(name, log.Data)
	if err != nil {
		return nil, fmt.Errorf("解码 %s 事件数据失败: %w", name, err)
	}

	switch name {
	case "Transfer":
		if len(log.Topics) < 3 || len(values) < 1 {
			return nil, fmt.Errorf("Transfer 事件字段不完整")
		}
		ev.Kind = KindTransfer
		ev.From = common.BytesToAddress(log.Topics[1].Bytes())
		ev.To = common.BytesToAddress(log.Topics[2].Bytes())
		ev.Value = values[0].(*big.Int)

	case "Approval":
		if len(log.Topics) < 3 || len(values) < 1 {
			return nil, fmt.Errorf("Approval 事件字段不完整")
		}
		ev.Kind = KindApproval
		ev.Owner = common.BytesToAddress(log.Topics[1].Bytes())
		ev.Spender = common.BytesToAddress(log.Topics[2].Bytes())
		ev.Value = values[0].(*big.Int)

	case "UpdatedUserLockedBalance":
		if len(log.Topics) < 2 || len(values) < 1 {
			return nil, fmt.Errorf("UpdatedUserLockedBalance 事件字段不完整")
		}
		ev.Kind = KindLockedBalance
		ev.User = common.BytesToAddress(log.Topics[1].Bytes())
		ev.Value = values[0].(*big.Int)

	case "OrderFilled":
		if len(log.Topics) < 2 || len(values) < 3 {
			return nil, fmt.Errorf("OrderFilled 事件字段不完整")
		}
		ev.Kind = KindOrderFilled
		ev.Maker = common.BytesToAddress(log.Topics[1].Bytes())
		ev.To = values[0].(common.Address)
		ev.Value = values[1].(*big.Int)
		ev.OrderHash = common.Hash(values[2].([32]byte))

	case "OrderCancelled":
		if len(log.Topics) < 2 || len(values) < 2 {
			return nil, fmt.Errorf("OrderCancelled 事件字段不完整")
		}
		ev.Kind = KindOrderCancelled
		ev.Maker = common.BytesToAddress(log.Topics[1].Bytes())
		ev.Value = values[0].(*big.Int)
		ev.OrderHash = common.Hash(values[1].([32]byte))

	case "UpdatedUserBalance":
		if len(log.Topics) < 2 || len(values) < 1 {
			return nil, fmt.Errorf("UpdatedUserBalance 事件字段不完整")
		}
		ev.Kind = KindPoolBalance
		ev.User = common.BytesToAddress(log.Topics[1].Bytes())
		ev.Value = values[0].(*big.Int)
	}

	return ev, nil
}
