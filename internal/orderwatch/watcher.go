package orderwatch

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/orderwatch/clob/signing"
	"github.com/betbot/orderwatch/clob/types"
	"github.com/betbot/orderwatch/internal/chain"
	watchloop "github.com/betbot/orderwatch/internal/common"
	"github.com/betbot/orderwatch/internal/eventwatch"
	"github.com/betbot/orderwatch/internal/expiration"
	"github.com/betbot/orderwatch/internal/orderstate"
	"github.com/betbot/orderwatch/internal/store"
)

var log = logrus.WithField("component", "orderwatch")

// DefaultCleanupInterval 默认全量清理间隔
// 即使没有对应事件，也以此周期兜底重算所有订单，限制陈旧度。
const DefaultCleanupInterval = time.Hour

var (
	// ErrSubscriptionAlreadyPresent 已存在订阅时再次订阅
	ErrSubscriptionAlreadyPresent = errors.New("orderwatch: 已存在订阅")
	// ErrSubscriptionNotFound 没有活跃订阅时退订
	ErrSubscriptionNotFound = errors.New("orderwatch: 没有活跃订阅")
	// ErrNilCallback 回调为空
	ErrNilCallback = errors.New("orderwatch: 回调不能为空")
	// ErrInvalidSignature 订单签名与 maker 不符
	ErrInvalidSignature = errors.New("orderwatch: 订单签名无效")
)

// Callback 外部订阅者回调：状态变更或终止性错误，二选一
type Callback func(state *orderstate.OrderState, err error)

// Subscription 订阅凭据（单订阅者约束下的显式句柄）
type Subscription struct {
	ID uuid.UUID
}

// Config 编排器配置
type Config struct {
	// ChainID 订单哈希域所属链
	ChainID *big.Int

	// Query 日志过滤范围，FromBlock/ToBlock 为 nil 表示 latest
	Query ethereum.FilterQuery

	// EventPollInterval 日志轮询间隔（默认 200ms）
	EventPollInterval time.Duration

	// ExpirationCheckInterval 过期扫描间隔
	ExpirationCheckInterval time.Duration

	// ExpirationMargin 过期提前触发量
	ExpirationMargin time.Duration

	// CleanupInterval 全量清理间隔（默认 1 小时）
	CleanupInterval time.Duration
}

// Watcher 订单状态监视编排器
//
// 独占持有监视订单集合与依赖索引；与状态计算引擎共享缓存层
// （引擎只读穿透，失效只发生在这里的事件回调中）。
// 每个订单的状态机：未监视 → 监视中 → (失效移除|过期移除|显式移除)，
// 移除后不复活，需要重新 AddOrder。
type Watcher struct {
	chainID         *big.Int
	caller          chain.Caller
	stores          *store.Stores
	utils           *orderstate.Utils
	decoder         *chain.Decoder
	events          *eventwatch.Watcher
	expirations     *expiration.Watcher
	cleanupInterval time.Duration

	mu            sync.Mutex
	orders        map[common.Hash]*types.SignedOrder
	orderAddrs    map[common.Hash]store.ContractAddresses
	lastStates    map[common.Hash]*orderstate.OrderState
	deps          *depIndex
	sub           *Subscription
	cb            Callback
	ctx           context.Context
	cleanupCancel context.CancelFunc
}

// New 创建编排器
// 缓存层、状态引擎与两个子监视器都由这里装配，每个实例自持全套
// 存储，没有进程级单例。
func New(cfg Config, caller chain.Caller, source chain.LogSource) (*Watcher, error) {
	decoder, err := chain.NewDecoder()
	if err != nil {
		return nil, err
	}

	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	stores := store.NewStores(caller)
	return &Watcher{
		chainID:         cfg.ChainID,
		caller:          caller,
		stores:          stores,
		utils:           orderstate.NewUtils(cfg.ChainID, caller, stores),
		decoder:         decoder,
		events:          eventwatch.New(source, cfg.Query, cfg.EventPollInterval),
		expirations:     expiration.New(cfg.ExpirationCheckInterval, cfg.ExpirationMargin),
		cleanupInterval: cfg.CleanupInterval,
		orders:          make(map[common.Hash]*types.SignedOrder),
		orderAddrs:      make(map[common.Hash]store.ContractAddresses),
		lastStates:      make(map[common.Hash]*orderstate.OrderState),
		deps:            newDepIndex(),
	}, nil
}

// Stores 暴露共享缓存层（测试与诊断用）
func (w *Watcher) Stores() *store.Stores {
	return w.stores
}

// AddOrder 校验签名并开始监视订单
//
// 签名不匹配返回 ErrInvalidSignature。成功后订单进入监视集合，
// 三个相关地址（手续费代币、抵押品代币、抵押品池）登记进依赖
// 索引，过期时间交给过期监视器。
func (w *Watcher) AddOrder(ctx context.Context, signedOrder *types.SignedOrder) (common.Hash, error) {
	orderHash, err := signing.OrderHash(w.chainID, &signedOrder.Order)
	if err != nil {
		return common.Hash{}, err
	}

	ok, err := signing.VerifySignature(orderHash, signedOrder.Signature, signedOrder.Maker)
	if err != nil || !ok {
		return common.Hash{}, ErrInvalidSignature
	}

	// 地址解析是网络调用，放在锁外
	addrs, err := w.stores.Address.Get(ctx, signedOrder.ContractAddress)
	if err != nil {
		return common.Hash{}, err
	}

	w.mu.Lock()
	w.orders[orderHash] = signedOrder
	w.orderAddrs[orderHash] = addrs
	w.deps.add(signedOrder.Maker, addrs.FeeToken, orderHash)
	w.deps.add(signedOrder.Maker, addrs.CollateralToken, orderHash)
	w.deps.add(signedOrder.Maker, addrs.CollateralPool, orderHash)
	w.mu.Unlock()

	w.expirations.AddOrder(orderHash, signedOrder.ExpirationUnixMs())

	log.WithFields(logrus.Fields{
		"orderHash": orderHash.Hex(),
		"maker":     signedOrder.Maker.Hex(),
	}).Debug("订单加入监视")
	return orderHash, nil
}

// RemoveOrder 停止监视订单
// 未知哈希是成功的空操作（保持清理幂等），不是错误。
func (w *Watcher) RemoveOrder(orderHash common.Hash) {
	w.mu.Lock()
	removed := w.removeLocked(orderHash)
	w.mu.Unlock()

	if removed {
		w.expirations.RemoveOrder(orderHash)
		log.WithField("orderHash", orderHash.Hex()).Debug("订单移出监视")
	}
}

// removeLocked 从监视集合、状态缓存与依赖索引三个维度撤销订单
// 调用方必须持有 w.mu。
func (w *Watcher) removeLocked(orderHash common.Hash) bool {
	signedOrder, ok := w.orders[orderHash]
	if !ok {
		return false
	}
	addrs := w.orderAddrs[orderHash]

	delete(w.orders, orderHash)
	delete(w.orderAddrs, orderHash)
	delete(w.lastStates, orderHash)
	w.deps.remove(signedOrder.Maker, addrs.FeeToken, orderHash)
	w.deps.remove(signedOrder.Maker, addrs.CollateralToken, orderHash)
	w.deps.remove(signedOrder.Maker, addrs.CollateralPool, orderHash)
	return true
}

// Subscribe 注册唯一外部回调，接通两个子监视器并启动清理任务
func (w *Watcher) Subscribe(ctx context.Context, cb Callback) (*Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}

	w.mu.Lock()
	if w.sub != nil {
		w.mu.Unlock()
		return nil, ErrSubscriptionAlreadyPresent
	}
	sub := &Subscription{ID: uuid.New()}
	w.sub = sub
	w.cb = cb
	w.ctx = ctx
	w.mu.Unlock()

	if err := w.events.Subscribe(ctx, w.handleLogEvent); err != nil {
		w.mu.Lock()
		w.sub = nil
		w.cb = nil
		w.mu.Unlock()
		return nil, err
	}
	if err := w.expirations.Subscribe(ctx, w.handleExpiration); err != nil {
		w.events.Unsubscribe()
		w.mu.Lock()
		w.sub = nil
		w.cb = nil
		w.mu.Unlock()
		return nil, err
	}

	w.mu.Lock()
	w.cleanupCancel = watchloop.StartTickerLoop(ctx, w.cleanupInterval, w.cleanupOnce)
	w.mu.Unlock()

	log.WithField("subscription", sub.ID.String()).Info("订阅建立")
	return sub, nil
}

// Unsubscribe 拆除订阅与全部子监视器
// 没有活跃订阅时返回 ErrSubscriptionNotFound。
func (w *Watcher) Unsubscribe() error {
	w.mu.Lock()
	if w.sub == nil {
		w.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	sub := w.sub
	cancel := w.cleanupCancel
	w.sub = nil
	w.cb = nil
	w.cleanupCancel = nil
	w.mu.Unlock()

	w.events.Unsubscribe()
	w.expirations.Unsubscribe()
	if cancel != nil {
		cancel()
	}

	log.WithField("subscription", sub.ID.String()).Info("订阅拆除")
	return nil
}

// WatchedCount 当前监视订单数
func (w *Watcher) WatchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.orders)
}

// Subscribed 是否有活跃订阅
func (w *Watcher) Subscribed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub != nil
}

// OrderSummary 订单概览（状态服务用）
type OrderSummary struct {
	OrderHash common.Hash
	Maker     common.Address
	HasState  bool
	Valid     bool
	Reason    string
}

// Snapshot 全部监视订单的概览
func (w *Watcher) Snapshot() []OrderSummary {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]OrderSummary, 0, len(w.orders))
	for hash, so := range w.orders {
		summary := OrderSummary{OrderHash: hash, Maker: so.Maker}
		if state, ok := w.lastStates[hash]; ok {
			summary.HasState = true
			summary.Valid = state.Valid
			summary.Reason = state.Reason.String()
		}
		out = append(out, summary)
	}
	return out
}

// handleLogEvent 事件监视器回调：按事件类型失效缓存并重算受影响订单
func (w *Watcher) handleLogEvent(event *eventwatch.LogEvent, err error) {
	if err != nil {
		w.failSubscription(err)
		return
	}

	decoded, derr := w.decoder.Decode(event.Log, event.Removed)
	if derr != nil {
		// 损坏的日志（如同名 topic 但布局不同的第三方事件）不终止订阅
		log.WithError(derr).Warn("日志解码失败，跳过")
		return
	}

	var affected []common.Hash

	w.mu.Lock()
	switch decoded.Kind {
	case chain.KindApproval:
		w.stores.Allowance.Delete(store.AllowanceKey{
			Token:   decoded.Address,
			Owner:   decoded.Owner,
			Spender: decoded.Spender,
		})
		affected = w.deps.get(decoded.Owner, decoded.Address)

	case chain.KindTransfer:
		w.stores.Balance.Delete(store.BalanceKey{Token: decoded.Address, Owner: decoded.From})
		w.stores.Balance.Delete(store.BalanceKey{Token: decoded.Address, Owner: decoded.To})
		// 只重算发送方的订单：余额增加不会使订单变为无效
		affected = w.deps.get(decoded.From, decoded.Address)

	case chain.KindLockedBalance:
		w.stores.Balance.Delete(store.BalanceKey{Token: decoded.Address, Owner: decoded.User})
		affected = w.deps.get(decoded.User, decoded.Address)

	case chain.KindOrderFilled, chain.KindOrderCancelled:
		w.stores.Fill.Delete(store.FillKey{Contract: decoded.Address, OrderHash: decoded.OrderHash})
		if _, ok := w.orders[decoded.OrderHash]; ok {
			affected = []common.Hash{decoded.OrderHash}
		}

	case chain.KindPoolBalance:
		w.stores.Collateral.Delete(store.CollateralKey{Pool: decoded.Address, User: decoded.User})
		affected = w.deps.get(decoded.User, decoded.Address)

	default:
		// 无法识别的事件：忽略，不是错误
	}
	w.mu.Unlock()

	if len(affected) > 0 {
		w.revalidate(affected)
	}
}

// handleExpiration 过期监视器回调：移除并无条件通知 OrderExpired
// 不走常规的重算/变更抑制路径。
func (w *Watcher) handleExpiration(orderHash common.Hash) {
	w.mu.Lock()
	removed := w.removeLocked(orderHash)
	cb := w.cb
	w.mu.Unlock()

	if !removed || cb == nil {
		return
	}
	cb(orderstate.NewInvalid(orderHash, orderstate.ReasonOrderExpired), nil)
}

// cleanupOnce 周期性全量清理：无条件清掉每个订单的全部缓存条目并强制重算
// 地址解析缓存不清（合约关联地址部署后不变）。
func (w *Watcher) cleanupOnce(ctx context.Context) bool {
	w.mu.Lock()
	hashes := make([]common.Hash, 0, len(w.orders))
	for hash, so := range w.orders {
		addrs := w.orderAddrs[hash]
		w.stores.Balance.Delete(store.BalanceKey{Token: addrs.FeeToken, Owner: so.Maker})
		w.stores.Balance.Delete(store.BalanceKey{Token: addrs.CollateralToken, Owner: so.Maker})
		w.stores.Allowance.Delete(store.AllowanceKey{
			Token:   addrs.FeeToken,
			Owner:   so.Maker,
			Spender: so.ContractAddress,
		})
		w.stores.Collateral.Delete(store.CollateralKey{Pool: addrs.CollateralPool, User: so.Maker})
		w.stores.Fill.Delete(store.FillKey{Contract: so.ContractAddress, OrderHash: hash})
		hashes = append(hashes, hash)
	}
	w.mu.Unlock()

	if len(hashes) > 0 {
		log.WithField("orders", len(hashes)).Debug("周期清理触发全量重算")
		w.revalidate(hashes)
	}
	return true
}

// revalidate 重算一批订单的状态，只在与上次发出的状态不同时通知
func (w *Watcher) revalidate(hashes []common.Hash) {
	for _, hash := range hashes {
		w.mu.Lock()
		signedOrder, ok := w.orders[hash]
		ctx := w.ctx
		w.mu.Unlock()
		if !ok {
			continue
		}
		if ctx == nil {
			ctx = context.Background()
		}

		state, err := w.utils.GetOrderState(ctx, signedOrder)
		if err != nil {
			w.failSubscription(err)
			return
		}

		w.mu.Lock()
		last := w.lastStates[hash]
		changed := !state.Equal(last)
		if changed {
			w.lastStates[hash] = state
		}
		cb := w.cb
		w.mu.Unlock()

		if changed && cb != nil {
			cb(state, nil)
		}
	}
}

// failSubscription 基础设施错误：拆除所有子监视器，把错误上报一次
// 不自动重连，由调用方决定是否重新订阅。
func (w *Watcher) failSubscription(err error) {
	w.mu.Lock()
	if w.sub == nil {
		w.mu.Unlock()
		return
	}
	cb := w.cb
	cancel := w.cleanupCancel
	w.sub = nil
	w.cb = nil
	w.cleanupCancel = nil
	w.mu.Unlock()

	w.events.Unsubscribe()
	w.expirations.Unsubscribe()
	if cancel != nil {
		cancel()
	}

	log.WithError(err).Error("订阅因基础设施错误终止")
	if cb != nil {
		cb(nil, err)
	}
}
