package expiration

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/btree"

	watchloop "github.com/betbot/orderwatch/internal/common"
)

var log = logrus.WithField("component", "expiration")

// DefaultCheckInterval 默认过期扫描间隔
const DefaultCheckInterval = 500 * time.Millisecond

var (
	// ErrSubscriptionAlreadyPresent 已存在回调时再次订阅
	ErrSubscriptionAlreadyPresent = errors.New("expiration: 已存在订阅")
	// ErrNilCallback 回调为空
	ErrNilCallback = errors.New("expiration: 回调不能为空")
)

// Callback 订单过期通知（每个订单恰好一次）
type Callback func(orderHash common.Hash)

// item 按 (过期时间, 订单哈希) 排序的树节点
type item struct {
	expMs int64
	hash  common.Hash
}

func lessItem(a, b item) bool {
	if a.expMs != b.expMs {
		return a.expMs < b.expMs
	}
	return bytes.Compare(a.hash[:], b.hash[:]) < 0
}

// Watcher 过期监视器
//
// 维护按过期时间排序的订单集合，定时扫描并对每个到期订单
// 恰好发出一次通知，随后不再跟踪。Margin 从名义过期时间中
// 扣除，用于提前触发。实际从订单集合移除订单由编排器负责。
type Watcher struct {
	interval time.Duration
	margin   time.Duration
	now      func() time.Time

	mu     sync.Mutex
	tree   *btree.BTreeG[item]
	byHash map[common.Hash]int64
	cb     Callback
	cancel context.CancelFunc
}

// New 创建过期监视器
// margin 为提前触发量，interval <= 0 时使用默认扫描间隔。
func New(interval, margin time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Watcher{
		interval: interval,
		margin:   margin,
		now:      time.Now,
		tree:     btree.NewBTreeG(lessItem),
		byHash:   make(map[common.Hash]int64),
	}
}

// AddOrder 跟踪订单的过期时间（毫秒时间戳）
// 同一哈希重复添加时以最新时间为准。
func (w *Watcher) AddOrder(orderHash common.Hash, expirationUnixMs int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.byHash[orderHash]; ok {
		w.tree.Delete(item{expMs: old, hash: orderHash})
	}
	w.byHash[orderHash] = expirationUnixMs
	w.tree.Set(item{expMs: expirationUnixMs, hash: orderHash})
}

// RemoveOrder 停止跟踪订单，返回是否存在
func (w *Watcher) RemoveOrder(orderHash common.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	expMs, ok := w.byHash[orderHash]
	if !ok {
		return false
	}
	delete(w.byHash, orderHash)
	w.tree.Delete(item{expMs: expMs, hash: orderHash})
	return true
}

// Len 当前跟踪的订单数
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byHash)
}

// Subscribe 注册唯一回调并开始定时扫描
func (w *Watcher) Subscribe(ctx context.Context, cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cb != nil {
		return ErrSubscriptionAlreadyPresent
	}

	w.cb = cb
	w.cancel = watchloop.StartTickerLoop(ctx, w.interval, w.checkOnce)
	return nil
}

// Unsubscribe 停止扫描
// 从未订阅时调用也是安全的。
func (w *Watcher) Unsubscribe() {
	w.mu.Lock()
	cancel := w.cancel
	w.cb = nil
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// checkOnce 扫描一轮：弹出所有有效过期时间已过的订单并通知
func (w *Watcher) checkOnce(ctx context.Context) bool {
	nowMs := w.now().UnixMilli()
	marginMs := w.margin.Milliseconds()

	var expired []common.Hash
	w.mu.Lock()
	cb := w.cb
	for {
		min, ok := w.tree.Min()
		if !ok || min.expMs-marginMs > nowMs {
			break
		}
		w.tree.PopMin()
		delete(w.byHash, min.hash)
		expired = append(expired, min.hash)
	}
	w.mu.Unlock()

	if cb == nil {
		return false
	}
	for _, h := range expired {
		log.WithField("orderHash", h.Hex()).Debug("订单过期")
		cb(h)
	}
	return true
}
