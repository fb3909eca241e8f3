package eventwatch

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/betbot/orderwatch/internal/chain"
	"github.com/betbot/orderwatch/internal/common"
)

var log = logrus.WithField("component", "eventwatch")

// DefaultPollInterval 默认轮询间隔
const DefaultPollInterval = 200 * time.Millisecond

var (
	// ErrSubscriptionAlreadyPresent 已存在回调时再次订阅
	ErrSubscriptionAlreadyPresent = errors.New("eventwatch: 已存在订阅")
	// ErrNilCallback 回调为空
	ErrNilCallback = errors.New("eventwatch: 回调不能为空")
)

// LogEvent 一条日志的增删通知
// Removed 为 true 表示该日志在重组中被移出链。
type LogEvent struct {
	Removed bool
	Log     ethtypes.Log
}

// Callback 单订阅者回调：收到日志事件或一个终止性错误
type Callback func(event *LogEvent, err error)

// Watcher 轮询式日志监听器
//
// 每个 tick 拉取配置区块范围内当前可见的全部日志，
// 与上一轮快照做结构化差分：消失的先以 removed=true 发出（重组），
// 新出现的再以 removed=false 发出，均保持底层日志顺序。
// 同一循环内 tick 串行执行，避免重复处理同一日志或竞争快照更新。
type Watcher struct {
	source   chain.LogSource
	query    ethereum.FilterQuery
	interval time.Duration

	mu       sync.Mutex
	cb       Callback
	lastSeen []ethtypes.Log
	cancel   context.CancelFunc
}

// New 创建日志监听器
// query 的 FromBlock/ToBlock 为 nil 时表示 "latest"。
func New(source chain.LogSource, query ethereum.FilterQuery, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		source:   source,
		query:    query,
		interval: interval,
	}
}

// Subscribe 注册唯一回调并开始轮询
// 已有订阅时返回 ErrSubscriptionAlreadyPresent。
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
	w.cancel = common.StartTickerLoop(ctx, w.interval, w.pollOnce)
	return nil
}

// Unsubscribe 停止轮询并清空瞬时状态
// 从未订阅时调用也是安全的。
func (w *Watcher) Unsubscribe() {
	w.mu.Lock()
	cancel := w.cancel
	w.cb = nil
	w.lastSeen = nil
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// pollOnce 执行一轮拉取与差分
func (w *Watcher) pollOnce(ctx context.Context) bool {
	w.mu.Lock()
	cb := w.cb
	w.mu.Unlock()
	if cb == nil {
		return false
	}

	logs, err := w.source.FilterLogs(ctx, w.query)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// 快速失败：先退订再上报，回调里允许重新订阅
		log.WithError(err).Error("拉取日志失败，终止订阅")
		w.Unsubscribe()
		cb(nil, err)
		return false
	}

	// 节点瞬时返回空结果：既不差分也不更新快照，
	// 否则会把所有已跟踪日志误报为 removed。
	if len(logs) == 0 {
		return true
	}

	w.mu.Lock()
	last := w.lastSeen
	w.mu.Unlock()

	lastKeys := make(map[string]struct{}, len(last))
	for _, l := range last {
		lastKeys[logKey(l)] = struct{}{}
	}
	curKeys := make(map[string]struct{}, len(logs))
	for _, l := range logs {
		curKeys[logKey(l)] = struct{}{}
	}

	var removed, added []ethtypes.Log
	for _, l := range last {
		if _, ok := curKeys[logKey(l)]; !ok {
			removed = append(removed, l)
		}
	}
	for _, l := range logs {
		if _, ok := lastKeys[logKey(l)]; !ok {
			added = append(added, l)
		}
	}

	// 先发移除，再发新增，最后才更新快照
	for _, l := range removed {
		cb(&LogEvent{Removed: true, Log: l}, nil)
	}
	for _, l := range added {
		cb(&LogEvent{Removed: false, Log: l}, nil)
	}

	w.mu.Lock()
	// 期间被退订则丢弃本轮快照
	if w.cb != nil {
		w.lastSeen = logs
	}
	w.mu.Unlock()
	return true
}

// logKey 日志的结构化标识（全字段，值相等即视为同一条）
func logKey(l ethtypes.Log) string {
	var b strings.Builder
	b.WriteString(l.Address.Hex())
	for _, t := range l.Topics {
		b.WriteString(t.Hex())
	}
	b.WriteString(string(l.Data))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(l.BlockNumber, 10))
	b.WriteString(l.TxHash.Hex())
	b.WriteString(strconv.FormatUint(uint64(l.TxIndex), 10))
	b.WriteString(l.BlockHash.Hex())
	b.WriteString(strconv.FormatUint(uint64(l.Index), 10))
	return b.String()
}
