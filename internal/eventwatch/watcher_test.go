package eventwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource 按脚本返回日志批次，最后一批之后重复返回
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]ethtypes.Log
	errs    []error
	calls   int
}

func (s *scriptedSource) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.batches[i], nil
}

func makeLog(n byte, blockNumber uint64) ethtypes.Log {
	return ethtypes.Log{
		Address:     common.BytesToAddress([]byte{n}),
		Topics:      []common.Hash{common.BytesToHash([]byte{n})},
		BlockNumber: blockNumber,
		TxHash:      common.BytesToHash([]byte{n, n}),
		Index:       uint(n),
	}
}

// collector 线程安全地收集回调事件
type collector struct {
	mu     sync.Mutex
	events []*LogEvent
	errs   []error
}

func (c *collector) callback(ev *LogEvent, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errs = append(c.errs, err)
		return
	}
	c.events = append(c.events, ev)
}

func (c *collector) snapshot() ([]*LogEvent, []error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*LogEvent(nil), c.events...), append([]error(nil), c.errs...)
}

func TestWatcher_AddedThenRemoved(t *testing.T) {
	a, b, cLog := makeLog(1, 10), makeLog(2, 10), makeLog(3, 11)
	src := &scriptedSource{batches: [][]ethtypes.Log{
		{a, b},
		{a, b, cLog},
		{b, cLog},
	}}

	w := New(src, ethereum.FilterQuery{}, 5*time.Millisecond)
	col := &collector{}
	require.NoError(t, w.Subscribe(context.Background(), col.callback))
	defer w.Unsubscribe()

	require.Eventually(t, func() bool {
		events, _ := col.snapshot()
		return len(events) >= 4
	}, time.Second, 5*time.Millisecond)

	events, errs := col.snapshot()
	assert.Empty(t, errs)

	// 前两条：首轮全部视为新增
	assert.False(t, events[0].Removed)
	assert.Equal(t, a.Address, events[0].Log.Address)
	assert.False(t, events[1].Removed)
	assert.Equal(t, b.Address, events[1].Log.Address)
	// 第二轮新增 c
	assert.False(t, events[2].Removed)
	assert.Equal(t, cLog.Address, events[2].Log.Address)
	// 第三轮 a 被重组移除
	assert.True(t, events[3].Removed)
	assert.Equal(t, a.Address, events[3].Log.Address)
}

func TestWatcher_RemovalsEmittedBeforeAdditions(t *testing.T) {
	a, b, cLog := makeLog(1, 10), makeLog(2, 10), makeLog(3, 11)
	src := &scriptedSource{batches: [][]ethtypes.Log{
		{a, b},
		{cLog},
	}}

	w := New(src, ethereum.FilterQuery{}, 5*time.Millisecond)
	col := &collector{}
	require.NoError(t, w.Subscribe(context.Background(), col.callback))
	defer w.Unsubscribe()

	require.Eventually(t, func() bool {
		events, _ := col.snapshot()
		return len(events) >= 5
	}, time.Second, 5*time.Millisecond)

	events, _ := col.snapshot()
	// 第二轮：先移除 a、b（保持原顺序），再新增 c
	assert.True(t, events[2].Removed)
	assert.Equal(t, a.Address, events[2].Log.Address)
	assert.True(t, events[3].Removed)
	assert.Equal(t, b.Address, events[3].Log.Address)
	assert.False(t, events[4].Removed)
	assert.Equal(t, cLog.Address, events[4].Log.Address)
}

func TestWatcher_EmptyFetchIgnored(t *testing.T) {
	a, b := makeLog(1, 10), makeLog(2, 10)
	src := &scriptedSource{batches: [][]ethtypes.Log{
		{a, b},
		{}, // 瞬时空结果：必须整体忽略
		{a, b},
	}}

	w := New(src, ethereum.FilterQuery{}, 5*time.Millisecond)
	col := &collector{}
	require.NoError(t, w.Subscribe(context.Background(), col.callback))
	defer w.Unsubscribe()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 4
	}, time.Second, 5*time.Millisecond)

	events, errs := col.snapshot()
	assert.Empty(t, errs)
	// 只有首轮的两条新增，空结果没有造成任何 removed 抖动
	require.Len(t, events, 2)
	assert.False(t, events[0].Removed)
	assert.False(t, events[1].Removed)
}

func TestWatcher_FetchErrorUnsubscribes(t *testing.T) {
	a := makeLog(1, 10)
	wantErr := errors.New("node unavailable")
	src := &scriptedSource{
		batches: [][]ethtypes.Log{{a}, {a}},
		errs:    []error{nil, wantErr},
	}

	w := New(src, ethereum.FilterQuery{}, 5*time.Millisecond)
	col := &collector{}
	require.NoError(t, w.Subscribe(context.Background(), col.callback))

	require.Eventually(t, func() bool {
		_, errs := col.snapshot()
		return len(errs) == 1
	}, time.Second, 5*time.Millisecond)

	_, errs := col.snapshot()
	assert.ErrorIs(t, errs[0], wantErr)

	// 已自动退订，可重新订阅
	require.NoError(t, w.Subscribe(context.Background(), col.callback))
	w.Unsubscribe()
}

func TestWatcher_SingleCallbackDiscipline(t *testing.T) {
	src := &scriptedSource{batches: [][]ethtypes.Log{{}}}
	w := New(src, ethereum.FilterQuery{}, time.Hour)

	assert.ErrorIs(t, w.Subscribe(context.Background(), nil), ErrNilCallback)

	require.NoError(t, w.Subscribe(context.Background(), func(*LogEvent, error) {}))
	assert.ErrorIs(t, w.Subscribe(context.Background(), func(*LogEvent, error) {}), ErrSubscriptionAlreadyPresent)

	w.Unsubscribe()
	// 退订后可再次订阅
	require.NoError(t, w.Subscribe(context.Background(), func(*LogEvent, error) {}))
	w.Unsubscribe()
}

func TestWatcher_UnsubscribeWithoutSubscribe(t *testing.T) {
	w := New(&scriptedSource{batches: [][]ethtypes.Log{{}}}, ethereum.FilterQuery{}, time.Hour)
	// 从未订阅时退订不应 panic
	w.Unsubscribe()
}
