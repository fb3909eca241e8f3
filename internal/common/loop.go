package common

import (
	"context"
	"time"
)

// StartTickerLoop 启动单个 goroutine 的定时循环
//
// 统一各个 watcher 的循环样板：
// - context.WithCancel 生命周期
// - ticker 创建与回收
// - tick 串行语义：run 在循环 goroutine 内同步执行，
//   上一轮未结束不会开始下一轮（错过的 tick 由 time.Ticker 丢弃）
//
// run 返回 false 时循环退出；返回的 CancelFunc 可随时停止循环。
func StartTickerLoop(parent context.Context, interval time.Duration, run func(ctx context.Context) bool) context.CancelFunc {
	loopCtx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if !run(loopCtx) {
					return
				}
			}
		}
	}()
	return cancel
}
