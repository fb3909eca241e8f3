package relayer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// OrderSink 订单增删的接收方（通常是 orderwatch.Watcher）
type OrderSink interface {
	OrderAdder
	RemoveOrder(orderHash common.Hash)
}

// streamMessage 撮合服务推送的订单事件
type streamMessage struct {
	Type      string        `json:"type"`
	Order     *orderPayload `json:"order,omitempty"`
	OrderHash string        `json:"orderHash,omitempty"`
}

// Stream 链下撮合服务订单流 WebSocket 客户端
// 订单的新增/撤销实时推送给监视器；链上状态仍由监视器自己从节点
// 事件推导，这条流只维护监视集合本身。信号驱动重连。
type Stream struct {
	url  string
	sink OrderSink

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	parent context.Context
	cancel context.CancelFunc

	reconnectC     chan struct{}
	reconnectDelay time.Duration

	wg sync.WaitGroup
}

// NewStream 创建订单流客户端
func NewStream(url string, sink OrderSink) *Stream {
	return &Stream{
		url:            url,
		sink:           sink,
		reconnectC:     make(chan struct{}, 1),
		reconnectDelay: 5 * time.Second,
	}
}

// Connect 建立连接并启动读取与重连循环
// 拨号失败时不动现有状态，调用方可以直接重试。
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.parent = ctx
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "连接订单流失败")
	}

	// 拨号成功后才拆旧换新
	s.mu.Lock()
	if s.conn != nil && !s.closed {
		s.conn.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.conn = conn
	s.closed = false
	s.cancel = cancel
	s.mu.Unlock()
	ctx = runCtx

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.reconnector(ctx)
	}()

	log.WithField("url", s.url).Info("订单流已连接")
	return nil
}

// Close 关闭连接并等待所有循环退出
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
	return nil
}

// signalReconnect 触发重连，channel 已满时丢弃信号
func (s *Stream) signalReconnect() {
	select {
	case s.reconnectC <- struct{}{}:
	default:
	}
}

func (s *Stream) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reconnectC:
			log.WithField("delay", s.reconnectDelay).Warn("订单流断开，等待重连")
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectDelay):
			}

			s.mu.Lock()
			parent := s.parent
			s.mu.Unlock()

			if err := s.Connect(parent); err != nil {
				log.WithError(err).Warn("订单流重连失败，将再次尝试")
				s.signalReconnect()
				continue
			}
			// 新连接有自己的重连循环
			return
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		conn := s.conn
		closed := s.closed
		s.mu.Unlock()
		if conn == nil || closed {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.mu.Lock()
			alreadyClosed := s.closed
			s.mu.Unlock()
			if alreadyClosed {
				return
			}
			log.WithError(err).Warn("订单流读取错误")
			s.signalReconnect()
			return
		}

		s.handleMessage(ctx, message)
	}
}

func (s *Stream) handleMessage(ctx context.Context, message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.WithError(err).Debug("订单流消息解析失败，跳过")
		return
	}

	switch msg.Type {
	case "order_added":
		if msg.Order == nil {
			log.Warn("order_added 消息缺少订单体，跳过")
			return
		}
		signed, err := msg.Order.toSignedOrder()
		if err != nil {
			log.WithError(err).Warn("推送订单解析失败，跳过")
			return
		}
		if _, err := s.sink.AddOrder(ctx, signed); err != nil {
			log.WithError(err).WithField("maker", signed.Maker.Hex()).Warn("推送订单被拒")
		}

	case "order_removed":
		if msg.OrderHash == "" {
			log.Warn("order_removed 消息缺少订单哈希，跳过")
			return
		}
		s.sink.RemoveOrder(common.HexToHash(msg.OrderHash))

	default:
		log.WithField("type", msg.Type).Debug("订单流未知消息类型，忽略")
	}
}
