package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betbot/orderwatch/internal/orderwatch"
)

// StatusServer 监视器状态查询服务
// 只读诊断面：监视订单数、订阅健康度、每单最近一次发出的状态。
type StatusServer struct {
	watcher *orderwatch.Watcher
}

// NewStatusServer 创建状态服务
func NewStatusServer(watcher *orderwatch.Watcher) *StatusServer {
	return &StatusServer{watcher: watcher}
}

type statusResponse struct {
	Subscribed   bool `json:"subscribed"`
	WatchedCount int  `json:"watchedCount"`
}

type orderResponse struct {
	OrderHash string `json:"orderHash"`
	Maker     string `json:"maker"`
	HasState  bool   `json:"hasState"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// Router 组装路由
func (s *StatusServer) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/status", s.handleStatus)
	r.GET("/orders", s.handleOrders)

	return r
}

func (s *StatusServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Subscribed:   s.watcher.Subscribed(),
		WatchedCount: s.watcher.WatchedCount(),
	})
}

func (s *StatusServer) handleOrders(c *gin.Context) {
	snapshot := s.watcher.Snapshot()
	orders := make([]orderResponse, 0, len(snapshot))
	for _, summary := range snapshot {
		resp := orderResponse{
			OrderHash: summary.OrderHash.Hex(),
			Maker:     summary.Maker.Hex(),
			HasState:  summary.HasState,
			Valid:     summary.Valid,
		}
		if summary.HasState && !summary.Valid {
			resp.Reason = summary.Reason
		}
		orders = append(orders, resp)
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
