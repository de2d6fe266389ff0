// Package statusapi 提供循环运行状态的只读 HTTP 接口
// 读到的 totals 始终是一轮结算完成后的一致性快照
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mybian/rwbot/internal/engine"
	"github.com/mybian/rwbot/internal/history"
	"github.com/mybian/rwbot/pkg/logger"
)

// Server 状态接口服务
type Server struct {
	eng  *engine.Engine
	hist *history.Store
	srv  *http.Server
}

// New 创建状态接口服务；hist 可以为 nil（未启用历史库时）
func New(addr string, eng *engine.Engine, hist *history.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		eng:  eng,
		hist: hist,
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/api/status", s.handleStatus)
	router.GET("/api/history", s.handleHistory)
	return s
}

// Start 启动服务（非阻塞）
func (s *Server) Start() {
	go func() {
		logger.Infof("状态接口监听 %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("状态接口异常退出: %v", err)
		}
	}()
}

// Shutdown 关闭服务
func (s *Server) Shutdown(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	snapshot := s.eng.Snapshot()

	resp := gin.H{
		"account_id":     snapshot.AccountID,
		"state":          snapshot.State,
		"phase":          snapshot.Phase,
		"started_at":     snapshot.StartedAt,
		"total_cycles":   snapshot.TotalCycles,
		"total_operated": snapshot.TotalOperated,
		"total_profit":   snapshot.TotalProfit,
	}
	// 没有任何结算时利润率无定义，返回 null 而不是 0
	if rate, ok := snapshot.AvgProfitRate(); ok {
		resp["avg_profit_rate"] = rate
	} else {
		resp["avg_profit_rate"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.hist == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "历史库未启用"})
		return
	}
	snapshot := s.eng.Snapshot()
	summary, err := s.hist.Summarize(snapshot.AccountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
