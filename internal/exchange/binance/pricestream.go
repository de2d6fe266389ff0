package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/mybian/rwbot/pkg/sigchan"
)

const (
	wsBaseURL = "wss://stream.binance.com:9443/ws"
	// 推送价超过该时长未更新视为过期，退回 REST 查询
	priceStaleAfter = 10 * time.Second
	pingInterval    = 3 * time.Minute
	reconnectWait   = 5 * time.Second
)

// bookTickerEvent bookTicker 推送消息
type bookTickerEvent struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// PriceStream 维护单个交易对的最优买卖价推送
// 连接断开后自动重连；消费方拿不到新鲜价时自行退回 REST
type PriceStream struct {
	proxy string

	mu        sync.RWMutex
	price     decimal.Decimal
	updatedAt time.Time
	running   bool

	updated *sigchan.Chan
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewPriceStream 创建行情推送客户端
func NewPriceStream(proxy string) *PriceStream {
	return &PriceStream{
		proxy:   proxy,
		updated: sigchan.New(1),
	}
}

// Start 连接行情推送并在后台维持
func (s *PriceStream) Start(ctx context.Context, symbol string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	endpoint := wsBaseURL + "/" + strings.ToLower(symbol) + "@bookTicker"
	go s.runLoop(streamCtx, endpoint)

	log.Infof("行情推送已启动: %s", endpoint)
	return nil
}

// Stop 关闭行情推送
func (s *PriceStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.doneCh
}

// Price 返回最新参考价（买一卖一中间价）；价格过期时 ok 为 false
func (s *PriceStream) Price() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updatedAt.IsZero() || time.Since(s.updatedAt) > priceStaleAfter {
		return decimal.Zero, false
	}
	return s.price, true
}

// Updated 返回价格更新信号 channel
func (s *PriceStream) Updated() <-chan struct{} {
	return s.updated.C()
}

// runLoop 连接-读取-重连循环
func (s *PriceStream) runLoop(ctx context.Context, endpoint string) {
	defer close(s.doneCh)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx, endpoint)
		if err != nil {
			log.Warnf("行情连接失败，%s 后重连: %v", reconnectWait, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectWait):
			}
			continue
		}

		s.readLoop(ctx, conn)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warnf("行情连接断开，%s 后重连", reconnectWait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectWait):
		}
	}
}

func (s *PriceStream) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if s.proxy != "" {
		proxyURL, err := url.Parse(s.proxy)
		if err == nil {
			dialer.Proxy = http.ProxyURL(proxyURL)
		}
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	return conn, err
}

// readLoop 读取推送直到连接出错或 ctx 取消
func (s *PriceStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Binance 会主动发 ping，这里回 pong 即可；再加一个保活定时器
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopPing:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event bookTickerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		bid, errB := decimal.NewFromString(event.BidPrice)
		ask, errA := decimal.NewFromString(event.AskPrice)
		if errB != nil || errA != nil {
			continue
		}

		// 取中间价作为参考价
		mid := bid.Add(ask).Div(decimal.NewFromInt(2))

		s.mu.Lock()
		s.price = mid
		s.updatedAt = time.Now()
		s.mu.Unlock()

		s.updated.Emit()
	}
}
