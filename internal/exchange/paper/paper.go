// Package paper 提供纸交易客户端：不触达真实交易所，在本地模拟报价与结算
// 用于 -dry-run 演练配置与流程
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mybian/rwbot/internal/exchange"
)

var log = logrus.WithField("module", "paper")

// Client 模拟交易所客户端
// 按固定参考价立即结算，利润 = amount * (price - 1)
type Client struct {
	mu     sync.Mutex
	price  decimal.Decimal
	orders map[string]*exchange.Settlement
	seq    int
}

// New 创建纸交易客户端，price 为固定参考价
func New(price decimal.Decimal) *Client {
	return &Client{
		price:  price,
		orders: make(map[string]*exchange.Settlement),
	}
}

// SetPrice 调整模拟参考价
func (c *Client) SetPrice(price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = price
}

func (c *Client) ReferencePrice(ctx context.Context, pair exchange.Pair) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.price, nil
}

func (c *Client) FreeAllowance(ctx context.Context, pair exchange.Pair) (bool, error) {
	// 纸交易永远有免费额度，让盈利闸门生效
	return true, nil
}

func (c *Client) SubmitConversion(ctx context.Context, pair exchange.Pair, amount decimal.Decimal) (*exchange.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	orderID := fmt.Sprintf("paper-%d", c.seq)
	profit := amount.Mul(c.price.Sub(decimal.NewFromInt(1)))

	c.orders[orderID] = &exchange.Settlement{
		OrderID:        orderID,
		Status:         exchange.StatusSuccess,
		FromAmount:     amount,
		ToAmount:       amount.Add(profit),
		Price:          c.price,
		RealizedProfit: profit,
		SettledAt:      time.Now(),
	}

	log.Infof("[纸交易] 提交转换 %s: %s %s -> %s，价格 %s", orderID, amount, pair.From, pair.To, c.price)
	return &exchange.Order{
		ID:        orderID,
		ClientID:  uuid.NewString(),
		Pair:      pair,
		Amount:    amount,
		CreatedAt: time.Now(),
	}, nil
}

func (c *Client) AwaitSettlement(ctx context.Context, order *exchange.Order) (*exchange.Settlement, error) {
	return c.QueryOrder(ctx, order.ID)
}

func (c *Client) QueryOrder(ctx context.Context, orderID string) (*exchange.Settlement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	settlement, ok := c.orders[orderID]
	if !ok {
		return nil, exchange.Fatalf("未知订单: %s", orderID)
	}
	return settlement, nil
}
