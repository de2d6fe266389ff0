// Package exchange 定义交易所能力接口与订单/结算类型
// 引擎只依赖这里的接口，不关心具体交易所的请求格式与签名方式
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Pair 转换交易对，例如 USDC -> USDT
type Pair struct {
	From string
	To   string
}

// Symbol 返回行情符号，例如 "USDCUSDT"
func (p Pair) Symbol() string {
	return p.From + p.To
}

func (p Pair) String() string {
	return p.From + "/" + p.To
}

// USDCUSDT 默认交易对
var USDCUSDT = Pair{From: "USDC", To: "USDT"}

// OrderStatus 订单状态
type OrderStatus string

const (
	// StatusProcessing 已提交，等待结算
	StatusProcessing OrderStatus = "PROCESS"
	// StatusSuccess 已结算成功
	StatusSuccess OrderStatus = "SUCCESS"
	// StatusFailed 交易所确认失败（未成交，资金未变动）
	StatusFailed OrderStatus = "FAIL"
)

// Order 一笔已提交的转换订单
type Order struct {
	ID        string          // 交易所订单号
	ClientID  string          // 客户端订单号
	Pair      Pair            // 交易对
	Amount    decimal.Decimal // 提交的 From 币种数量
	CreatedAt time.Time       // 提交时间
}

// Settlement 订单的最终结算结果
type Settlement struct {
	OrderID        string          `json:"order_id"`
	Status         OrderStatus     `json:"status"`
	FromAmount     decimal.Decimal `json:"from_amount"`
	ToAmount       decimal.Decimal `json:"to_amount"`
	Price          decimal.Decimal `json:"price"`           // 成交价（To/From）
	RealizedProfit decimal.Decimal `json:"realized_profit"` // ToAmount - FromAmount，以 To 币种计
	SettledAt      time.Time       `json:"settled_at"`
}

// Client 交易所能力接口
// 实现方负责认证、签名、网络传输；所有错误必须用 Transient/Fatal 标注可恢复性
type Client interface {
	// ReferencePrice 查询交易对当前参考价
	ReferencePrice(ctx context.Context, pair Pair) (decimal.Decimal, error)

	// FreeAllowance 查询当前是否存在免手续费的转换额度
	// 额度判定规则是交易所侧的能力，调用方不自行推导
	FreeAllowance(ctx context.Context, pair Pair) (bool, error)

	// SubmitConversion 提交一笔限额内的转换
	SubmitConversion(ctx context.Context, pair Pair, amount decimal.Decimal) (*Order, error)

	// AwaitSettlement 等待订单结算并返回最终结果
	AwaitSettlement(ctx context.Context, order *Order) (*Settlement, error)

	// QueryOrder 按订单号查询实际结果，用于结算状态未知时的对账
	QueryOrder(ctx context.Context, orderID string) (*Settlement, error)
}
