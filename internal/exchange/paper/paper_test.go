package paper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mybian/rwbot/internal/engine"
	"github.com/mybian/rwbot/internal/exchange"
)

func TestImmediateSettlement(t *testing.T) {
	client := New(decimal.RequireFromString("1.0002"))
	ctx := context.Background()

	order, err := client.SubmitConversion(ctx, exchange.USDCUSDT, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	settlement, err := client.AwaitSettlement(ctx, order)
	if err != nil {
		t.Fatalf("等待结算失败: %v", err)
	}
	if settlement.Status != exchange.StatusSuccess {
		t.Fatalf("纸交易应立即成功结算，实际 %s", settlement.Status)
	}
	if !settlement.RealizedProfit.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("利润应为 10*(1.0002-1)=0.002，实际 %s", settlement.RealizedProfit)
	}
	if !settlement.ToAmount.Equal(decimal.RequireFromString("10.002")) {
		t.Fatalf("到账金额应为 10.002，实际 %s", settlement.ToAmount)
	}
}

func TestQueryUnknownOrderIsFatal(t *testing.T) {
	client := New(decimal.NewFromInt(1))
	_, err := client.QueryOrder(context.Background(), "ghost")
	if err == nil || !exchange.IsFatal(err) {
		t.Fatalf("未知订单应返回 Fatal 错误，实际 %v", err)
	}
}

func TestEngineCompletesAgainstPaperClient(t *testing.T) {
	// 纸交易客户端跑通整条引擎流程
	client := New(decimal.RequireFromString("1.0001"))
	eng, err := engine.New(client, engine.Config{
		AccountID:      "paper-test",
		Pair:           exchange.USDCUSDT,
		PerRoundAmount: decimal.NewFromInt(10),
		TargetAmount:   decimal.NewFromInt(25),
		RetryWait:      10 * time.Millisecond,
		MustProfit:     true,
	})
	if err != nil {
		t.Fatalf("创建引擎失败: %v", err)
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("引擎运行失败: %v", err)
	}
	if result.TotalCycles != 3 {
		t.Fatalf("目标 25、每轮 10 应跑 3 轮，实际 %d", result.TotalCycles)
	}
	if !result.TotalOperated.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("累计操作额应为 25，实际 %s", result.TotalOperated)
	}
}
