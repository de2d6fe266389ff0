package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mybian/rwbot/internal/engine"
	"github.com/mybian/rwbot/internal/exchange"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("打开历史库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(account, orderID string, round int, from, profit string, at time.Time) engine.RoundRecord {
	fromAmount := decimal.RequireFromString(from)
	p := decimal.RequireFromString(profit)
	return engine.RoundRecord{
		AccountID: account,
		Round:     round,
		Settlement: exchange.Settlement{
			OrderID:        orderID,
			Status:         exchange.StatusSuccess,
			FromAmount:     fromAmount,
			ToAmount:       fromAmount.Add(p),
			Price:          decimal.RequireFromString("1.0001"),
			RealizedProfit: p,
			SettledAt:      at,
		},
	}
}

func TestRecordAndSummarize(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rounds := []engine.RoundRecord{
		record("account1", "ord-1", 1, "10", "0.001", base),
		record("account1", "ord-2", 2, "10", "0.002", base.Add(time.Minute)),
		record("account1", "ord-3", 3, "5.5", "-0.0005", base.Add(2*time.Minute)),
	}
	for _, r := range rounds {
		if err := s.RecordRound(r); err != nil {
			t.Fatalf("写入轮次失败: %v", err)
		}
	}

	summary, err := s.Summarize("account1")
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if summary.Rounds != 3 {
		t.Fatalf("轮数应为 3，实际 %d", summary.Rounds)
	}
	if !summary.TotalOperated.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("累计操作额应为 25.5，实际 %s", summary.TotalOperated)
	}
	if !summary.TotalProfit.Equal(decimal.RequireFromString("0.0025")) {
		t.Fatalf("累计盈亏应为 0.0025，实际 %s", summary.TotalProfit)
	}
	if !summary.FirstSettled.Equal(base) {
		t.Fatalf("首轮结算时间不符: %s", summary.FirstSettled)
	}
	if !summary.LastSettled.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("末轮结算时间不符: %s", summary.LastSettled)
	}
}

func TestDuplicateOrderIgnored(t *testing.T) {
	s := newTestStore(t)

	at := time.Now().UTC()
	rec := record("account1", "ord-dup", 1, "10", "0.001", at)
	if err := s.RecordRound(rec); err != nil {
		t.Fatalf("第一次写入失败: %v", err)
	}
	// 对账重放同一订单号不应重复入账
	if err := s.RecordRound(rec); err != nil {
		t.Fatalf("重放写入不应报错: %v", err)
	}

	summary, err := s.Summarize("account1")
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if summary.Rounds != 1 {
		t.Fatalf("重复订单应被去重，轮数应为 1，实际 %d", summary.Rounds)
	}
}

func TestSummarizeIsolatedByAccount(t *testing.T) {
	s := newTestStore(t)

	at := time.Now().UTC()
	if err := s.RecordRound(record("account1", "ord-a", 1, "10", "0.001", at)); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := s.RecordRound(record("account2", "ord-b", 1, "20", "0.003", at)); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	summary, err := s.Summarize("account2")
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if summary.Rounds != 1 || !summary.TotalOperated.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("账号隔离失败: %+v", summary)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := newTestStore(t)
	summary, err := s.Summarize("nobody")
	if err != nil {
		t.Fatalf("空库汇总失败: %v", err)
	}
	if summary.Rounds != 0 || !summary.TotalProfit.IsZero() {
		t.Fatalf("空库汇总应为零值: %+v", summary)
	}
}
