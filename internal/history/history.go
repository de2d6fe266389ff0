// Package history 用 SQLite 记录每一轮已结算的转换
// 供事后核对累计结果与利润来源，按账号隔离
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mybian/rwbot/internal/engine"
)

// Store 轮次历史库
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）历史库
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "创建历史库目录失败")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "打开历史库失败")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS rounds (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id  TEXT NOT NULL,
    order_id    TEXT NOT NULL UNIQUE,
    round       INTEGER NOT NULL,
    from_amount TEXT NOT NULL,
    to_amount   TEXT NOT NULL,
    price       TEXT NOT NULL,
    profit      TEXT NOT NULL,
    settled_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rounds_account ON rounds(account_id, settled_at);
`
	_, err := s.db.Exec(schema)
	return errors.Wrap(err, "初始化历史库表结构失败")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRound 落一条已结算轮次
// 订单号唯一约束保证对账重放不会重复入账
func (s *Store) RecordRound(rec engine.RoundRecord) error {
	_, err := s.db.Exec(`
INSERT INTO rounds (account_id, order_id, round, from_amount, to_amount, price, profit, settled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(order_id) DO NOTHING`,
		rec.AccountID,
		rec.Settlement.OrderID,
		rec.Round,
		rec.Settlement.FromAmount.String(),
		rec.Settlement.ToAmount.String(),
		rec.Settlement.Price.String(),
		rec.Settlement.RealizedProfit.String(),
		rec.Settlement.SettledAt.UTC(),
	)
	return errors.Wrap(err, "写入轮次记录失败")
}

// Summary 历史累计汇总
type Summary struct {
	Rounds        int             `json:"rounds"`
	TotalOperated decimal.Decimal `json:"total_operated"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	FirstSettled  time.Time       `json:"first_settled"`
	LastSettled   time.Time       `json:"last_settled"`
}

// Summarize 汇总账号的历史轮次
// 金额按 TEXT 存储，求和在 Go 侧用 decimal 做，避免 SQLite 浮点累计误差
func (s *Store) Summarize(accountID string) (Summary, error) {
	summary := Summary{
		TotalOperated: decimal.Zero,
		TotalProfit:   decimal.Zero,
	}

	rows, err := s.db.Query(`
SELECT from_amount, profit, settled_at FROM rounds
WHERE account_id = ? ORDER BY settled_at`, accountID)
	if err != nil {
		return summary, errors.Wrap(err, "查询历史轮次失败")
	}
	defer rows.Close()

	for rows.Next() {
		var fromAmount, profit string
		var settledAt time.Time
		if err := rows.Scan(&fromAmount, &profit, &settledAt); err != nil {
			return summary, errors.Wrap(err, "读取历史轮次失败")
		}

		operated, err := decimal.NewFromString(fromAmount)
		if err != nil {
			return summary, errors.Wrapf(err, "历史记录金额 %q 损坏", fromAmount)
		}
		p, err := decimal.NewFromString(profit)
		if err != nil {
			return summary, errors.Wrapf(err, "历史记录盈亏 %q 损坏", profit)
		}

		summary.Rounds++
		summary.TotalOperated = summary.TotalOperated.Add(operated)
		summary.TotalProfit = summary.TotalProfit.Add(p)
		if summary.FirstSettled.IsZero() {
			summary.FirstSettled = settledAt
		}
		summary.LastSettled = settledAt
	}
	return summary, rows.Err()
}
