// Package engine 实现有界、可取消的转换循环
// 每轮最多投入 per_round_amount，累计达到 target_amount 或被取消时结束；
// 可恢复错误在轮内等待重试，不可恢复错误中止循环但保留已累计的结果
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mybian/rwbot/internal/exchange"
)

var log = logrus.WithField("module", "engine")

// State 引擎状态
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Phase Running 状态下的子阶段
type Phase string

const (
	PhaseExecuting Phase = "executing"
	PhaseWaiting   Phase = "waiting"
)

// Config 一次循环运行的配置（运行期间不可变）
type Config struct {
	AccountID      string
	Pair           exchange.Pair
	PerRoundAmount decimal.Decimal // 单轮投入上限，必须 > 0
	TargetAmount   decimal.Decimal // 目标累计金额，零值表示不设上限
	RetryWait      time.Duration   // 中断后的重试等待时长，>= 0
	MustProfit     bool            // 有免费额度时要求参考价 > 1.0 才执行
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.AccountID == "" {
		return exchange.Fatalf("account_id 不能为空")
	}
	if c.Pair.From == "" || c.Pair.To == "" {
		return exchange.Fatalf("交易对不完整: %q/%q", c.Pair.From, c.Pair.To)
	}
	if !c.PerRoundAmount.IsPositive() {
		return exchange.Fatalf("per_round_amount 必须大于 0，当前为 %s", c.PerRoundAmount)
	}
	if c.TargetAmount.IsNegative() {
		return exchange.Fatalf("target_amount 不能为负，当前为 %s", c.TargetAmount)
	}
	if c.RetryWait < 0 {
		return exchange.Fatalf("retry_wait 不能为负")
	}
	return nil
}

// Result 循环结束时的累计结果快照
type Result struct {
	TotalCycles   int             `json:"total_cycles"`   // 完成结算的轮数
	TotalOperated decimal.Decimal `json:"total_operated"` // 累计投入金额
	TotalProfit   decimal.Decimal `json:"total_profit"`   // 累计盈亏（可为负）
}

// AvgProfitRate 平均利润率（百分比）
// 没有任何一轮结算时利润率无定义，第二个返回值为 false
func (r Result) AvgProfitRate() (decimal.Decimal, bool) {
	if !r.TotalOperated.IsPositive() {
		return decimal.Zero, false
	}
	return r.TotalProfit.Div(r.TotalOperated).Mul(decimal.NewFromInt(100)), true
}

// Snapshot 状态接口读取的一致性快照：totals 只在一轮结算完成后整体更新
type Snapshot struct {
	AccountID string    `json:"account_id"`
	State     State     `json:"state"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	Result
}

// RoundRecord 一轮结算完成后传给挂钩的记录
type RoundRecord struct {
	AccountID  string              `json:"account_id"`
	Round      int                 `json:"round"` // 本轮在整次运行中的序号，从 1 开始
	Settlement exchange.Settlement `json:"settlement"`
}

// Engine 转换循环引擎
// 循环本身是单工作者顺序执行的：每一轮都依赖上一轮留下的资金状态，
// 跨进程的并发边界由账号锁负责，引擎内不做并行
type Engine struct {
	cfg    Config
	client exchange.Client

	mu        sync.Mutex
	state     State
	phase     Phase
	startedAt time.Time
	result    Result

	onSettled []func(RoundRecord)
}

// New 创建引擎
func New(client exchange.Client, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		client: client,
		state:  StateIdle,
		phase:  PhaseExecuting,
		result: Result{
			TotalOperated: decimal.Zero,
			TotalProfit:   decimal.Zero,
		},
	}, nil
}

// OnRoundSettled 注册结算挂钩（历史库、运行日志等）
// 必须在 Run 之前注册；挂钩在每轮 totals 更新之后同步调用
func (e *Engine) OnRoundSettled(fn func(RoundRecord)) {
	e.onSettled = append(e.onSettled, fn)
}

// Snapshot 返回当前状态的一致性快照
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		AccountID: e.cfg.AccountID,
		State:     e.state,
		Phase:     e.phase,
		StartedAt: e.startedAt,
		Result:    e.result,
	}
}

// Run 执行转换循环直到目标达成、被取消或发生不可恢复错误
// 返回的 Result 在任何退出路径上都包含已结算轮次的完整累计；
// 取消是正常结束（error 为 nil），不可恢复错误时 error 非 nil
func (e *Engine) Run(ctx context.Context) (Result, error) {
	e.mu.Lock()
	e.state = StateRunning
	e.phase = PhaseExecuting
	e.startedAt = time.Now()
	e.mu.Unlock()

	log.Infof("转换循环启动: account=%s pair=%s 单轮上限=%s 目标=%s 必须盈利=%v",
		e.cfg.AccountID, e.cfg.Pair, e.cfg.PerRoundAmount, e.targetDesc(), e.cfg.MustProfit)

	for round := 1; ; {
		if ctx.Err() != nil {
			return e.finish(StateCompleted, nil)
		}

		// 1. 计算剩余容量，达到目标即完成
		amount, done := e.nextRoundAmount()
		if done {
			log.Infof("累计投入已达目标 %s，循环完成", e.cfg.TargetAmount)
			return e.finish(StateCompleted, nil)
		}

		// 2. 盈利闸门：有免费额度时参考价必须 > 1.0
		if e.cfg.MustProfit {
			proceed, err := e.profitGate(ctx)
			if err != nil {
				if exchange.IsFatal(err) {
					return e.finish(StateAborted, err)
				}
				log.Warnf("查询盈利条件失败，%s 后重试: %v", e.cfg.RetryWait, err)
				if waitErr := e.waitRetry(ctx); waitErr != nil {
					return e.finish(StateCompleted, nil)
				}
				continue
			}
			if !proceed {
				// 等待行情变得有利，本轮不计数
				if waitErr := e.waitRetry(ctx); waitErr != nil {
					return e.finish(StateCompleted, nil)
				}
				continue
			}
		}

		// 3. 提交转换
		order, err := e.client.SubmitConversion(ctx, e.cfg.Pair, amount)
		if err != nil {
			if ctx.Err() != nil {
				return e.finish(StateCompleted, nil)
			}
			if exchange.IsFatal(err) {
				log.Errorf("提交转换发生不可恢复错误: %v", err)
				return e.finish(StateAborted, err)
			}
			// 提交阶段失败不会产生交易所侧变动，等待后原样重试本轮
			log.Warnf("第 %d 轮提交失败，%s 后重试: %v", round, e.cfg.RetryWait, err)
			if waitErr := e.waitRetry(ctx); waitErr != nil {
				return e.finish(StateCompleted, nil)
			}
			continue
		}

		// 4. 等待结算；提交之后任何失败都必须先对账再决定是否计数
		settlement, err := e.settleOrReconcile(ctx, order)
		if err != nil {
			if ctx.Err() != nil {
				// 结果未知的一轮不计数，已结算的累计原样返回
				return e.finish(StateCompleted, nil)
			}
			if exchange.IsFatal(err) {
				return e.finish(StateAborted, err)
			}
			log.Warnf("第 %d 轮结算确认失败，%s 后重试本轮: %v", round, e.cfg.RetryWait, err)
			if waitErr := e.waitRetry(ctx); waitErr != nil {
				return e.finish(StateCompleted, nil)
			}
			continue
		}

		if settlement.Status != exchange.StatusSuccess {
			// 交易所确认失败：资金没有变动，本轮不计数，重新评估
			log.Warnf("第 %d 轮订单 %s 被交易所确认为失败，重试本轮", round, settlement.OrderID)
			if waitErr := e.waitRetry(ctx); waitErr != nil {
				return e.finish(StateCompleted, nil)
			}
			continue
		}

		// 5. 结算成功，整体更新累计值
		e.applySettlement(round, settlement)
		round++
	}
}

// nextRoundAmount 计算本轮投入金额；目标已达成时第二个返回值为 true
func (e *Engine) nextRoundAmount() (decimal.Decimal, bool) {
	amount := e.cfg.PerRoundAmount
	if !e.cfg.TargetAmount.IsPositive() {
		return amount, false
	}

	e.mu.Lock()
	operated := e.result.TotalOperated
	e.mu.Unlock()

	remaining := e.cfg.TargetAmount.Sub(operated)
	if !remaining.IsPositive() {
		return decimal.Zero, true
	}
	// 末轮金额收口到剩余容量，累计绝不越过目标
	if remaining.LessThan(amount) {
		amount = remaining
	}
	return amount, false
}

// profitGate 盈利闸门
// 免费额度的判定是交易所能力；存在免费额度且参考价 <= 1.0 时本轮跳过
func (e *Engine) profitGate(ctx context.Context) (bool, error) {
	free, err := e.client.FreeAllowance(ctx, e.cfg.Pair)
	if err != nil {
		return false, err
	}
	if !free {
		return true, nil
	}

	price, err := e.client.ReferencePrice(ctx, e.cfg.Pair)
	if err != nil {
		return false, err
	}
	if price.LessThanOrEqual(decimal.NewFromInt(1)) {
		log.Infof("%s 参考价 %s <= 1.0，无利可图，等待 %s 后重新评估",
			e.cfg.Pair, price, e.cfg.RetryWait)
		return false, nil
	}
	return true, nil
}

// settleOrReconcile 等待结算；确认失败时按订单号对账，绝不在结果未知时计数
func (e *Engine) settleOrReconcile(ctx context.Context, order *exchange.Order) (*exchange.Settlement, error) {
	settlement, err := e.client.AwaitSettlement(ctx, order)
	if err == nil {
		return settlement, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	log.Warnf("订单 %s 结算确认中断，开始对账: %v", order.ID, err)

	// 对账循环：反复查询订单实际结果，直到拿到终态或遇到不可恢复错误
	for {
		settlement, qerr := e.client.QueryOrder(ctx, order.ID)
		if qerr == nil {
			if settlement.Status == exchange.StatusProcessing {
				// 仍在结算中，等待后继续查询
				if waitErr := e.waitRetry(ctx); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			log.Infof("订单 %s 对账完成: status=%s", order.ID, settlement.Status)
			return settlement, nil
		}
		if ctx.Err() != nil || exchange.IsFatal(qerr) {
			return nil, qerr
		}
		if waitErr := e.waitRetry(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

// applySettlement 在一轮结算完成后整体更新累计值并触发挂钩
func (e *Engine) applySettlement(round int, settlement *exchange.Settlement) {
	e.mu.Lock()
	e.result.TotalCycles++
	e.result.TotalOperated = e.result.TotalOperated.Add(settlement.FromAmount)
	e.result.TotalProfit = e.result.TotalProfit.Add(settlement.RealizedProfit)
	result := e.result
	e.mu.Unlock()

	log.Infof("第 %d 轮结算完成: 投入=%s 盈亏=%s 累计投入=%s 累计盈亏=%s",
		round, settlement.FromAmount, settlement.RealizedProfit,
		result.TotalOperated, result.TotalProfit)

	record := RoundRecord{
		AccountID:  e.cfg.AccountID,
		Round:      round,
		Settlement: *settlement,
	}
	for _, fn := range e.onSettled {
		fn(record)
	}
}

// waitRetry 可取消的重试等待，是循环内唯一的主动阻塞点
func (e *Engine) waitRetry(ctx context.Context) error {
	e.setPhase(PhaseWaiting)
	defer e.setPhase(PhaseExecuting)

	if e.cfg.RetryWait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(e.cfg.RetryWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// finish 统一的退出路径：落状态、返回累计结果
func (e *Engine) finish(state State, err error) (Result, error) {
	e.mu.Lock()
	e.state = state
	result := e.result
	e.mu.Unlock()

	if err != nil {
		log.Errorf("转换循环中止: %v", err)
	} else {
		log.Infof("转换循环结束: 轮数=%d 累计投入=%s 累计盈亏=%s",
			result.TotalCycles, result.TotalOperated, result.TotalProfit)
	}
	return result, err
}

func (e *Engine) targetDesc() string {
	if !e.cfg.TargetAmount.IsPositive() {
		return "不限"
	}
	return e.cfg.TargetAmount.String()
}
