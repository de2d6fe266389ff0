// Package lockfile 实现按账号的跨进程互斥锁
// 同一账号同一时刻只允许一个进程操作资金；崩溃进程留下的陈旧锁会被自动回收
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "lockfile")

// ErrHeld 表示锁已被另一个存活的进程持有
var ErrHeld = errors.New("账号锁已被其他进程持有")

// IOError 表示锁目录不可写等存储层错误（致命，不重试）
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return "锁文件 IO 错误: " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// IsIOError 判断 err 是否为锁存储层错误
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

// DefaultStaleAfter 锁记录超过该时长未释放时按陈旧处理
const DefaultStaleAfter = 24 * time.Hour

// Record 写入锁文件的内容
type Record struct {
	AccountID   string    `json:"account_id"`
	HolderToken string    `json:"holder_token"`
	PID         int       `json:"pid"`
	Hostname    string    `json:"hostname"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// Lock 已获取的账号锁
type Lock struct {
	path     string
	record   Record
	released bool
}

// Options 获取锁的可选参数
type Options struct {
	// StaleAfter 陈旧判定阈值，为 0 时使用 DefaultStaleAfter
	StaleAfter time.Duration
	// IsAlive 进程存活检测，测试时可替换；为 nil 时使用系统实现
	IsAlive func(pid int) bool
}

// PathFor 返回账号对应的锁文件路径
// 同一账号的两个进程永远在同一条记录上竞争
func PathFor(dir, accountID string) string {
	return filepath.Join(dir, fmt.Sprintf("rwusd_%s.lock", accountID))
}

// NewHolderToken 生成锁持有者标识（进程 + 随机串）
func NewHolderToken() string {
	return fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString())
}

// Acquire 尝试获取账号锁
// 锁文件原子创建，并发的两个进程只会有一个成功；
// 已存在的锁先检查陈旧（持有进程已死或记录超龄），陈旧则回收后重试一次
func Acquire(dir, accountID string, opts Options) (*Lock, error) {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.IsAlive == nil {
		opts.IsAlive = processAlive
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Err: err}
	}

	path := PathFor(dir, accountID)
	hostname, _ := os.Hostname()
	record := Record{
		AccountID:   accountID,
		HolderToken: NewHolderToken(),
		PID:         os.Getpid(),
		Hostname:    hostname,
		AcquiredAt:  time.Now(),
	}

	lock, err := tryCreate(path, record)
	if err == nil {
		return lock, nil
	}
	if !os.IsExist(errors.Cause(err)) {
		return nil, err
	}

	// 锁文件已存在：检查是否陈旧
	existing, readErr := readRecord(path)
	if readErr == nil && !isStale(existing, opts) {
		log.Infof("账号 %s 的锁由 pid=%d 持有（%s 获取），拒绝启动",
			accountID, existing.PID, existing.AcquiredAt.Format("2006-01-02 15:04:05"))
		return nil, ErrHeld
	}

	// 陈旧锁（或无法解析的锁）：删除后重试一次原子创建
	// 如果另一个进程抢先回收并创建了新锁，这里的重试会再次失败并返回 ErrHeld
	if readErr != nil {
		log.Warnf("账号 %s 的锁文件无法解析，按陈旧锁回收: %v", accountID, readErr)
	} else {
		log.Warnf("回收账号 %s 的陈旧锁（pid=%d 已退出或记录超龄）", accountID, existing.PID)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &IOError{Err: err}
	}

	lock, err = tryCreate(path, record)
	if err != nil {
		if os.IsExist(errors.Cause(err)) {
			return nil, ErrHeld
		}
		return nil, err
	}

	// 回收路径不是单一原子操作：另一个回收者可能在 remove 和 link 之间插进来。
	// 创建后回读校验，持有者不是自己就认输
	verify, verifyErr := readRecord(path)
	if verifyErr != nil || verify.HolderToken != record.HolderToken {
		return nil, ErrHeld
	}
	return lock, nil
}

// tryCreate 原子创建锁文件
// 先把完整记录写进临时文件，再用硬链接发布：link 本身是 create-or-fail 的，
// 并发竞争者要么看不到锁文件，要么看到的一定是完整记录，不存在半成品窗口
func tryCreate(path string, record Record) (*Lock, error) {
	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, &IOError{Err: err}
	}

	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return nil, &IOError{Err: err}
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if os.IsExist(err) {
			return nil, err
		}
		return nil, &IOError{Err: err}
	}

	return &Lock{path: path, record: record}, nil
}

// Release 释放锁（幂等）
// 只在锁文件仍然记录着本持有者时删除，避免误删后来者回收后创建的新锁
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true

	existing, err := readRecord(l.path)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return &IOError{Err: err}
	}
	if existing.HolderToken != l.record.HolderToken {
		log.Warnf("锁文件 %s 已被其他持有者接管，跳过删除", l.path)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return &IOError{Err: err}
	}
	return nil
}

// Path 返回锁文件路径
func (l *Lock) Path() string { return l.path }

// HolderToken 返回本持有者标识
func (l *Lock) HolderToken() string { return l.record.HolderToken }

func readRecord(path string) (Record, error) {
	var record Record
	b, err := os.ReadFile(path)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(b, &record); err != nil {
		return record, errors.Wrap(err, "解析锁记录失败")
	}
	if record.HolderToken == "" {
		return record, errors.New("锁记录缺少 holder_token")
	}
	return record, nil
}

// isStale 判断锁记录是否陈旧：持有进程不存在，或记录超过阈值未释放
// 锁记录来自其他主机时无法做进程检测，只按记录年龄判定
func isStale(record Record, opts Options) bool {
	hostname, _ := os.Hostname()
	if record.Hostname == hostname && !opts.IsAlive(record.PID) {
		return true
	}
	return time.Since(record.AcquiredAt) > opts.StaleAfter
}
