package exchange

import (
	"github.com/pkg/errors"
)

// 错误分类：
//   - Transient：网络抖动、限流、交易所临时不一致，等待后重试同一轮即可
//   - Fatal：凭证无效、账号被禁、余额不可恢复不足，必须中止循环
// 未标注的错误按 Transient 处理（宁可多等一轮，也不丢掉已累计的结果）。

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Transient 把 err 标注为可恢复错误
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf 构造可恢复错误
func Transientf(format string, args ...interface{}) error {
	return &transientError{err: errors.Errorf(format, args...)}
}

// Fatal 把 err 标注为不可恢复错误
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// Fatalf 构造不可恢复错误
func Fatalf(format string, args ...interface{}) error {
	return &fatalError{err: errors.Errorf(format, args...)}
}

// IsTransient 判断 err 是否为可恢复错误
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsFatal 判断 err 是否为不可恢复错误
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
