package lockfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err, "首次获取锁应该成功")
	require.FileExists(t, PathFor(dir, "account1"))

	require.NoError(t, lock.Release())
	require.NoFileExists(t, PathFor(dir, "account1"), "释放后锁文件应该被删除")

	// 干净释放后重新获取应该立即成功
	lock2, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err, "释放后重新获取应该成功")
	require.NoError(t, lock2.Release())
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err)
	defer lock.Release()

	// 持有进程存活（本进程），第二次获取必须失败
	_, err = Acquire(dir, "account1", Options{})
	require.ErrorIs(t, err, ErrHeld)
}

func TestDifferentAccountsDoNotContend(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err)
	defer lock1.Release()

	lock2, err := Acquire(dir, "account2", Options{})
	require.NoError(t, err, "不同账号的锁互不影响")
	defer lock2.Release()
}

func TestConcurrentAcquireExactlyOneWins(t *testing.T) {
	dir := t.TempDir()

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)
	locks := make([]*Lock, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locks[i], results[i] = Acquire(dir, "account1", Options{})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		if results[i] == nil {
			winners++
			defer locks[i].Release()
		} else {
			require.ErrorIs(t, results[i], ErrHeld, "失败方必须观察到 ErrHeld")
		}
	}
	require.Equal(t, 1, winners, "并发获取时恰好一个成功")
}

func TestStaleLockFromDeadProcessReclaimed(t *testing.T) {
	dir := t.TempDir()

	// 模拟崩溃进程留下的锁：持有者被判定为已死
	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err)
	_ = lock // 不释放，模拟崩溃

	reclaimed, err := Acquire(dir, "account1", Options{
		IsAlive: func(pid int) bool { return false },
	})
	require.NoError(t, err, "持有进程已死的锁应该被回收")
	require.NoError(t, reclaimed.Release())
}

func TestStaleLockByAgeReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, "account1")

	// 直接写一个超龄的锁记录，持有进程仍存活
	record := Record{
		AccountID:   "account1",
		HolderToken: "old-token",
		PID:         os.Getpid(),
		AcquiredAt:  time.Now().Add(-48 * time.Hour),
	}
	hostname, _ := os.Hostname()
	record.Hostname = hostname
	b, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	lock, err := Acquire(dir, "account1", Options{StaleAfter: 24 * time.Hour})
	require.NoError(t, err, "超龄锁应该被回收")
	require.NoError(t, lock.Release())
}

func TestCorruptLockReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, "account1")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err, "无法解析的锁应该按陈旧锁回收")
	require.NoError(t, lock.Release())
}

func TestReleaseIdempotent(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "重复释放应该是空操作")
}

func TestReleaseSkipsForeignLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, "account1", Options{})
	require.NoError(t, err)

	// 模拟锁被后来者接管：换掉 holder_token
	record := Record{
		AccountID:   "account1",
		HolderToken: "someone-else",
		PID:         os.Getpid(),
		AcquiredAt:  time.Now(),
	}
	b, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lock.Path(), b, 0o644))

	require.NoError(t, lock.Release())
	require.FileExists(t, lock.Path(), "不属于自己的锁不能删除")
}

func TestAcquireUnwritableDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root 不受目录权限限制")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "readonly")
	require.NoError(t, os.Mkdir(locked, 0o555))

	_, err := Acquire(locked, "account1", Options{})
	require.Error(t, err)
	require.True(t, IsIOError(err), "目录不可写应该返回 IO 错误，实际为 %v", err)
}
