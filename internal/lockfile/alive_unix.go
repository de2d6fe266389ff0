//go:build unix

package lockfile

import (
	"golang.org/x/sys/unix"
)

// processAlive 检测 pid 对应的进程是否仍然存在
// kill(pid, 0) 不发送信号，只做存在性检查；EPERM 说明进程存在但无权限
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
