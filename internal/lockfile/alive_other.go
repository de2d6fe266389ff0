//go:build !unix

package lockfile

import "os"

// processAlive 非 unix 平台的兜底实现：FindProcess 找不到即认为已退出
// 无法可靠检测时偏保守（当作存活），陈旧锁仍可通过记录年龄回收
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
