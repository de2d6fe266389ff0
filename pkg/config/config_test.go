package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	content := `
lock_dir: /var/run/rwbot
data_dir: ./data
log_level: debug
use_stream: true
accounts:
  account1:
    api_key: key-1
    api_secret: secret-1
    per_round_amount: 15
    target_amount: 100
    retry_wait_seconds: 3
    must_profit: false
  account2:
    api_key: key-2
    api_secret: secret-2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写临时配置失败: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if f.LockDir != "/var/run/rwbot" || f.LogLevel != "debug" || !f.UseStream {
		t.Fatalf("全局配置解析错误: %+v", f)
	}

	a1, ok := f.Account("account1")
	if !ok {
		t.Fatal("account1 应存在")
	}
	if a1.APIKey != "key-1" || a1.PerRoundAmount != 15 || a1.TargetAmount != 100 || a1.RetryWaitSeconds != 3 {
		t.Fatalf("account1 解析错误: %+v", a1)
	}
	if a1.MustProfit == nil || *a1.MustProfit {
		t.Fatal("account1 的 must_profit 应为显式 false")
	}

	a2, ok := f.Account("account2")
	if !ok {
		t.Fatal("account2 应存在")
	}
	if a2.MustProfit != nil {
		t.Fatal("account2 未配置 must_profit，应为 nil")
	}

	if _, ok := f.Account("ghost"); ok {
		t.Fatal("不存在的账号不应命中")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("缺失的配置文件应报错")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "flag-value", "env-value"); got != "flag-value" {
		t.Fatalf("应返回第一个非空值，实际 %q", got)
	}
	if got := FirstNonEmpty("", "  "); got != "" {
		t.Fatalf("全空时应返回空串，实际 %q", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("RWBOT_TEST_KEY", "from-env")
	if got := GetEnv("RWBOT_TEST_KEY", "fallback"); got != "from-env" {
		t.Fatalf("应读到环境变量，实际 %q", got)
	}
	if got := GetEnv("RWBOT_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("缺失时应返回默认值，实际 %q", got)
	}
}
