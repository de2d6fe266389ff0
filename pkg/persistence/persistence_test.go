package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type snapshot struct {
	Cycles   int    `json:"cycles"`
	Operated string `json:"operated"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("state", "account1", "rwusd")

	in := snapshot{Cycles: 3, Operated: "30.5"}
	if err := store.Save(in); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	var out snapshot
	if err := store.Load(&out); err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if out != in {
		t.Fatalf("读回数据不一致: got=%+v want=%+v", out, in)
	}
}

func TestLoadMissingReturnsErrNotExists(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("state", "ghost", "rwusd")

	var out snapshot
	if err := store.Load(&out); err != ErrNotExists {
		t.Fatalf("不存在的数据应返回 ErrNotExists，实际 %v", err)
	}
}

func TestKeySanitizedInFileName(t *testing.T) {
	dir := t.TempDir()
	svc := NewJSONFileService(dir)
	store := svc.NewStore("state", "acc/../../evil", "rwusd")

	if err := store.Save(snapshot{Cycles: 1}); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读目录失败: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("应只生成一个文件，实际 %d", len(entries))
	}
	name := entries[0].Name()
	if strings.ContainsAny(name, "/\\:") {
		t.Fatalf("文件名未安全化: %s", name)
	}
	if filepath.Dir(filepath.Join(dir, name)) != dir {
		t.Fatalf("文件逃出了存储目录: %s", name)
	}
}

func TestSaveOverwrites(t *testing.T) {
	svc := NewJSONFileService(t.TempDir())
	store := svc.NewStore("state", "account1", "rwusd")

	if err := store.Save(snapshot{Cycles: 1, Operated: "10"}); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if err := store.Save(snapshot{Cycles: 2, Operated: "20"}); err != nil {
		t.Fatalf("覆盖保存失败: %v", err)
	}

	var out snapshot
	if err := store.Load(&out); err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if out.Cycles != 2 || out.Operated != "20" {
		t.Fatalf("覆盖后读回旧数据: %+v", out)
	}
}
