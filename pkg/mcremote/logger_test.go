package mcremote

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServerLoggerWritesTaggedLines(t *testing.T) {
	dir := t.TempDir()
	l := NewServerLogger(dir, "alpha")

	l.Connection("正在连接 127.0.0.1:25575")
	l.Command("list", "players: 0")
	l.CommandError("bogus", errors.New("未知命令"))

	lines, err := l.Tail(0)
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("日志行数 = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "[CONNECTION]") {
		t.Errorf("第一行 = %q, want 含[CONNECTION]", lines[0])
	}
	if !strings.Contains(lines[1], "[COMMAND] list -> players: 0") {
		t.Errorf("第二行 = %q, want 含命令和响应", lines[1])
	}
	if !strings.Contains(lines[2], "[COMMAND_ERROR]") {
		t.Errorf("第三行 = %q, want 含[COMMAND_ERROR]", lines[2])
	}

	if _, err := os.Stat(filepath.Join(dir, "alpha", "rcon.log")); err != nil {
		t.Errorf("日志文件路径不符合约定: %v", err)
	}
}

func TestServerLoggerAuthenticationHidesPassword(t *testing.T) {
	l := NewServerLogger(t.TempDir(), "alpha")

	l.Authentication(6)

	lines, err := l.Tail(1)
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "密码长度: 6") {
		t.Errorf("认证日志 = %v, want 只记录密码长度", lines)
	}
}

func TestServerLoggerTailLimits(t *testing.T) {
	l := NewServerLogger(t.TempDir(), "alpha")
	for i := 1; i <= 5; i++ {
		l.Info(fmt.Sprintf("line-%d", i))
	}

	lines, err := l.Tail(2)
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Tail(2) 行数 = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "line-4") || !strings.Contains(lines[1], "line-5") {
		t.Errorf("Tail(2) = %v, want 最后两行", lines)
	}
}

func TestServerLoggerTailMissingFile(t *testing.T) {
	l := NewServerLogger(t.TempDir(), "ghost")

	lines, err := l.Tail(10)
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("不存在的日志 Tail() = %v, want 空", lines)
	}
}

func TestServerLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewServerLogger(dir, "alpha")
	path := filepath.Join(dir, "alpha", "rcon.log")

	// 预先填一个超过上限的日志文件，下一次写入应当触发轮转
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建日志目录失败: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, maxLogFileSize+1), 0o644); err != nil {
		t.Fatalf("写入超大日志失败: %v", err)
	}

	l.Info("轮转后的第一行")

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("轮转后的备份文件不存在: %v", err)
	}
	lines, err := l.Tail(0)
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "轮转后的第一行") {
		t.Errorf("轮转后的日志 = %v, want 只有新写入的一行", lines)
	}
}
