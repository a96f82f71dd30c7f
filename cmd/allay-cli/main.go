package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/D4ffi/allay-app/pkg/rcon"
)

// CLI选项
type cliOptions struct {
	host      string
	port      int
	password  string
	colorMode string
	terminal  bool
}

// CLI颜色设置
var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	promptColor  = color.New(color.FgCyan, color.Bold)
)

// MinecraftFormatCode 表示Minecraft格式控制符的颜色和样式映射
var MinecraftFormatCode = map[rune]string{
	// 颜色代码
	'0': "\033[30m",   // 黑色
	'1': "\033[34;1m", // 深蓝色
	'2': "\033[32;1m", // 深绿色
	'3': "\033[36;1m", // 湖蓝色
	'4': "\033[31;1m", // 深红色
	'5': "\033[35;1m", // 紫色
	'6': "\033[33m",   // 金色
	'7': "\033[37m",   // 灰色
	'8': "\033[30;1m", // 深灰色
	'9': "\033[34m",   // 蓝色
	'a': "\033[32m",   // 绿色
	'b': "\033[36m",   // 天蓝色
	'c': "\033[31m",   // 红色
	'd': "\033[35m",   // 粉红色
	'e': "\033[33m",   // 黄色
	'f': "\033[37;1m", // 白色

	// 格式化代码
	'k': "\033[5m", // 随机字符 (闪烁)
	'l': "\033[1m", // 粗体
	'm': "\033[9m", // 删除线
	'n': "\033[4m", // 下划线
	'o': "\033[3m", // 斜体
	'r': "\033[0m", // 重置
}

func main() {
	os.Exit(run())
}

func run() int {
	options, commands := parseFlags()

	enableColor := shouldColor(options.colorMode)
	color.NoColor = !enableColor

	// 密码缺省时交互式输入，避免留在shell历史里
	if options.password == "" {
		fmt.Fprint(os.Stderr, "RCON密码: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			errorColor.Fprintf(os.Stderr, "读取密码失败: %v\n", err)
			return 1
		}
		options.password = string(data)
	}

	client := rcon.NewClient(options.host, options.port, options.password)
	if err := client.Connect(); err != nil {
		errorColor.Fprintf(os.Stderr, "连接 %s:%d 失败: %v\n", options.host, options.port, err)
		return 1
	}
	defer client.Disconnect()

	if len(commands) > 0 && !options.terminal {
		return runCommands(client, commands, enableColor)
	}
	return runTerminal(client, options, enableColor)
}

// parseFlags 解析命令行参数，返回选项和待执行的命令
func parseFlags() (cliOptions, []string) {
	options := cliOptions{}

	flag.StringVar(&options.host, "H", envOrDefault("ALLAY_RCON_HOST", "127.0.0.1"), "RCON服务器地址")
	flag.IntVar(&options.port, "P", envIntOrDefault("ALLAY_RCON_PORT", 25575), "RCON端口")
	flag.StringVar(&options.password, "p", os.Getenv("ALLAY_RCON_PASS"), "RCON密码，缺省时交互式输入")
	flag.StringVar(&options.colorMode, "color", "auto", "彩色输出 (auto、always 或 never)")
	flag.BoolVar(&options.terminal, "t", false, "进入交互模式，忽略命令参数")
	flag.Parse()

	return options, flag.Args()
}

// runCommands 依次执行命令行里给出的命令
func runCommands(client *rcon.Client, commands []string, enableColor bool) int {
	for _, cmd := range commands {
		resp, err := client.Command(cmd)
		if err != nil {
			errorColor.Fprintf(os.Stderr, "命令执行失败: %v\n", err)
			return 2
		}
		printResponse(resp, enableColor)
	}
	return 0
}

// runTerminal 交互式命令循环
func runTerminal(client *rcon.Client, options cliOptions, enableColor bool) int {
	historyFile := filepath.Join(os.TempDir(), ".allay-cli_history")
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".allay-cli_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptColor.Sprintf("%s> ", options.host),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		errorColor.Fprintf(os.Stderr, "初始化终端失败: %v\n", err)
		return 1
	}
	defer rl.Close()

	successColor.Printf("已连接到 %s:%d，输入 exit 或 Ctrl-D 断开\n", options.host, options.port)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			continue
		}
		if strings.EqualFold(cmd, "exit") || strings.EqualFold(cmd, "q") {
			break
		}

		resp, cerr := client.Command(cmd)
		if cerr != nil {
			errorColor.Fprintf(os.Stderr, "命令执行失败: %v\n", cerr)
			if !client.IsConnected() {
				errorColor.Fprintln(os.Stderr, "连接已断开")
				return 2
			}
			continue
		}
		if resp != "" {
			printResponse(resp, enableColor)
		}

		// 服务器stop之后连接随即失效，直接退出
		if strings.EqualFold(cmd, "stop") {
			break
		}
	}
	return 0
}

// printResponse 输出命令响应，按需渲染Minecraft颜色
func printResponse(text string, enableColor bool) {
	if enableColor {
		text = renderMinecraftFormat(text)
	} else {
		text = stripMinecraftFormat(text)
	}
	fmt.Print(text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Println()
	}
}

// renderMinecraftFormat 把Minecraft的§格式控制符转换为ANSI转义序列
func renderMinecraftFormat(text string) string {
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			if ansi, ok := MinecraftFormatCode[runes[i+1]]; ok {
				b.WriteString(ansi)
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}
	out := b.String()
	if !strings.HasSuffix(out, "\033[0m") {
		out += "\033[0m"
	}
	return out
}

// stripMinecraftFormat 去掉Minecraft的§格式控制符
func stripMinecraftFormat(text string) string {
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// shouldColor 解析颜色模式，auto时按输出是否为终端判断
func shouldColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
