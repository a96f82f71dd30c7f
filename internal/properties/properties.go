// Package properties 管理服务器实例目录下的server.properties配置文件。
package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 新建配置文件时写入的默认值，与Minecraft原版服务器保持一致
var defaultProperties = map[string]string{
	"enable-jmx-monitoring":             "false",
	"rcon.port":                         "25575",
	"level-seed":                        "",
	"gamemode":                          "survival",
	"enable-command-block":              "false",
	"enable-query":                      "false",
	"generator-settings":                "{}",
	"enforce-secure-profile":            "true",
	"level-name":                        "world",
	"motd":                              "A Minecraft Server",
	"query.port":                        "25565",
	"pvp":                               "true",
	"generate-structures":               "true",
	"difficulty":                        "easy",
	"network-compression-threshold":     "256",
	"max-tick-time":                     "60000",
	"require-resource-pack":             "false",
	"use-native-transport":              "true",
	"max-players":                       "20",
	"online-mode":                       "true",
	"enable-status":                     "true",
	"allow-flight":                      "false",
	"broadcast-rcon-to-ops":             "true",
	"view-distance":                     "10",
	"server-ip":                         "",
	"allow-nether":                      "true",
	"server-port":                       "25565",
	"enable-rcon":                       "false",
	"sync-chunk-writes":                 "true",
	"op-permission-level":               "4",
	"prevent-proxy-connections":         "false",
	"hide-online-players":               "false",
	"resource-pack":                     "",
	"entity-broadcast-range-percentage": "100",
	"simulation-distance":               "10",
	"rcon.password":                     "",
	"player-idle-timeout":               "0",
	"force-gamemode":                    "false",
	"rate-limit":                        "0",
	"hardcore":                          "false",
	"white-list":                        "false",
	"broadcast-console-to-ops":          "true",
	"spawn-npcs":                        "true",
	"spawn-animals":                     "true",
	"function-permission-level":         "2",
	"level-type":                        "minecraft:normal",
	"spawn-monsters":                    "true",
	"enforce-whitelist":                 "false",
	"spawn-protection":                  "16",
	"max-world-size":                    "29999984",
}

// Store 管理存储根目录下所有服务器实例的配置文件，
// 每个服务器对应 <baseDir>/<server>/server.properties。
// 读改写整个文件时持有内部锁，多个goroutine可以安全共用。
type Store struct {
	baseDir string
	mutex   sync.Mutex
}

// NewStore 创建一个以baseDir为存储根目录的配置管理器
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// FilePath 返回某个服务器配置文件的完整路径
func (s *Store) FilePath(server string) string {
	return filepath.Join(s.baseDir, server, "server.properties")
}

// Load 读取并解析某个服务器的全部配置项
func (s *Store) Load(server string) (map[string]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.load(server)
}

func (s *Store) load(server string) (map[string]string, error) {
	data, err := os.ReadFile(s.FilePath(server))
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}
	return Parse(string(data)), nil
}

// Parse 解析properties格式文本，跳过空行和#注释，按第一个=分割
func Parse(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props
}

// Save 将配置项写回文件，键按字典序排列，文件头与原版服务器一致
func (s *Store) Save(server string, props map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.save(server, props)
}

func (s *Store) save(server string, props map[string]string) error {
	path := s.FilePath(server)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建服务器目录失败: %v", err)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("#Minecraft server properties\n")
	b.WriteString("#" + time.Now().Format("Mon Jan 02 15:04:05 MST 2006") + "\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(props[k])
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %v", err)
	}
	return nil
}

// GetProperty 读取单个配置项的值
func (s *Store) GetProperty(server, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	props, err := s.load(server)
	if err != nil {
		return "", err
	}
	value, ok := props[key]
	if !ok {
		return "", fmt.Errorf("配置项 %s 不存在", key)
	}
	return value, nil
}

// UpdateProperty 更新单个配置项并写回文件
func (s *Store) UpdateProperty(server, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	props, err := s.load(server)
	if err != nil {
		return err
	}
	props[key] = value
	return s.save(server, props)
}

// CreateDefault 在服务器目录下生成一份默认配置，文件已存在时不做任何修改
func (s *Store) CreateDefault(server string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createDefault(server)
}

func (s *Store) createDefault(server string) error {
	if _, err := os.Stat(s.FilePath(server)); err == nil {
		return nil
	}
	props := make(map[string]string, len(defaultProperties))
	for k, v := range defaultProperties {
		props[k] = v
	}
	return s.save(server, props)
}

// EnsureRconEnabled 开启某个服务器的RCON配置。
// 配置文件不存在时先生成默认配置，随后写入enable-rcon=true和端口，
// password非空时一并写入。
func (s *Store) EnsureRconEnabled(server string, rconPort int, password string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.createDefault(server); err != nil {
		return err
	}

	props, err := s.load(server)
	if err != nil {
		return err
	}
	props["enable-rcon"] = "true"
	props["rcon.port"] = strconv.Itoa(rconPort)
	if password != "" {
		props["rcon.password"] = password
	}
	return s.save(server, props)
}
