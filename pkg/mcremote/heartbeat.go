package mcremote

import (
	"log"
	"sort"
	"sync"
	"time"
)

// 心跳参数
const (
	heartbeatInterval    = 5 * time.Second // 心跳周期
	heartbeatMaxFailures = 3               // 升级为完整重连前允许的连续失败次数
	heartbeatCommand     = "list"          // 心跳探测使用的轻量命令
)

// heartbeatTarget 心跳任务所依赖的管理器能力
type heartbeatTarget interface {
	ExecuteHeartbeatCommand(server, cmd string) (string, error)
	Connect(server string) error
}

type heartbeatAction int

const (
	actionStart heartbeatAction = iota // 启动某个服务器的心跳
	actionStop                         // 停止某个服务器的心跳
	actionStopAll                      // 停止全部心跳
)

type heartbeatCmd struct {
	action heartbeatAction
	server string
}

// HeartbeatManager 心跳管理器。
// 所有控制命令经由单一通道交给一个常驻goroutine处理，
// 每个服务器的心跳是一个可取消的独立goroutine。
type HeartbeatManager struct {
	target   heartbeatTarget
	commands chan heartbeatCmd
	done     chan struct{}

	mutex sync.Mutex
	tasks map[string]chan struct{} // 服务器名 -> 心跳任务的停止信号

	interval    time.Duration
	maxFailures int
}

func newHeartbeatManager(target heartbeatTarget) *HeartbeatManager {
	h := &HeartbeatManager{
		target:      target,
		commands:    make(chan heartbeatCmd),
		done:        make(chan struct{}),
		tasks:       make(map[string]chan struct{}),
		interval:    heartbeatInterval,
		maxFailures: heartbeatMaxFailures,
	}
	go h.listen()
	return h
}

// Start 启动某个服务器的心跳，已有心跳任务会先被停止
func (h *HeartbeatManager) Start(server string) {
	h.send(heartbeatCmd{action: actionStart, server: server})
}

// Stop 停止某个服务器的心跳
func (h *HeartbeatManager) Stop(server string) {
	h.send(heartbeatCmd{action: actionStop, server: server})
}

// StopAll 停止全部心跳任务
func (h *HeartbeatManager) StopAll() {
	h.send(heartbeatCmd{action: actionStopAll})
}

// Close 停止全部心跳并退出命令处理goroutine
func (h *HeartbeatManager) Close() {
	close(h.done)
}

// send 投递控制命令，管理器已关闭时直接丢弃
func (h *HeartbeatManager) send(cmd heartbeatCmd) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// IsActive 报告某个服务器当前是否有心跳任务
func (h *HeartbeatManager) IsActive(server string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	_, ok := h.tasks[server]
	return ok
}

// Active 返回当前有心跳任务的全部服务器名
func (h *HeartbeatManager) Active() []string {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	names := make([]string, 0, len(h.tasks))
	for name := range h.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// listen 命令处理循环，心跳任务表只在这里和查询方法中被修改
func (h *HeartbeatManager) listen() {
	for {
		select {
		case cmd := <-h.commands:
			switch cmd.action {
			case actionStart:
				h.startTask(cmd.server)
			case actionStop:
				h.stopTask(cmd.server)
			case actionStopAll:
				h.stopAllTasks()
			}
		case <-h.done:
			h.stopAllTasks()
			return
		}
	}
}

func (h *HeartbeatManager) startTask(server string) {
	h.mutex.Lock()
	if stop, ok := h.tasks[server]; ok {
		// 同名任务先停再起，保证每个服务器只有一个心跳
		close(stop)
	}
	stop := make(chan struct{})
	h.tasks[server] = stop
	h.mutex.Unlock()

	go h.run(server, stop)
	log.Printf("服务器 %s 的心跳任务已启动", server)
}

func (h *HeartbeatManager) stopTask(server string) {
	h.mutex.Lock()
	stop, ok := h.tasks[server]
	if ok {
		delete(h.tasks, server)
	}
	h.mutex.Unlock()

	if ok {
		close(stop)
		log.Printf("服务器 %s 的心跳任务已停止", server)
	}
}

func (h *HeartbeatManager) stopAllTasks() {
	h.mutex.Lock()
	tasks := h.tasks
	h.tasks = make(map[string]chan struct{})
	h.mutex.Unlock()

	for server, stop := range tasks {
		close(stop)
		log.Printf("服务器 %s 的心跳任务已停止", server)
	}
}

// run 单个服务器的心跳循环。
// 失败不会让循环退出：连续失败达到上限后升级为完整重连，
// 只有停止信号能终止循环。
func (h *HeartbeatManager) run(server string, stop chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := h.target.ExecuteHeartbeatCommand(server, heartbeatCommand); err != nil {
				failures++
				log.Printf("服务器 %s 心跳失败 (%d/%d): %v", server, failures, h.maxFailures, err)
				if failures >= h.maxFailures {
					// 连续失败达到上限，升级为完整重连
					log.Printf("服务器 %s 心跳连续失败 %d 次，尝试重新建立连接", server, failures)
					if err := h.target.Connect(server); err != nil {
						log.Printf("服务器 %s 心跳重连失败: %v", server, err)
					} else {
						failures = 0
					}
				}
			} else {
				failures = 0
			}
		}
	}
}
