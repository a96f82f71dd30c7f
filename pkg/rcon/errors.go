package rcon

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorKind RCON错误类别，重试策略依据类别决定是否重连重试
type ErrorKind int

const (
	ErrConnectionFailed       ErrorKind = iota + 1 // 建立连接失败
	ErrAuthenticationFailed                        // 认证失败（密码错误）
	ErrCommandFailed                               // 命令执行失败
	ErrInvalidResponse                             // 响应无效或流失去同步
	ErrNotConnected                                // 尚未连接
	ErrBufferError                                 // 读取数据不完整
	ErrServerClosedConnection                      // 服务器关闭了连接
	ErrNetworkTimeout                              // 网络超时
)

// String 返回类别的可读名称
func (k ErrorKind) String() string {
	switch k {
	case ErrConnectionFailed:
		return "ConnectionFailed"
	case ErrAuthenticationFailed:
		return "AuthenticationFailed"
	case ErrCommandFailed:
		return "CommandFailed"
	case ErrInvalidResponse:
		return "InvalidResponse"
	case ErrNotConnected:
		return "NotConnected"
	case ErrBufferError:
		return "BufferError"
	case ErrServerClosedConnection:
		return "ServerClosedConnection"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	default:
		return "Unknown"
	}
}

// Error 带类别的RCON错误
type Error struct {
	Kind    ErrorKind // 错误类别
	Message string    // 错误描述
	Cause   error     // 底层错误，可能为nil
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf 提取错误的RCON类别，非本包产生的错误一律归为ErrCommandFailed
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrCommandFailed
}

// IsRetryable 判断错误是否属于重连后重试可能恢复的类别。
// 认证失败永远不重试，密码不会因为重试而变对。
func IsRetryable(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	switch re.Kind {
	case ErrBufferError, ErrServerClosedConnection, ErrNetworkTimeout,
		ErrConnectionFailed, ErrInvalidResponse, ErrNotConnected:
		return true
	case ErrCommandFailed:
		// 命令失败只有表现为瞬时网络问题时才重试
		msg := strings.ToLower(re.Error())
		return strings.Contains(msg, "failed to fill whole buffer") ||
			strings.Contains(msg, "connection closed by server") ||
			strings.Contains(msg, "connection reset")
	default:
		return false
	}
}

// classifyReadError 将读取数据包时的底层网络错误归类
func classifyReadError(err error, what string) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF),
		strings.Contains(msg, "failed to fill whole buffer"):
		return wrapError(ErrBufferError, fmt.Sprintf("读取%s时数据不完整", what), err)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection aborted"):
		return wrapError(ErrServerClosedConnection, fmt.Sprintf("读取%s时连接被服务器关闭", what), err)
	case isTimeout(err):
		return wrapError(ErrNetworkTimeout, fmt.Sprintf("读取%s超时", what), err)
	default:
		return wrapError(ErrCommandFailed, fmt.Sprintf("读取%s失败", what), err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout")
}
